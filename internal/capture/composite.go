// Package capture models the capture client: it frames one camera frame onto
// the 9:16 output canvas, mirrors front-facing frames, paints the optional
// glyph, and encodes the still for submission.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"selfie-mailer/internal/utils"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Output canvas
const (
	FrameWidth  = 1080
	FrameHeight = 1920

	glyphScale  = 0.15
	glyphMargin = 20
	jpegQuality = 100
)

type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

func ParseFacing(s string) (Facing, error) {
	switch Facing(s) {
	case FacingUser, FacingEnvironment:
		return Facing(s), nil
	case "":
		return FacingEnvironment, nil
	}
	return "", fmt.Errorf("unknown facing %q (want user or environment)", s)
}

func (f Facing) Toggle() Facing {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

// Mirrored reports whether stills from this camera are flipped horizontally.
// Only the front camera is, matching its mirrored live preview.
func (f Facing) Mirrored() bool {
	return f == FacingUser
}

type Options struct {
	Facing Facing
	Glyph  string
	// Font paints the glyph. Without one the built-in bitmap face is scaled
	// up, which only covers ASCII.
	Font *opentype.Font
}

// CoverRect returns the part of src that fills a dstW x dstH canvas without
// distortion, cropping the overflowing dimension evenly on both sides.
func CoverRect(src image.Rectangle, dstW, dstH int) image.Rectangle {
	w, h := src.Dx(), src.Dy()
	if w == 0 || h == 0 || dstW == 0 || dstH == 0 {
		return src
	}
	if w*dstH > h*dstW {
		// wider than the canvas: keep height, crop width
		cw := h * dstW / dstH
		x0 := src.Min.X + (w-cw)/2
		return image.Rect(x0, src.Min.Y, x0+cw, src.Max.Y)
	}
	ch := w * dstH / dstW
	y0 := src.Min.Y + (h-ch)/2
	return image.Rect(src.Min.X, y0, src.Max.X, y0+ch)
}

// GlyphPlacement returns the glyph size and the baseline origin on a w x h
// canvas: horizontally centred, one glyph size plus a margin above the bottom.
func GlyphPlacement(w, h int) (int, image.Point) {
	size := int(float64(min(w, h)) * glyphScale)
	return size, image.Pt(w/2-size/2, h-size-glyphMargin)
}

// Composite rasterizes frame onto a FrameWidth x FrameHeight canvas
func Composite(frame image.Image, opts Options) (*image.RGBA, error) {
	dst := image.NewRGBA(image.Rect(0, 0, FrameWidth, FrameHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), frame, CoverRect(frame.Bounds(), FrameWidth, FrameHeight), draw.Src, nil)

	if opts.Facing.Mirrored() {
		mirror(dst)
	}
	if opts.Glyph != "" {
		if err := paintGlyph(dst, opts.Glyph, opts.Font); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func mirror(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for l, r := b.Min.X, b.Max.X-1; l < r; l, r = l+1, r-1 {
			cl, cr := img.RGBAAt(l, y), img.RGBAAt(r, y)
			img.SetRGBA(l, y, cr)
			img.SetRGBA(r, y, cl)
		}
	}
}

func paintGlyph(dst *image.RGBA, glyph string, f *opentype.Font) error {
	size, dot := GlyphPlacement(dst.Bounds().Dx(), dst.Bounds().Dy())
	if f != nil {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: float64(size), DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			return fmt.Errorf("glyph face: %w", err)
		}
		defer face.Close()
		d := font.Drawer{Dst: dst, Src: image.NewUniform(color.Black), Face: face, Dot: fixed.P(dot.X, dot.Y)}
		d.DrawString(glyph)
		return nil
	}

	// Bitmap fallback: render at native size, then scale to the glyph size
	face := basicfont.Face7x13
	adv := font.MeasureString(face, glyph).Ceil()
	if adv == 0 {
		return nil
	}
	tile := image.NewRGBA(image.Rect(0, 0, adv, face.Height))
	d := font.Drawer{Dst: tile, Src: image.NewUniform(color.Black), Face: face, Dot: fixed.P(0, face.Ascent)}
	d.DrawString(glyph)

	scale := float64(size) / float64(face.Height)
	top := dot.Y - int(float64(face.Ascent)*scale)
	box := image.Rect(dot.X, top, dot.X+int(float64(adv)*scale), top+size)
	draw.NearestNeighbor.Scale(dst, box, tile, tile.Bounds(), draw.Over, nil)
	return nil
}

// EncodeJPEG encodes img at maximum quality
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURI encodes img the way the browser hands a still to /send-photo
func DataURI(img image.Image) (string, error) {
	b, err := EncodeJPEG(img)
	if err != nil {
		return "", err
	}
	return utils.EncodeImageDataURI(b), nil
}
