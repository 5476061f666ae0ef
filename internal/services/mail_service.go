package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/textproto"
	"time"
)

const (
	photoSubject   = "Someone Caught You on Camera!"
	mailBoundary   = "boundary_selfie_email"
	inlineImageCID = "selfie_image"
)

var photoEmailTemplate = template.Must(template.New("photo").Parse(`<html>
  <body style="font-family: 'Arial', sans-serif; margin: 0; padding: 0; background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);">
    <div style="max-width: 600px; margin: 40px auto; background: white; border-radius: 25px; overflow: hidden; box-shadow: 0 20px 60px rgba(0,0,0,0.3);">
      <div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 30px; text-align: center;">
        <h1 style="color: white; margin: 0; font-size: 32px;">📸 Selfie Alert! 🎉</h1>
      </div>
      <div style="padding: 40px 30px;">
        <div style="background: linear-gradient(135deg, #ffeaa7 0%, #fdcb6e 100%); border-left: 5px solid #e17055; padding: 20px; border-radius: 15px; margin-bottom: 30px;">
          <p style="margin: 0; font-size: 18px; color: #2d3436; font-weight: 600; line-height: 1.6;">💬 {{.Caption}}</p>
        </div>
        <div style="text-align: center; margin: 30px 0;">
          <img src="cid:{{.CID}}" style="max-width: 100%; height: auto; border-radius: 20px;" alt="Your Selfie" />
        </div>
        {{if .Glyph}}<p style="text-align: center; font-size: 48px; margin: 20px 0;">{{.Glyph}}</p>{{end}}
        <div style="text-align: center; margin-top: 30px;">
          <p style="font-size: 16px; color: #636e72; margin: 10px 0;">Keep making memories! 🌟</p>
        </div>
      </div>
      <div style="background: #f5f6fa; padding: 20px; text-align: center; border-top: 1px solid #dfe6e9;">
        <p style="margin: 0; font-size: 13px; color: #b2bec3;">Sent with 💜 from <strong style="color: #667eea;">Selfie Mailer</strong></p>
      </div>
    </div>
  </body>
</html>`))

// PhotoEmail is everything that goes into one delivery
type PhotoEmail struct {
	From    string
	To      string
	Caption string
	Glyph   string
	Image   []byte
}

// ComposePhotoEmail renders a multipart/related message: an HTML part that
// references the JPEG part through its Content-ID.
func ComposePhotoEmail(e PhotoEmail) ([]byte, error) {
	var html bytes.Buffer
	err := photoEmailTemplate.Execute(&html, struct {
		Caption, Glyph, CID string
	}{e.Caption, e.Glyph, inlineImageCID})
	if err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", e.From)
	fmt.Fprintf(&msg, "To: %s\r\n", e.To)
	fmt.Fprintf(&msg, "Subject: =?UTF-8?B?%s?=\r\n", base64.StdEncoding.EncodeToString([]byte(photoSubject)))
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/related; boundary=%q\r\n\r\n", mailBoundary)

	w := multipart.NewWriter(&msg)
	if err := w.SetBoundary(mailBoundary); err != nil {
		return nil, err
	}

	htmlPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write(html.Bytes()); err != nil {
		return nil, err
	}

	imgPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"image/jpeg"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-ID":                {"<" + inlineImageCID + ">"},
		"Content-Disposition":       {`inline; filename="my-selfie.jpg"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := imgPart.Write(wrapBase64(e.Image)); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return msg.Bytes(), nil
}

// wrapBase64 breaks the encoding into 76 character lines (RFC 2045)
func wrapBase64(b []byte) []byte {
	enc := base64.StdEncoding.EncodeToString(b)
	var out bytes.Buffer
	for len(enc) > 76 {
		out.WriteString(enc[:76])
		out.WriteString("\r\n")
		enc = enc[76:]
	}
	out.WriteString(enc)
	return out.Bytes()
}

// PhotoMailer composes photo emails and sends them through the recipient's
// own mailbox.
type PhotoMailer struct {
	sender string
}

// NewPhotoMailer uses sender as the From address; empty means the recipient
func NewPhotoMailer(sender string) *PhotoMailer {
	return &PhotoMailer{sender: sender}
}

func (m *PhotoMailer) Send(ctx context.Context, mb Mailbox, to, caption, glyph string, image []byte) error {
	from := m.sender
	if from == "" {
		from = to
	}
	raw, err := ComposePhotoEmail(PhotoEmail{From: from, To: to, Caption: caption, Glyph: glyph, Image: image})
	if err != nil {
		return fmt.Errorf("compose email: %w", err)
	}
	return mb.SendRaw(ctx, raw)
}
