package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"selfie-mailer/internal/app"
	"selfie-mailer/internal/capture"
	"selfie-mailer/internal/config"
	"selfie-mailer/internal/db"
	"selfie-mailer/internal/probe"

	"github.com/spf13/cobra"
	"golang.org/x/image/font/opentype"
)

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "selfie-mailer",
		Short:         "Capture a selfie, caption it and mail it to yourself",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newInitDBCmd())
	root.AddCommand(newPhotosCmd())
	root.AddCommand(newCompositeCmd())
	root.AddCommand(newProbeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(config.Load())
		},
	}
}

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the photos table in PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := db.InitDB(cfg.DatabaseURL); err != nil {
				return err
			}
			defer db.CloseDB()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database initialized successfully")
			return nil
		},
	}
}

func newPhotosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "photos",
		Short: "Print every capture record, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Load()
			objects, _, err := app.NewObjectStore(ctx, cfg)
			if err != nil {
				return err
			}
			records, closeRecords, err := app.NewRecordStore(ctx, cfg, objects)
			if err != nil {
				return err
			}
			defer closeRecords()

			photos, err := records.List(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(photos)
		},
	}
}

type compositeOptions struct {
	in, out  string
	facing   string
	glyph    string
	fontPath string
	zoom     float64

	send    bool
	url     string
	token   string
	async   bool
	timeout time.Duration
}

func newCompositeCmd() *cobra.Command {
	o := &compositeOptions{}
	cmd := &cobra.Command{
		Use:   "composite",
		Short: "Frame an image file like a camera capture and optionally send it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.in, "in", "", "input frame (JPEG or PNG)")
	f.StringVar(&o.out, "out", "still.jpg", "output still")
	f.StringVar(&o.facing, "facing", string(capture.FacingEnvironment), "camera facing: user or environment")
	f.StringVar(&o.glyph, "glyph", "", "glyph to stamp near the bottom")
	f.StringVar(&o.fontPath, "font", "", "TrueType/OpenType font for the glyph")
	f.Float64Var(&o.zoom, "zoom", 1, "zoom level, ignored when the camera cannot zoom")
	f.BoolVar(&o.send, "send", false, "submit the still to a running server")
	f.StringVar(&o.url, "url", "http://localhost:3001", "server base URL")
	f.StringVar(&o.token, "token", os.Getenv("SELFIE_TOKEN"), "session or Google access token")
	f.BoolVar(&o.async, "async", false, "do not wait for delivery")
	f.DurationVar(&o.timeout, "timeout", time.Minute, "request timeout")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func (o *compositeOptions) run(cmd *cobra.Command) error {
	facing, err := capture.ParseFacing(o.facing)
	if err != nil {
		return err
	}
	var glyphFont *opentype.Font
	if o.fontPath != "" {
		data, err := os.ReadFile(o.fontPath)
		if err != nil {
			return err
		}
		if glyphFont, err = opentype.Parse(data); err != nil {
			return fmt.Errorf("parse font: %w", err)
		}
	}

	cam := capture.NewCamera(capture.StillDevice{Path: o.in})
	cam.SetFacing(facing)
	if err := cam.Start(cmd.Context()); err != nil {
		return err
	}
	defer cam.Dismiss()
	cam.SetZoom(o.zoom)

	img, err := cam.Capture(o.glyph, glyphFont)
	if err != nil {
		return err
	}
	still, err := capture.EncodeJPEG(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.out, still, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", o.out, len(still))

	if !o.send {
		return nil
	}
	s := &capture.Submitter{BaseURL: o.url, Token: o.token, Timeout: o.timeout, Async: o.async}
	res := <-s.Submit(still, o.glyph)
	if res.Err != nil {
		return res.Err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (capture %s)\n", res.Response.Message, res.Response.CaptureID)
	return nil
}

func newProbeCmd() *cobra.Command {
	cfg := probe.Config{}
	cmd := &cobra.Command{
		Use:   "probe [url] [requests]",
		Short: "Measure how reliably a URL answers",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				cfg.URL = args[0]
			}
			if len(args) > 1 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("requests: %w", err)
				}
				cfg.Requests = n
			}
			return runProbe(cmd, cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.URL, "url", "http://localhost:3001/health", "URL to probe")
	f.IntVar(&cfg.Requests, "requests", 100, "total number of requests")
	f.IntVar(&cfg.Concurrency, "concurrency", 10, "requests in flight at once")
	f.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "per-request timeout")
	f.DurationVar(&cfg.BatchDelay, "delay", 100*time.Millisecond, "pause after each batch")
	return cmd
}

func runProbe(cmd *cobra.Command, cfg probe.Config) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Starting Reliability Test\nURL: %s\nTotal Requests: %d\nConcurrent Requests: %d\nTimeout: %s\n",
		cfg.URL, cfg.Requests, cfg.Concurrency, cfg.Timeout)

	report, err := probe.Run(cmd.Context(), cfg, func(done int, r probe.Result) {
		mark, detail, took := "OK", fmt.Sprintf("Status: %d", r.Status), "N/A"
		if !r.Success {
			mark = "FAIL"
		}
		if r.Status == 0 {
			detail = "Error: " + r.Error
		} else {
			took = fmt.Sprintf("%.3fs", r.Duration.Seconds())
		}
		fmt.Fprintf(out, "[%d/%d] %s Request #%03d | %s | Time: %s\n", done, cfg.Requests, mark, r.N, detail, took)
	})
	if err != nil {
		return err
	}
	report.WriteSummary(out)
	return nil
}
