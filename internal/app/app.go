package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"selfie-mailer/internal/config"
	"selfie-mailer/internal/db"
	"selfie-mailer/internal/handlers"
	"selfie-mailer/internal/services"
	"selfie-mailer/internal/storage"
	"selfie-mailer/web"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/oauth2"
)

// Deps is everything the HTTP layer needs
type Deps struct {
	Config    config.Config
	Sessions  *services.SessionService
	Mailboxes services.MailboxFactory
	Records   services.RecordStore
	Capture   *services.CaptureService
	Hub       *handlers.StatusHub
	// OAuth is nil when no Google client is configured
	OAuth *oauth2.Config
	// UploadDir is served at /uploads when captures are stored locally
	UploadDir string
}

// Build wires the production services from cfg. The returned cleanup closes
// what Build opened.
func Build(ctx context.Context, cfg config.Config) (*Deps, func(), error) {
	cleanup := func() {}

	objects, uploadDir, err := NewObjectStore(ctx, cfg)
	if err != nil {
		return nil, cleanup, err
	}

	records, closeRecords, err := NewRecordStore(ctx, cfg, objects)
	if err != nil {
		return nil, cleanup, err
	}
	cleanup = closeRecords

	sessions, err := services.NewSessionService(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return nil, cleanup, err
	}

	hub := handlers.NewStatusHub()
	mailboxes := services.GmailMailboxFactory()
	captioner := services.NewOpenAICaptioner(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.CaptionMaxTokens)
	capture := services.NewCaptureService(mailboxes, objects, captioner, records, services.NewPhotoMailer(cfg.SenderEmail), hub)

	d := &Deps{
		Config:    cfg,
		Sessions:  sessions,
		Mailboxes: mailboxes,
		Records:   records,
		Capture:   capture,
		Hub:       hub,
		UploadDir: uploadDir,
	}
	if cfg.OAuthEnabled() {
		d.OAuth = services.NewGoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleSecret, cfg.BaseURL)
	} else {
		log.Println("Warning: GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, sign-in is disabled")
	}
	return d, cleanup, nil
}

// NewObjectStore picks S3 when a bucket is configured and the local upload
// directory otherwise. The second return value is the directory to serve.
func NewObjectStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, string, error) {
	if cfg.UsesS3() {
		s, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretKey,
			Endpoint:        cfg.S3Endpoint,
		})
		return s, "", err
	}
	log.Printf("Warning: AWS_S3_BUCKET_NAME not set, storing captures under %s", cfg.UploadDir)
	s, err := storage.NewLocalStore(cfg.UploadDir, cfg.BaseURL)
	if err != nil {
		return nil, "", err
	}
	return s, s.Root(), nil
}

func NewRecordStore(ctx context.Context, cfg config.Config, objects storage.ObjectStore) (services.RecordStore, func(), error) {
	switch cfg.RecordStore {
	case "", "document":
		return services.NewDocumentRecordStore(objects), func() {}, nil
	case "postgres":
		if err := db.InitDB(cfg.DatabaseURL); err != nil {
			return nil, func() {}, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.CloseDB()
			return nil, func() {}, err
		}
		return services.NewPostgresRecordStore(db.Pool), db.CloseDB, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown RECORD_STORE %q", cfg.RecordStore)
	}
}

// NewFiberApp registers middleware and routes
func NewFiberApp(d *Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: d.Config.MaxBodyBytes,
	})

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	if d.UploadDir != "" {
		// the record document shares the directory but is not public
		app.Use("/uploads/metadata", func(c *fiber.Ctx) error {
			return fiber.ErrNotFound
		})
		app.Static("/uploads", d.UploadDir)
	}

	// Browser client
	static := http.FS(web.Static())
	app.Use("/static", filesystem.New(filesystem.Config{Root: static}))
	app.Get("/", func(c *fiber.Ctx) error {
		return filesystem.SendFile(c, static, "index.html")
	})
	app.Get("/admin", func(c *fiber.Ctx) error {
		return filesystem.SendFile(c, static, "admin.html")
	})

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Sign-in
	if d.OAuth != nil {
		app.Get("/auth/login", handlers.LoginHandler(d.OAuth))
		app.Get("/auth/callback", handlers.CallbackHandler(d.OAuth, d.Sessions))
	}
	app.Post("/auth/logout", handlers.LogoutHandler)

	// Protected Routes
	auth := handlers.AuthMiddleware(d.Sessions)
	identity := handlers.IdentityMiddleware(d.Mailboxes)

	app.Get("/profile", auth, handlers.ProfileHandler(d.Mailboxes))
	app.Get("/labels", auth, handlers.LabelsHandler(d.Mailboxes))
	app.Get("/messages", auth, handlers.MessagesHandler(d.Mailboxes))
	app.Post("/send-photo", auth, handlers.SendPhotoHandler(d.Capture))

	// identity verifies the credential with Google before any record is listed
	app.Get("/admin/photos", auth, identity, handlers.AdminOnly(d.Config.AdminEmails), handlers.AdminPhotosHandler(d.Records))

	// Status socket
	// Note: Middleware order matters. The upgrade check runs before auth.
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Get("/ws", auth, identity, handlers.StatusSocketHandler(d.Hub))

	return app
}

// Run serves until SIGINT/SIGTERM
func Run(cfg config.Config) error {
	d, cleanup, err := Build(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	app := NewFiberApp(d)

	// Start Server
	errc := make(chan error, 1)
	go func() {
		errc <- app.Listen(":" + cfg.Port)
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case <-c:
	}
	log.Println("Gracefully shutting down...")
	_ = app.Shutdown()
	log.Println("Server shutdown complete")
	return nil
}
