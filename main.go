package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"tubescript/api-gateway/config"
	"tubescript/api-gateway/handlers"
	"tubescript/api-gateway/internal/archive"
	"tubescript/api-gateway/internal/extract"
	"tubescript/api-gateway/internal/history"
	"tubescript/api-gateway/middleware"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger()

	db, err := config.NewSupabaseClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase: %v", err)
	}
	authClient, err := config.NewAuthClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize auth client: %v", err)
	}

	store := history.NewSupabaseStore(db, log)
	extractor := extract.NewClient(cfg.ExtractorURL, cfg.ExtractorToken, log)
	reconstructor := archive.NewReconstructor(log)
	h := handlers.NewApplicationHandler(store, extractor, reconstructor, log, db)

	app := fiber.New(fiber.Config{
		// Channel archives can be large; keep the default body limit but
		// allow streaming responses of any size.
		StreamRequestBody: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Admin-Session",
	}))
	app.Use(middleware.RequestLogger(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "API Gateway is healthy",
		})
	})

	apiV1 := app.Group("/api/v1")

	requireUser := middleware.RequireUser(middleware.NewGoTrueResolver(authClient))

	// Extraction routes
	ext := apiV1.Group("/extract", requireUser)
	ext.Post("/video", h.ExtractVideo)
	ext.Post("/channel", h.ExtractChannel)
	ext.Post("/csv", h.ExtractCSV)

	// History routes
	hist := apiV1.Group("/history", requireUser)
	hist.Get("", h.ListHistory)
	hist.Get("/stats", h.HistoryStats)
	hist.Get("/:id/items", h.GetHistoryItems)
	hist.Get("/:id/download", h.DownloadHistoryEntry)
	hist.Delete("/:id", h.DeleteHistoryEntry)
	hist.Delete("", h.ClearHistory)

	// Admin back-office (read only)
	admin := apiV1.Group("/admin", h.RequireAdmin)
	admin.Get("/analytics", h.AdminAnalytics)
	admin.Get("/activity", h.AdminActivity)

	log.Infof("Starting API Gateway on %s", cfg.ListenAddr)
	log.Fatal(app.Listen(cfg.ListenAddr))
}
