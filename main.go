package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/veralens/veralensbackend/config"
	"github.com/veralens/veralensbackend/database"
	"github.com/veralens/veralensbackend/diagnostics"
	"github.com/veralens/veralensbackend/handlers"
	"github.com/veralens/veralensbackend/reports"
	"github.com/veralens/veralensbackend/repository"
	"github.com/veralens/veralensbackend/upstream"
	"github.com/veralens/veralensbackend/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.ReportsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}

	analysisRepo := repository.NewAnalysisRepository(db)

	upstreamClient := upstream.New(cfg.UpstreamBaseURL)
	upstreamClient.UploadTimeout = cfg.UploadTimeout

	callLog := diagnostics.NewCallLog(diagnostics.DefaultCapacity)

	log.Printf("Tracking sessions against upstream: %s (poll interval %s, max %d attempts)",
		cfg.UpstreamBaseURL, cfg.PollInterval, cfg.MaxPollAttempts)
	tracker := workers.NewSessionTracker(analysisRepo, upstreamClient,
		cfg.PollInterval, cfg.MaxPollAttempts, cfg.TrackerQueueSize, cfg.NumTrackerWorkers)

	reportBuilder := reports.NewBuilder(upstreamClient, cfg.ReportsPath)
	reportGen := workers.NewReportGenerator(reportBuilder, analysisRepo,
		cfg.ReportQueueSize, cfg.NumReportWorkers)

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing reports in: %s", cfg.ReportsPath)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))
	r.Use(corsHandler.Handler)
	r.Use(handlers.CallLogger(callLog))

	uploadHandler := &handlers.UploadHandler{
		Upstream:    upstreamClient,
		Repo:        analysisRepo,
		Tracker:     tracker,
		FetchClient: &http.Client{Timeout: cfg.URLFetchTimeout},
	}
	sessionHandler := &handlers.SessionHandler{Upstream: upstreamClient}
	reportHandler := &handlers.ReportHandler{Upstream: upstreamClient, Reports: reportGen, Cfg: cfg}
	systemHandler := &handlers.SystemHandler{Upstream: upstreamClient}
	historyHandler := &handlers.HistoryHandler{Repo: analysisRepo}
	debugHandler := &handlers.DebugHandler{CallLog: callLog}

	r.Post("/upload", uploadHandler.Upload)
	r.Post("/upload-url", uploadHandler.UploadURL)

	r.Route("/session/{uuid}", func(r chi.Router) {
		r.Get("/", sessionHandler.GetSession)
		r.Get("/status", sessionHandler.GetSessionStatus)
		r.Get("/original-image", sessionHandler.GetOriginalImage)
		r.Get("/face/{faceIndex}", sessionHandler.GetFaceImage)
	})

	r.Get("/status", systemHandler.Status)
	r.Get("/generate-pdf/{uuid}", reportHandler.GeneratePDF)

	r.Route("/history", func(r chi.Router) {
		r.Get("/", historyHandler.ListHistory)
		r.Get("/{uuid}", historyHandler.GetHistoryEntry)
	})

	r.Get("/api/reports", reportHandler.ListReports)

	r.Get("/reports/*", handlers.ReportFileServer(cfg.ReportsPath))
	log.Printf("Serving report PDFs from %s at /reports/*", cfg.ReportsPath)

	r.Route("/debug", func(r chi.Router) {
		r.Get("/api-calls", debugHandler.RecentAPICalls)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Fatalf("FATAL: Server error: %v", err)
	case sig := <-stop:
		log.Printf("Received signal %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	tracker.Stop()
	reportGen.Stop()
	log.Println("Shutdown complete")
}
