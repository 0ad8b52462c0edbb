package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facepos/internal/api"
	"github.com/your-org/facepos/internal/api/ws"
	"github.com/your-org/facepos/internal/cache"
	"github.com/your-org/facepos/internal/camera"
	"github.com/your-org/facepos/internal/catalog"
	"github.com/your-org/facepos/internal/config"
	"github.com/your-org/facepos/internal/enroll"
	"github.com/your-org/facepos/internal/observability"
	"github.com/your-org/facepos/internal/pos"
	"github.com/your-org/facepos/internal/queue"
	"github.com/your-org/facepos/internal/recognize"
	"github.com/your-org/facepos/internal/session"
	"github.com/your-org/facepos/internal/signature"
	"github.com/your-org/facepos/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facepos kiosk service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("migrate schema", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS. The kiosk keeps working without it.
	var producer *queue.Producer
	producer, err = queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Warn("connect to nats, events disabled", "error", err)
		producer = nil
	} else {
		defer producer.Close()
		if err := producer.EnsureStream(context.Background()); err != nil {
			slog.Warn("ensure nats stream", "error", err)
		}
	}

	// Product catalog
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		slog.Error("load product catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "products", len(cat.Products()))

	// Local kiosk cache, best effort
	var kioskCache *cache.Cache
	if cfg.Cache.Path != "" {
		kioskCache, err = cache.Open(cfg.Cache.Path)
		if err != nil {
			slog.Warn("open local cache", "error", err)
			kioskCache = nil
		} else {
			defer kioskCache.Close()
		}
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Recognition models
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("onnx runtime init", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	extractor := recognize.NewONNXExtractor(cfg.Vision)
	defer extractor.Close()

	// Camera
	device := camera.NewFFmpegDevice(cfg.Camera)

	// Capture session manager
	scans := session.NewManager(extractor, device, db, hub, producerOrNil(producer),
		cfg.Scan, cfg.Vision.RecognitionThreshold)
	defer scans.CancelAll()

	// Enrollment and point of sale
	enroller := enroll.NewService(db, minioStore, producerOrNil(producer))
	controller := pos.NewController(db, cacheOrNil(kioskCache), producerOrNil(producer), pos.Options{
		TaxRate:      cfg.Checkout.TaxRate,
		MinFrequency: cfg.Recommend.MinFrequency,
		TopN:         cfg.Recommend.TopN,
	})
	controller.Restore()

	// Signature extraction for the search endpoint
	signatureFn := func(imageData []byte) (signature.Signature, error) {
		if err := extractor.Initialize(context.Background()); err != nil {
			return nil, err
		}
		sig, ok, err := extractor.Detect(imageData)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no face found in image")
		}
		return sig, nil
	}

	router := api.NewRouter(api.RouterConfig{
		APIKey:      cfg.Server.APIKey,
		DB:          db,
		MinIO:       minioStore,
		Producer:    producer,
		Hub:         hub,
		Scans:       scans,
		Catalog:     cat,
		Controller:  controller,
		Enroller:    enroller,
		SignatureFn: signatureFn,

		SearchThreshold: cfg.Vision.SearchThreshold,
		SearchLimit:     cfg.Vision.SearchLimit,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("kiosk API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down kiosk service...")
	scans.CancelAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("kiosk service stopped")
}

// producerOrNil avoids handing a typed-nil *queue.Producer to interface
// fields that check for nil.
func producerOrNil(p *queue.Producer) session.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}

func cacheOrNil(c *cache.Cache) pos.SessionCache {
	if c == nil {
		return nil
	}
	return c
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
