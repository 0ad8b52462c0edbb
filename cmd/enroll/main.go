// Command enroll registers an identity from the command line, for
// operators seeding a kiosk without walking through the on-screen flow.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facepos/internal/config"
	"github.com/your-org/facepos/internal/enroll"
	"github.com/your-org/facepos/internal/models"
	"github.com/your-org/facepos/internal/observability"
	"github.com/your-org/facepos/internal/recognize"
	"github.com/your-org/facepos/internal/signature"
	"github.com/your-org/facepos/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	name := flag.String("name", "", "display name (required)")
	email := flag.String("email", "", "email address (required)")
	phone := flag.String("phone", "", "phone number")
	imagePath := flag.String("image", "", "face photo to extract the signature and thumbnail from")
	flag.Parse()

	if *name == "" || *email == "" {
		fmt.Fprintln(os.Stderr, "usage: enroll -name NAME -email EMAIL [-phone PHONE] [-image PHOTO]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

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

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var sig signature.Signature
	var thumbnail []byte
	if *imagePath != "" {
		thumbnail, err = os.ReadFile(*imagePath)
		if err != nil {
			slog.Error("read image", "path", *imagePath, "error", err)
			os.Exit(1)
		}

		ort.SetSharedLibraryPath(onnxLibPath())
		if err := ort.InitializeEnvironment(); err != nil {
			slog.Error("onnx runtime init", "error", err)
			os.Exit(1)
		}
		defer ort.DestroyEnvironment()

		extractor := recognize.NewONNXExtractor(cfg.Vision)
		defer extractor.Close()
		if err := extractor.Initialize(ctx); err != nil {
			slog.Error("load recognition models", "error", err)
			os.Exit(1)
		}

		var ok bool
		sig, ok, err = extractor.Detect(thumbnail)
		if err != nil {
			slog.Error("extract signature", "error", err)
			os.Exit(1)
		}
		if !ok {
			slog.Error("no face found in image", "path", *imagePath)
			os.Exit(1)
		}
	}

	svc := enroll.NewService(db, minioStore, nil)
	profile := models.Profile{DisplayName: *name, Email: *email, Phone: *phone}
	ident, err := svc.Submit(ctx, profile, sig, thumbnail)
	if err != nil {
		slog.Error("enroll identity", "error", err)
		os.Exit(1)
	}

	fmt.Printf("enrolled %s (%s) as %s\n", ident.DisplayName, ident.Email, ident.ID)
}

func onnxLibPath() string {
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
