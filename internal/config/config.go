package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	MinIO     MinIOConfig     `yaml:"minio"`
	NATS      NATSConfig      `yaml:"nats"`
	Vision    VisionConfig    `yaml:"vision"`
	Camera    CameraConfig    `yaml:"camera"`
	Scan      ScanConfig      `yaml:"scan"`
	Checkout  CheckoutConfig  `yaml:"checkout"`
	Recommend RecommendConfig `yaml:"recommend"`
	Cache     CacheConfig     `yaml:"cache"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type VisionConfig struct {
	ModelsDir            string  `yaml:"models_dir"`
	DetectionThreshold   float64 `yaml:"detection_threshold"`
	RecognitionThreshold float64 `yaml:"recognition_threshold"`
	// SearchThreshold and SearchLimit tune the /v1/search endpoint, which
	// runs server-side against the embedding column rather than through
	// the live matcher.
	SearchThreshold float64 `yaml:"search_threshold"`
	SearchLimit     int     `yaml:"search_limit"`
}

type CameraConfig struct {
	Device     string `yaml:"device"` // v4l2 device path or stream URL
	FPS        int    `yaml:"fps"`
	FrameWidth int    `yaml:"frame_width"`
}

// ScanConfig carries the capture-session timing knobs. Both exhaustion
// variants are configured here; which one runs is chosen per scan.
type ScanConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	AttemptInterval time.Duration `yaml:"attempt_interval"`
	Window          time.Duration `yaml:"window"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MatchDelay      time.Duration `yaml:"match_delay"`
}

type CheckoutConfig struct {
	TaxRate float64 `yaml:"tax_rate"`
}

type RecommendConfig struct {
	MinFrequency int `yaml:"min_frequency"`
	TopN         int `yaml:"top_n"`
}

type CacheConfig struct {
	Path string `yaml:"path"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// Default returns a config with every default applied and no file read.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.RecognitionThreshold == 0 {
		cfg.Vision.RecognitionThreshold = 0.6
	}
	if cfg.Vision.SearchThreshold == 0 {
		cfg.Vision.SearchThreshold = 0.4
	}
	if cfg.Vision.SearchLimit == 0 {
		cfg.Vision.SearchLimit = 5
	}
	if cfg.Camera.FPS == 0 {
		cfg.Camera.FPS = 5
	}
	if cfg.Camera.FrameWidth == 0 {
		cfg.Camera.FrameWidth = 640
	}
	if cfg.Scan.MaxAttempts == 0 {
		cfg.Scan.MaxAttempts = 10
	}
	if cfg.Scan.AttemptInterval == 0 {
		cfg.Scan.AttemptInterval = 2 * time.Second
	}
	if cfg.Scan.Window == 0 {
		cfg.Scan.Window = 5 * time.Second
	}
	if cfg.Scan.PollInterval == 0 {
		cfg.Scan.PollInterval = 1500 * time.Millisecond
	}
	if cfg.Scan.MatchDelay == 0 {
		cfg.Scan.MatchDelay = time.Second
	}
	if cfg.Checkout.TaxRate == 0 {
		cfg.Checkout.TaxRate = 0.08
	}
	if cfg.Recommend.MinFrequency == 0 {
		cfg.Recommend.MinFrequency = 2
	}
	if cfg.Recommend.TopN == 0 {
		cfg.Recommend.TopN = 3
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = "facepos-cache.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("POS_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("POS_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POS_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("POS_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("POS_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("POS_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("POS_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("POS_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("POS_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("POS_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("POS_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("POS_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("POS_CAMERA_DEVICE"); v != "" {
		cfg.Camera.Device = v
	}
	if v := os.Getenv("POS_RECOGNITION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Vision.RecognitionThreshold = f
		}
	}
	if v := os.Getenv("POS_SCAN_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.MaxAttempts = n
		}
	}
	if v := os.Getenv("POS_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
}
