package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the MangoSense server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Inference InferenceConfig
	Upload    UploadConfig
}

type ServerConfig struct {
	Port             int
	Env              string
	PredictRateLimit int
	TrustedProxies   []netip.Prefix
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

// InferenceConfig selects the classifier backend and where its artifacts live.
type InferenceConfig struct {
	Backend             string
	ModelDir            string
	LeafModelPath       string
	FruitModelPath      string
	ConfidenceThreshold float64
	ONNX                ONNXConfig
	TFLite              TFLiteConfig
	TFServing           TFServingConfig
}

type ONNXConfig struct {
	SharedLibraryPath string
}

type TFLiteConfig struct {
	Threads int
}

type TFServingConfig struct {
	BaseURL string
	Timeout time.Duration
}

type UploadConfig struct {
	MediaDir        string
	MaxImageBytes   int64
	MaxRequestBytes int64
}

var validBackends = map[string]bool{
	"onnx":      true,
	"tflite":    true,
	"tfserving": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:             envInt("MANGOSENSE_PORT", 8000),
			Env:              envString("MANGOSENSE_ENV", "development"),
			PredictRateLimit: envInt("PREDICT_RATE_LIMIT", 30),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Inference: inferenceFromEnv(),
		Upload: UploadConfig{
			MediaDir:        envString("MEDIA_DIR", "media"),
			MaxImageBytes:   envInt64("MAX_UPLOAD_BYTES", 5*1024*1024),
			MaxRequestBytes: envInt64("MAX_REQUEST_BYTES", 32*1024*1024),
		},
	}

	proxies, err := parsePrefixes(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	cfg.Server.TrustedProxies = proxies

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parsePrefixes reads a comma-separated list of CIDRs or bare addresses.
func parsePrefixes(v string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, err
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if err := c.Inference.validate(); err != nil {
		return err
	}

	if c.Upload.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Upload.MaxRequestBytes < c.Upload.MaxImageBytes {
		return fmt.Errorf("MAX_REQUEST_BYTES (%d) must not be smaller than MAX_UPLOAD_BYTES (%d)",
			c.Upload.MaxRequestBytes, c.Upload.MaxImageBytes)
	}

	return nil
}

// LoadInference reads only the inference settings. Operator commands that
// never touch the database or Redis use it instead of Load.
func LoadInference() (InferenceConfig, error) {
	cfg := inferenceFromEnv()
	if err := cfg.validate(); err != nil {
		return InferenceConfig{}, err
	}
	return cfg, nil
}

func inferenceFromEnv() InferenceConfig {
	return InferenceConfig{
		Backend:             envString("INFERENCE_BACKEND", "onnx"),
		ModelDir:            envString("MODEL_DIR", "models"),
		LeafModelPath:       os.Getenv("LEAF_MODEL_PATH"),
		FruitModelPath:      os.Getenv("FRUIT_MODEL_PATH"),
		ConfidenceThreshold: envFloat("CONFIDENCE_THRESHOLD", 20.0),
		ONNX: ONNXConfig{
			SharedLibraryPath: os.Getenv("ONNXRUNTIME_LIB_PATH"),
		},
		TFLite: TFLiteConfig{
			Threads: envInt("TFLITE_THREADS", 2),
		},
		TFServing: TFServingConfig{
			BaseURL: os.Getenv("TFSERVING_URL"),
			Timeout: envDuration("TFSERVING_TIMEOUT", 30*time.Second),
		},
	}
}

func (c InferenceConfig) validate() error {
	if !validBackends[c.Backend] {
		return fmt.Errorf("INFERENCE_BACKEND must be one of onnx, tflite, tfserving; got %q", c.Backend)
	}

	if c.Backend == "tfserving" {
		if c.TFServing.BaseURL == "" {
			return fmt.Errorf("TFSERVING_URL is required when INFERENCE_BACKEND is tfserving")
		}
		u := c.TFServing.BaseURL
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("TFSERVING_URL must start with http:// or https://, got %q", u)
		}
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be between 0 and 100, got %v", c.ConfidenceThreshold)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
