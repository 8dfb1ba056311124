// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// ErrInvalidConfig is returned when a configuration value fails validation.
var ErrInvalidConfig = errors.New("config: invalid value")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`
	MaxUploadBytes int64    `env:"MAX_UPLOAD_BYTES, default=268435456" json:"max_upload_bytes" validate:"min=1"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins" validate:"min=1,dive,required"`

	// Engine settings
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path" validate:"required"`
	TempDir    string `env:"TEMP_DIR, default=/tmp/media-compiler" json:"temp_dir" validate:"required"`

	// Output settings
	OutputDir string `env:"OUTPUT_DIR, default=./out" json:"output_dir" validate:"required"`

	// Image normalization settings
	TargetWidth    int   `env:"TARGET_WIDTH, default=1280" json:"target_width" validate:"min=2,max=7680"`
	TargetHeight   int   `env:"TARGET_HEIGHT, default=720" json:"target_height" validate:"min=2,max=4320"`
	JPEGQuality    int   `env:"JPEG_QUALITY, default=92" json:"jpeg_quality" validate:"min=1,max=100"`
	MaxImagePixels int64 `env:"MAX_IMAGE_PIXELS, default=100000000" json:"max_image_pixels" validate:"min=1"`

	// Export settings
	SessionPolicy     string        `env:"SESSION_POLICY, default=exclusive" json:"session_policy" validate:"oneof=exclusive lenient"`
	ProgressMonotonic bool          `env:"PROGRESS_MONOTONIC, default=true" json:"progress_monotonic"`
	ExportTimeout     time.Duration `env:"EXPORT_TIMEOUT, default=0s" json:"export_timeout" validate:"gte=0"`
	HistorySize       int           `env:"EXPORT_HISTORY_SIZE, default=50" json:"history_size" validate:"min=1"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Optional MinIO settings, used when S3 is not configured. S3_PREFIX applies here too.
	MinIOEndpoint  string `env:"MINIO_ENDPOINT" json:"minio_endpoint,omitempty" validate:"omitempty,hostname_port"`
	MinIOBucket    string `env:"MINIO_BUCKET" json:"minio_bucket,omitempty"`
	MinIORegion    string `env:"MINIO_REGION, default=us-east-1" json:"minio_region,omitempty"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL, default=false" json:"minio_use_ssl"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" json:"-"` // Masked in JSON
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`                   // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level" validate:"oneof=debug info warn warning error"` // "debug", "info", "warn", "error"
}

// MinIOEnabled returns true if MinIO configuration is provided.
func (c *Config) MinIOEnabled() bool {
	return c.MinIOEndpoint != "" && c.MinIOBucket != ""
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// Enumerated values are lower-cased; call Validate to check ranges.
func Load() (*Config, error) {
	return LoadWithLookuper(context.Background(), envconfig.OsLookuper())
}

// LoadWithLookuper reads configuration from l.
func LoadWithLookuper(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.SessionPolicy = strings.ToLower(strings.TrimSpace(cfg.SessionPolicy))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	return cfg, nil
}

// Validate checks every value against its validate tag. The returned error
// names the offending environment variable.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(envName)

	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	fe := verrs[0]
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return fmt.Errorf("%w: %s=%v must satisfy %s", ErrInvalidConfig, fe.Field(), fe.Value(), rule)
}

// envName reports fields by their environment variable name.
func envName(f reflect.StructField) string {
	tag := f.Tag.Get("env")
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return strings.TrimSpace(name)
}

// NewLogger creates a structured logger writing to stdout.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, FFmpegPath: %s, TempDir: %s, OutputDir: %s, Target: %dx%d, SessionPolicy: %s, ExportTimeout: %s, S3Bucket: %s, S3Region: %s, MinIOEndpoint: %s, MinIOBucket: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.FFmpegPath,
		c.TempDir,
		c.OutputDir,
		c.TargetWidth,
		c.TargetHeight,
		c.SessionPolicy,
		c.ExportTimeout,
		c.S3Bucket,
		c.S3Region,
		c.MinIOEndpoint,
		c.MinIOBucket,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
