package config

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithLookuper(context.Background(), envconfig.MapLookuper(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, int64(268435456), cfg.MaxUploadBytes)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "/tmp/media-compiler", cfg.TempDir)
	assert.Equal(t, "./out", cfg.OutputDir)
	assert.Equal(t, 1280, cfg.TargetWidth)
	assert.Equal(t, 720, cfg.TargetHeight)
	assert.Equal(t, 92, cfg.JPEGQuality)
	assert.Equal(t, int64(100000000), cfg.MaxImagePixels)
	assert.Equal(t, "exclusive", cfg.SessionPolicy)
	assert.True(t, cfg.ProgressMonotonic)
	assert.Equal(t, time.Duration(0), cfg.ExportTimeout)
	assert.Equal(t, 50, cfg.HistorySize)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())

	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("SESSION_POLICY", "Lenient")
	t.Setenv("EXPORT_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, "lenient", cfg.SessionPolicy)
	assert.Equal(t, 90*time.Second, cfg.ExportTimeout)
}

func TestLoad_CustomValues(t *testing.T) {
	cfg, err := LoadWithLookuper(context.Background(), envconfig.MapLookuper(map[string]string{
		"PORT":                  "9000",
		"ALLOWED_ORIGINS":       "http://localhost:3000,https://studio.example.com",
		"OUTPUT_DIR":            "/srv/out",
		"FFMPEG_PATH":           "/usr/local/bin/ffmpeg",
		"TARGET_WIDTH":          "1920",
		"TARGET_HEIGHT":         "1080",
		"JPEG_QUALITY":          "80",
		"PROGRESS_MONOTONIC":    "false",
		"S3_BUCKET":             "my-bucket",
		"S3_REGION":             "us-east-1",
		"S3_ENDPOINT":           "http://localhost:9000",
		"S3_PREFIX":             "exports",
		"AWS_ACCESS_KEY_ID":     "access-key",
		"AWS_SECRET_ACCESS_KEY": "secret-key",
		"LOG_FORMAT":            "JSON",
		"LOG_LEVEL":             "Debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"http://localhost:3000", "https://studio.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "/srv/out", cfg.OutputDir)
	assert.Equal(t, "/usr/local/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, 1920, cfg.TargetWidth)
	assert.Equal(t, 1080, cfg.TargetHeight)
	assert.Equal(t, 80, cfg.JPEGQuality)
	assert.False(t, cfg.ProgressMonotonic)
	assert.True(t, cfg.S3Enabled())
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "exports", cfg.S3Prefix)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidInteger(t *testing.T) {
	_, err := LoadWithLookuper(context.Background(), envconfig.MapLookuper(map[string]string{
		"PORT": "not-a-number",
	}))
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadWithLookuper(context.Background(), envconfig.MapLookuper(nil))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantVar string
	}{
		{"port out of range", func(c *Config) { c.Port = 70000 }, "PORT"},
		{"no origins", func(c *Config) { c.AllowedOrigins = nil }, "ALLOWED_ORIGINS"},
		{"blank origin", func(c *Config) { c.AllowedOrigins = []string{""} }, "ALLOWED_ORIGINS"},
		{"zero pixel budget", func(c *Config) { c.MaxImagePixels = 0 }, "MAX_IMAGE_PIXELS"},
		{"jpeg quality too high", func(c *Config) { c.JPEGQuality = 101 }, "JPEG_QUALITY"},
		{"zero width", func(c *Config) { c.TargetWidth = 0 }, "TARGET_WIDTH"},
		{"unknown policy", func(c *Config) { c.SessionPolicy = "strict" }, "SESSION_POLICY"},
		{"negative timeout", func(c *Config) { c.ExportTimeout = -time.Second }, "EXPORT_TIMEOUT"},
		{"bad endpoint", func(c *Config) { c.S3Endpoint = "not a url" }, "S3_ENDPOINT"},
		{"minio endpoint without port", func(c *Config) { c.MinIOEndpoint = "localhost" }, "MINIO_ENDPOINT"},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"empty ffmpeg path", func(c *Config) { c.FFmpegPath = "" }, "FFMPEG_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantVar)
		})
	}
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestLoad_MinIO(t *testing.T) {
	cfg, err := LoadWithLookuper(context.Background(), envconfig.MapLookuper(map[string]string{
		"MINIO_ENDPOINT":   "minio:9000",
		"MINIO_BUCKET":     "exports",
		"MINIO_ACCESS_KEY": "minio",
		"MINIO_SECRET_KEY": "minio123",
		"MINIO_USE_SSL":    "true",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.MinIOEnabled())
	assert.False(t, cfg.S3Enabled())
	assert.Equal(t, "us-east-1", cfg.MinIORegion)
	assert.True(t, cfg.MinIOUseSSL)
	assert.NoError(t, cfg.Validate())
	assert.NotContains(t, cfg.String(), "minio123")
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		FFmpegPath:         "/usr/bin/ffmpeg",
		TempDir:            "/tmp/test",
		OutputDir:          "/srv/out",
		TargetWidth:        1280,
		TargetHeight:       720,
		S3Bucket:           "bucket",
		AWSAccessKeyID:     "access-key",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/usr/bin/ffmpeg")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "1280x720")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "access-key")
}

func TestConfig_JSONMasksCredentials(t *testing.T) {
	cfg := &Config{AWSAccessKeyID: "access-key", AWSSecretAccessKey: "secret-key", S3Bucket: "bucket"}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret-key")
	assert.Contains(t, string(b), `"s3_bucket":"bucket"`)
}

func TestConfig_NewLoggerTo(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "json", LogLevel: "info"}
		logger := cfg.NewLoggerTo(&buf)

		logger.Debug("hidden")
		logger.Info("test message", slog.String("key", "value"))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "test message", entry["msg"])
		assert.Equal(t, "value", entry["key"])
		assert.NotContains(t, buf.String(), "hidden")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "text", LogLevel: "debug"}
		logger := cfg.NewLoggerTo(&buf)

		logger.Debug("visible")
		assert.Contains(t, buf.String(), "msg=visible")
		assert.Contains(t, buf.String(), "level=DEBUG")
	})
}

func TestConfig_NewLogger(t *testing.T) {
	cfg := &Config{LogFormat: "text", LogLevel: "debug"}
	require.NotNil(t, cfg.NewLogger())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
