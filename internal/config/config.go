// Package config loads the TOML configuration shared by the promo renderer
// and the website.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/nstyle/dealership/internal/publish"
	"github.com/nstyle/dealership/internal/raster"
)

//go:embed sample_config.toml
var sampleConfig string

// Promo configures the promo video pipeline.
type Promo struct {
	FPS          int              `toml:"fps"`
	Workers      int              `toml:"workers"` // 0 = physical cores
	Output       string           `toml:"output"`
	Storyboard   string           `toml:"storyboard"` // empty = built-in campaign
	TempDir      string           `toml:"temp_dir"`
	Rasterizer   string           `toml:"rasterizer"` // vector | fitz
	FitzDPI      float64          `toml:"fitz_dpi"`
	Fonts        raster.FontFiles `toml:"fonts"`
	FFmpegPath   string           `toml:"ffmpeg_path"`
	FFprobePath  string           `toml:"ffprobe_path"` // empty = next to ffmpeg_path
	Codec        string           `toml:"codec"` // libx264 | h264_nvenc | h264_videotoolbox | auto
	PixelFormat  string           `toml:"pixel_format"`
	Quality      int              `toml:"quality"`
	Preset       string           `toml:"preset"`
	Verify       bool             `toml:"verify"`
	ShowStats    bool             `toml:"show_stats"`
	BenchmarkLog string           `toml:"benchmark_log"`
	Publish      publish.S3Config `toml:"publish"`
}

// Site configures the dealership website.
type Site struct {
	Addr          string `toml:"addr"`
	Database      string `toml:"database"`
	GalleryDir    string `toml:"gallery_dir"`
	MediaDir      string `toml:"media_dir"`
	RedisAddr     string `toml:"redis_addr"`
	SessionHours  int    `toml:"session_hours"`
	SecureCookie  bool   `toml:"secure_cookie"`
	AdminUser     string `toml:"admin_user"`
	AdminPassword string `toml:"admin_password"`
	UploadLimitMB int    `toml:"upload_limit_mb"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console | json | auto
}

// Config is the whole configuration file.
type Config struct {
	Promo   Promo   `toml:"promo"`
	Site    Site    `toml:"site"`
	Logging Logging `toml:"log"`
}

// SampleConfig returns a commented configuration file with every default.
func SampleConfig() string {
	return sampleConfig
}

// Load reads .env (if present), then the TOML file at path (if it exists),
// then applies environment overrides and validates the result. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("PORT must be numeric, got %q", port)
		}
		c.Site.Addr = ":" + port
	}
	if v := os.Getenv("NSTYLE_DB"); v != "" {
		c.Site.Database = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Site.RedisAddr = v
	}
	if v := os.Getenv("NSTYLE_ADMIN_PASSWORD"); v != "" {
		c.Site.AdminPassword = v
	}
	if v := os.Getenv("NSTYLE_S3_BUCKET"); v != "" {
		c.Promo.Publish.Bucket = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}
