package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePromo(); err != nil {
		return err
	}
	if err := c.validateSite(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePromo() error {
	p := c.Promo
	if p.FPS <= 0 {
		return fmt.Errorf("promo.fps must be positive, got %d", p.FPS)
	}
	if p.Workers < 0 {
		return errors.New("promo.workers must be zero or positive")
	}
	if p.Output == "" {
		return errors.New("promo.output must be set")
	}
	if !strings.EqualFold(filepath.Ext(p.Output), ".mp4") {
		return fmt.Errorf("promo.output must end in .mp4, got %q", p.Output)
	}
	switch p.Rasterizer {
	case "vector", "fitz":
	default:
		return fmt.Errorf("promo.rasterizer must be vector or fitz, got %q", p.Rasterizer)
	}
	if p.Quality < 0 {
		return errors.New("promo.quality must be zero or positive")
	}
	return nil
}

func (c *Config) validateSite() error {
	s := c.Site
	if s.Addr == "" {
		return errors.New("site.addr must be set")
	}
	if s.Database == "" {
		return errors.New("site.database must be set")
	}
	if s.SessionHours <= 0 {
		return errors.New("site.session_hours must be positive")
	}
	if s.AdminUser == "" {
		return errors.New("site.admin_user must be set")
	}
	if s.UploadLimitMB <= 0 {
		return errors.New("site.upload_limit_mb must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
		return nil
	}
	return fmt.Errorf("log.format must be auto, console or json, got %q", c.Logging.Format)
}
