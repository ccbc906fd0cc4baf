package main

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nstyle/dealership/internal/config"
	"github.com/nstyle/dealership/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	logger     zerolog.Logger
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads the configuration and builds the logger once.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		log, err := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = log
	})
	return c.config, c.configErr
}

func (c *commandContext) log() zerolog.Logger {
	if _, err := c.ensureConfig(); err != nil {
		return zerolog.Nop()
	}
	return c.logger
}
