package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateBootstrap(); err != nil {
		return err
	}
	if err := c.validateBeatSaver(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.EnvironmentsDir == "" {
		return errors.New("paths.environments_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateBootstrap() error {
	if c.Bootstrap.Interpreter == "" {
		return errors.New("bootstrap.interpreter must be set")
	}
	if c.Bootstrap.MinFreeSpaceGiB < 0 {
		return errors.New("bootstrap.min_free_space_gib must not be negative")
	}
	return nil
}

func (c *Config) validateBeatSaver() error {
	parsed, err := url.Parse(c.BeatSaver.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("beatsaver.base_url %q is not a valid URL", c.BeatSaver.BaseURL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
