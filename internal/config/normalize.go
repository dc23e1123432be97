package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBootstrap()
	c.normalizeBeatSaver()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.EnvironmentsDir, err = expandPath(c.Paths.EnvironmentsDir); err != nil {
		return fmt.Errorf("paths.environments_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.RawMapsDir, err = expandPath(c.Paths.RawMapsDir); err != nil {
		return fmt.Errorf("paths.raw_maps_dir: %w", err)
	}
	if c.Paths.FilteredMapsDir, err = expandPath(c.Paths.FilteredMapsDir); err != nil {
		return fmt.Errorf("paths.filtered_maps_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBootstrap() {
	c.Bootstrap.Interpreter = strings.TrimSpace(c.Bootstrap.Interpreter)
	if c.Bootstrap.Interpreter == "" {
		c.Bootstrap.Interpreter = defaultInterpreter
	}
	c.Bootstrap.VenvModule = strings.TrimSpace(c.Bootstrap.VenvModule)
	if c.Bootstrap.VenvModule == "" {
		c.Bootstrap.VenvModule = defaultVenvModule
	}
	c.Bootstrap.ManifestName = strings.TrimSpace(c.Bootstrap.ManifestName)
	if c.Bootstrap.ManifestName == "" {
		c.Bootstrap.ManifestName = defaultManifestName
	}
	if c.Bootstrap.LockTimeout <= 0 {
		c.Bootstrap.LockTimeout = defaultLockTimeout
	}
	if c.Bootstrap.InstallTimeout <= 0 {
		c.Bootstrap.InstallTimeout = defaultInstallTimeout
	}
}

func (c *Config) normalizeBeatSaver() {
	c.BeatSaver.BaseURL = strings.TrimRight(strings.TrimSpace(c.BeatSaver.BaseURL), "/")
	if c.BeatSaver.BaseURL == "" {
		c.BeatSaver.BaseURL = defaultBeatSaverBaseURL
	}
	c.BeatSaver.UserAgent = strings.TrimSpace(c.BeatSaver.UserAgent)
	if c.BeatSaver.UserAgent == "" {
		c.BeatSaver.UserAgent = defaultBeatSaverAgent
	}
	if c.BeatSaver.RequestTimeout <= 0 {
		c.BeatSaver.RequestTimeout = defaultRequestTimeout
	}
	if c.BeatSaver.PageDelay < 0 {
		c.BeatSaver.PageDelay = defaultBeatSaverPageWait
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
