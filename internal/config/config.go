package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/formflow/internal/extract"
	"github.com/MeKo-Tech/formflow/internal/intake"
	"github.com/MeKo-Tech/formflow/internal/ocr"
	"github.com/MeKo-Tech/formflow/internal/pipeline"
	"github.com/MeKo-Tech/formflow/internal/rectify"
	"github.com/MeKo-Tech/formflow/internal/server"
)

// Matching backends.
const (
	BackendORB   = "orb"    // pure Go, always available
	BackendSIFT  = "sift"   // OpenCV, needs the gocv build tag
	BackendORBCV = "orb-cv" // OpenCV, needs the gocv build tag
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validBackends  = []string{BackendORB, BackendSIFT, BackendORBCV}
	validStores    = []string{"memory", "journal", "redis"}
)

// DefaultConfig returns a configuration with the service defaults.
func DefaultConfig() Config {
	p := pipeline.DefaultConfig()
	rc := rectify.DefaultConfig()
	remote := intake.DefaultRemoteConfig()
	retry := intake.DefaultConfig()
	submit := intake.DefaultSubmitConfig()
	srv := server.DefaultConfig()

	return Config{
		Watch: WatchConfig{
			Path:      "inbox",
			Recursive: true,
		},
		Remote: RemoteConfig{
			WatchedDir:   remote.WatchedDir,
			TempDir:      remote.TempDir,
			DownloadDir:  remote.DownloadDir,
			PollInterval: remote.PollInterval,
			Timeout:      30 * time.Second,
		},
		Templates: TemplatesConfig{
			Dir:                p.TemplatesDir,
			Threshold:          p.Threshold,
			Backend:            BackendORB,
			Ratio:              0.7,
			MaxDistance:        20,
			Features:           500,
			CanvasFromTemplate: p.CanvasFromTemplate,
			ClaimField:         p.ClaimField,
		},
		Rectify: RectifyConfig{
			Margin:     rc.Margin,
			KernelSize: rc.KernelSize,
			Epsilon:    rc.EpsilonFactor,
		},
		OCR: OCRConfig{
			Languages: "ara+eng",
		},
		Submit: SubmitConfig{
			Timeout:          submit.Timeout,
			ClaimField:       submit.ClaimField,
			DescriptionField: submit.DescriptionField,
			DateField:        submit.DateField,
			PatientField:     submit.PatientField,
		},
		Retry: RetryConfig{
			LocalAttempts:  retry.LocalAttempts,
			RemoteAttempts: retry.RemoteAttempts,
			Delay:          retry.RetryDelay,
		},
		Dedup: DedupConfig{
			Store:       "memory",
			JournalPath: "processed.log",
			RedisKey:    "formflow:processed",
		},
		Server: ServerConfig{
			Host:            srv.Host,
			Port:            srv.Port,
			CORSOrigin:      srv.CORSOrigin,
			ShutdownTimeout: srv.ShutdownTimeout,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.Log.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Log.Level, strings.Join(validLogLevels, ", "))
	}
	if c.Templates.Dir == "" {
		return errors.New("templates.dir is required")
	}
	if c.Templates.Threshold < 0 || c.Templates.Threshold > 100 {
		return fmt.Errorf("invalid templates.threshold: %.2f (must be between 0 and 100)", c.Templates.Threshold)
	}
	if !slices.Contains(validBackends, c.Templates.Backend) {
		return fmt.Errorf("invalid templates.backend: %s (must be one of: %s)", c.Templates.Backend, strings.Join(validBackends, ", "))
	}
	if c.Templates.Ratio <= 0 || c.Templates.Ratio > 1 {
		return fmt.Errorf("invalid templates.ratio: %.2f (must be in (0,1])", c.Templates.Ratio)
	}
	if c.Templates.MaxDistance <= 0 {
		return fmt.Errorf("invalid templates.max_distance: %d (must be positive)", c.Templates.MaxDistance)
	}
	if c.Templates.Features <= 0 {
		return fmt.Errorf("invalid templates.features: %d (must be positive)", c.Templates.Features)
	}
	if c.Rectify.Width < 0 || c.Rectify.Height < 0 {
		return fmt.Errorf("invalid rectify canvas %dx%d", c.Rectify.Width, c.Rectify.Height)
	}
	if (c.Rectify.Width == 0) != (c.Rectify.Height == 0) {
		return errors.New("rectify.width and rectify.height must be set together")
	}
	if c.Rectify.Epsilon < 0 || c.Rectify.Epsilon >= 1 {
		return fmt.Errorf("invalid rectify.epsilon: %.3f (must be in [0,1))", c.Rectify.Epsilon)
	}
	if c.Retry.LocalAttempts < 1 || c.Retry.RemoteAttempts < 1 {
		return fmt.Errorf("invalid retry attempts: local %d, remote %d (must be at least 1)",
			c.Retry.LocalAttempts, c.Retry.RemoteAttempts)
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("invalid retry.delay: %s", c.Retry.Delay)
	}
	if !slices.Contains(validStores, c.Dedup.Store) {
		return fmt.Errorf("invalid dedup.store: %s (must be one of: %s)", c.Dedup.Store, strings.Join(validStores, ", "))
	}
	if c.Dedup.Store == "journal" && c.Dedup.JournalPath == "" {
		return errors.New("dedup.journal_path is required for the journal store")
	}
	if c.Dedup.Store == "redis" && c.Dedup.RedisURL == "" {
		return errors.New("dedup.redis_url is required for the redis store")
	}
	if c.Remote.Enabled {
		if c.Remote.URL == "" {
			return errors.New("remote.url is required when remote intake is enabled")
		}
		if c.Remote.PollInterval <= 0 {
			return fmt.Errorf("invalid remote.poll_interval: %s", c.Remote.PollInterval)
		}
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	return nil
}

// PipelineConfig returns the single-file processing configuration.
func (c *Config) PipelineConfig() pipeline.Config {
	opts := extract.DefaultOptions()
	opts.Equalize = c.OCR.Equalize
	return pipeline.Config{
		TemplatesDir:       c.Templates.Dir,
		Threshold:          c.Templates.Threshold,
		ClaimField:         c.Templates.ClaimField,
		CanvasFromTemplate: c.Templates.CanvasFromTemplate,
		Rectify: rectify.Config{
			Margin:        c.Rectify.Margin,
			KernelSize:    c.Rectify.KernelSize,
			EpsilonFactor: c.Rectify.Epsilon,
			Width:         c.Rectify.Width,
			Height:        c.Rectify.Height,
			DebugDir:      c.Rectify.DebugDir,
		},
		Extract: opts,
	}
}

// Languages returns the OCR languages as a list.
func (c *Config) Languages() []string {
	return ocr.ParseLanguages(c.OCR.Languages)
}

// IntakeConfig returns the orchestrator retry settings.
func (c *Config) IntakeConfig() intake.Config {
	return intake.Config{
		LocalAttempts:  c.Retry.LocalAttempts,
		RemoteAttempts: c.Retry.RemoteAttempts,
		RetryDelay:     c.Retry.Delay,
	}
}

// LocalConfig returns the watched directory settings.
func (c *Config) LocalConfig() intake.LocalConfig {
	return intake.LocalConfig{Path: c.Watch.Path, Recursive: c.Watch.Recursive, ScanExisting: c.Watch.ScanExisting}
}

// RemoteSourceConfig returns the remote polling settings.
func (c *Config) RemoteSourceConfig() intake.RemoteConfig {
	return intake.RemoteConfig{
		WatchedDir:   c.Remote.WatchedDir,
		TempDir:      c.Remote.TempDir,
		DownloadDir:  c.Remote.DownloadDir,
		PollInterval: c.Remote.PollInterval,
	}
}

// FTPConfig returns the FTP connection settings.
func (c *Config) FTPConfig() intake.FTPConfig {
	return intake.FTPConfig{
		URL:      c.Remote.URL,
		Username: c.Remote.Username,
		Password: c.Remote.Password,
		Timeout:  c.Remote.Timeout,
	}
}

// SubmitterConfig returns the submission settings.
func (c *Config) SubmitterConfig() intake.SubmitConfig {
	return intake.SubmitConfig{
		Endpoint:         c.Submit.Endpoint,
		Timeout:          c.Submit.Timeout,
		ClaimField:       c.Submit.ClaimField,
		DescriptionField: c.Submit.DescriptionField,
		DateField:        c.Submit.DateField,
		PatientField:     c.Submit.PatientField,
	}
}

// StatusServerConfig returns the status server settings.
func (c *Config) StatusServerConfig(version string) server.Config {
	return server.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		CORSOrigin:      c.Server.CORSOrigin,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		Version:         version,
	}
}

// OpenStore opens the configured de-duplication store.
func (c *Config) OpenStore() (intake.Store, error) {
	return intake.OpenStore(c.Dedup.Store, c.Dedup.JournalPath, c.Dedup.RedisURL, c.Dedup.RedisKey)
}

// Accept returns the filter for files worth processing.
func (c *Config) Accept() func(string) bool {
	return intake.ExtensionFilter(c.Watch.Extensions)
}
