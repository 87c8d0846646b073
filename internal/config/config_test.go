package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "templates", cfg.Templates.Dir)
	assert.InDelta(t, 5.0, cfg.Templates.Threshold, 1e-9)
	assert.Equal(t, BackendORB, cfg.Templates.Backend)
	assert.True(t, cfg.Templates.CanvasFromTemplate)
	assert.Equal(t, "Reservation Number", cfg.Templates.ClaimField)
	assert.Equal(t, 20, cfg.Rectify.Margin)
	assert.Equal(t, 15, cfg.Rectify.KernelSize)
	assert.InDelta(t, 0.04, cfg.Rectify.Epsilon, 1e-9)
	assert.Equal(t, "ara+eng", cfg.OCR.Languages)
	assert.Equal(t, 3, cfg.Retry.LocalAttempts)
	assert.Equal(t, 1, cfg.Retry.RemoteAttempts)
	assert.Equal(t, time.Second, cfg.Retry.Delay)
	assert.Equal(t, "memory", cfg.Dedup.Store)
	assert.Equal(t, "Temp", cfg.Remote.TempDir)
	assert.Equal(t, time.Second, cfg.Remote.PollInterval)
	assert.False(t, cfg.Remote.Enabled)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Submit.Endpoint)

	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"no templates dir", func(c *Config) { c.Templates.Dir = "" }, "templates.dir"},
		{"negative threshold", func(c *Config) { c.Templates.Threshold = -1 }, "threshold"},
		{"threshold above 100", func(c *Config) { c.Templates.Threshold = 101 }, "threshold"},
		{"threshold 100", func(c *Config) { c.Templates.Threshold = 100 }, ""},
		{"unknown backend", func(c *Config) { c.Templates.Backend = "akaze" }, "backend"},
		{"sift backend", func(c *Config) { c.Templates.Backend = BackendSIFT }, ""},
		{"zero ratio", func(c *Config) { c.Templates.Ratio = 0 }, "ratio"},
		{"zero max distance", func(c *Config) { c.Templates.MaxDistance = 0 }, "max_distance"},
		{"zero features", func(c *Config) { c.Templates.Features = 0 }, "features"},
		{"width without height", func(c *Config) { c.Rectify.Width = 800 }, "together"},
		{"canvas", func(c *Config) { c.Rectify.Width, c.Rectify.Height = 800, 1100 }, ""},
		{"negative canvas", func(c *Config) { c.Rectify.Width, c.Rectify.Height = -1, -1 }, "canvas"},
		{"epsilon one", func(c *Config) { c.Rectify.Epsilon = 1 }, "epsilon"},
		{"zero local attempts", func(c *Config) { c.Retry.LocalAttempts = 0 }, "attempts"},
		{"zero remote attempts", func(c *Config) { c.Retry.RemoteAttempts = 0 }, "attempts"},
		{"negative delay", func(c *Config) { c.Retry.Delay = -time.Second }, "retry.delay"},
		{"unknown store", func(c *Config) { c.Dedup.Store = "etcd" }, "dedup.store"},
		{"journal without path", func(c *Config) {
			c.Dedup.Store = "journal"
			c.Dedup.JournalPath = ""
		}, "journal_path"},
		{"redis without url", func(c *Config) { c.Dedup.Store = "redis" }, "redis_url"},
		{"redis", func(c *Config) {
			c.Dedup.Store = "redis"
			c.Dedup.RedisURL = "redis://localhost:6379/0"
		}, ""},
		{"remote without url", func(c *Config) { c.Remote.Enabled = true }, "remote.url"},
		{"remote without poll interval", func(c *Config) {
			c.Remote.Enabled = true
			c.Remote.URL = "ftp.example.com"
			c.Remote.PollInterval = 0
		}, "poll_interval"},
		{"remote", func(c *Config) {
			c.Remote.Enabled = true
			c.Remote.URL = "ftp.example.com"
		}, ""},
		{"server bad port", func(c *Config) {
			c.Server.Enabled = true
			c.Server.Port = 70000
		}, "port"},
		{"disabled server port ignored", func(c *Config) { c.Server.Port = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_PipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Templates.Dir = "/srv/templates"
	cfg.Templates.Threshold = 12.5
	cfg.Templates.CanvasFromTemplate = false
	cfg.Rectify.Width, cfg.Rectify.Height = 850, 1100
	cfg.Rectify.DebugDir = "/tmp/debug"
	cfg.OCR.Equalize = true

	p := cfg.PipelineConfig()
	assert.Equal(t, "/srv/templates", p.TemplatesDir)
	assert.InDelta(t, 12.5, p.Threshold, 1e-9)
	assert.False(t, p.CanvasFromTemplate)
	assert.Equal(t, "Reservation Number", p.ClaimField)
	assert.Equal(t, 850, p.Rectify.Width)
	assert.Equal(t, 1100, p.Rectify.Height)
	assert.Equal(t, 20, p.Rectify.Margin)
	assert.InDelta(t, 0.04, p.Rectify.EpsilonFactor, 1e-9)
	assert.Equal(t, "/tmp/debug", p.Rectify.DebugDir)
	assert.True(t, p.Extract.Equalize)
}

func TestConfig_IntakeConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Path = "/scans"
	cfg.Watch.ScanExisting = true
	cfg.Retry.LocalAttempts = 5
	cfg.Remote.URL = "ftp.example.com:2121"
	cfg.Remote.Username = "scanner"
	cfg.Remote.Password = "secret"
	cfg.Submit.Endpoint = "https://claims.example.com/api"

	ic := cfg.IntakeConfig()
	assert.Equal(t, 5, ic.LocalAttempts)
	assert.Equal(t, 1, ic.RemoteAttempts)
	assert.Equal(t, time.Second, ic.RetryDelay)

	lc := cfg.LocalConfig()
	assert.Equal(t, "/scans", lc.Path)
	assert.True(t, lc.Recursive)
	assert.True(t, lc.ScanExisting)

	rc := cfg.RemoteSourceConfig()
	assert.Equal(t, "/", rc.WatchedDir)
	assert.Equal(t, "fetched", rc.DownloadDir)

	fc := cfg.FTPConfig()
	assert.Equal(t, "ftp.example.com:2121", fc.URL)
	assert.Equal(t, "scanner", fc.Username)
	assert.Equal(t, "secret", fc.Password)
	assert.Equal(t, 30*time.Second, fc.Timeout)

	sc := cfg.SubmitterConfig()
	assert.Equal(t, "https://claims.example.com/api", sc.Endpoint)
	assert.Equal(t, "Date", sc.DateField)

	srv := cfg.StatusServerConfig("1.0.0")
	assert.Equal(t, "localhost:8080", srv.Addr())
	assert.Equal(t, "1.0.0", srv.Version)
}

func TestConfig_Languages(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []string{"ara", "eng"}, cfg.Languages())
}

func TestConfig_Accept(t *testing.T) {
	cfg := DefaultConfig()
	accept := cfg.Accept()
	assert.True(t, accept("scan.png"))
	assert.True(t, accept("scan.pdf"))
	assert.False(t, accept("notes.txt"))

	cfg.Watch.Extensions = []string{"tif"}
	accept = cfg.Accept()
	assert.True(t, accept("scan.TIF"))
	assert.False(t, accept("scan.png"))
}

func TestConfig_OpenStore(t *testing.T) {
	cfg := DefaultConfig()
	store, err := cfg.OpenStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())

	cfg.Dedup.Store = "journal"
	cfg.Dedup.JournalPath = t.TempDir() + "/processed.log"
	store, err = cfg.OpenStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
