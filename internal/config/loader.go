package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "formflow"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "FORMFLOW"
)

// Loader handles loading configuration from files, the environment and
// bound flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, so flags bound
// by the CLI take effect.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on v.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// GetViper returns the underlying viper instance for flag binding.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// ConfigFileUsed returns the path of the config file read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load reads configuration and validates it. An empty path searches the
// standard locations; a missing file there is not an error. A .env file in
// the working directory is loaded into the environment first.
func (l *Loader) Load(path string) (*Config, error) {
	cfg, err := l.LoadWithoutValidation(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation is Load without the validation step.
func (l *Loader) LoadWithoutValidation(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Ignoring unreadable .env file", "error", err)
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		for _, p := range SearchPaths() {
			l.v.AddConfigPath(p)
		}
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// SearchPaths returns the directories searched for formflow.yaml.
func SearchPaths() []string {
	paths := []string{"."}
	if dir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(dir, "formflow"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "formflow"))
	}
	return append(paths, "/etc/formflow")
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// FORMFLOW_REMOTE_URL sets remote.url.
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key, which also makes AutomaticEnv see them
// during Unmarshal. Durations are set as strings so a written default file
// reads back the same.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("watch.path", d.Watch.Path)
	l.v.SetDefault("watch.recursive", d.Watch.Recursive)
	l.v.SetDefault("watch.scan_existing", d.Watch.ScanExisting)
	l.v.SetDefault("watch.extensions", []string{})

	l.v.SetDefault("remote.enabled", d.Remote.Enabled)
	l.v.SetDefault("remote.url", d.Remote.URL)
	l.v.SetDefault("remote.username", d.Remote.Username)
	l.v.SetDefault("remote.password", d.Remote.Password)
	l.v.SetDefault("remote.watched_dir", d.Remote.WatchedDir)
	l.v.SetDefault("remote.temp_dir", d.Remote.TempDir)
	l.v.SetDefault("remote.download_dir", d.Remote.DownloadDir)
	l.v.SetDefault("remote.poll_interval", d.Remote.PollInterval.String())
	l.v.SetDefault("remote.timeout", d.Remote.Timeout.String())

	l.v.SetDefault("templates.dir", d.Templates.Dir)
	l.v.SetDefault("templates.threshold", d.Templates.Threshold)
	l.v.SetDefault("templates.backend", d.Templates.Backend)
	l.v.SetDefault("templates.ratio", d.Templates.Ratio)
	l.v.SetDefault("templates.max_distance", d.Templates.MaxDistance)
	l.v.SetDefault("templates.features", d.Templates.Features)
	l.v.SetDefault("templates.canvas_from_template", d.Templates.CanvasFromTemplate)
	l.v.SetDefault("templates.claim_field", d.Templates.ClaimField)

	l.v.SetDefault("rectify.margin", d.Rectify.Margin)
	l.v.SetDefault("rectify.kernel_size", d.Rectify.KernelSize)
	l.v.SetDefault("rectify.epsilon", d.Rectify.Epsilon)
	l.v.SetDefault("rectify.width", d.Rectify.Width)
	l.v.SetDefault("rectify.height", d.Rectify.Height)
	l.v.SetDefault("rectify.debug_dir", d.Rectify.DebugDir)

	l.v.SetDefault("ocr.languages", d.OCR.Languages)
	l.v.SetDefault("ocr.data_path", d.OCR.DataPath)
	l.v.SetDefault("ocr.page_mode", d.OCR.PageMode)
	l.v.SetDefault("ocr.equalize", d.OCR.Equalize)

	l.v.SetDefault("output.dir", d.Output.Dir)

	l.v.SetDefault("submit.endpoint", d.Submit.Endpoint)
	l.v.SetDefault("submit.timeout", d.Submit.Timeout.String())
	l.v.SetDefault("submit.claim_field", d.Submit.ClaimField)
	l.v.SetDefault("submit.description_field", d.Submit.DescriptionField)
	l.v.SetDefault("submit.date_field", d.Submit.DateField)
	l.v.SetDefault("submit.patient_field", d.Submit.PatientField)

	l.v.SetDefault("retry.local_attempts", d.Retry.LocalAttempts)
	l.v.SetDefault("retry.remote_attempts", d.Retry.RemoteAttempts)
	l.v.SetDefault("retry.delay", d.Retry.Delay.String())

	l.v.SetDefault("dedup.store", d.Dedup.Store)
	l.v.SetDefault("dedup.journal_path", d.Dedup.JournalPath)
	l.v.SetDefault("dedup.redis_url", d.Dedup.RedisURL)
	l.v.SetDefault("dedup.redis_key", d.Dedup.RedisKey)

	l.v.SetDefault("server.enabled", d.Server.Enabled)
	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout.String())

	l.v.SetDefault("log.level", d.Log.Level)
}

// AllSettings returns the resolved settings, for display.
func (l *Loader) AllSettings() map[string]any {
	return l.v.AllSettings()
}

// WriteDefault writes a file holding every default. An existing file is
// left alone and reported as an error.
func WriteDefault(path string) error {
	if path == "" {
		path = ConfigFileName + ".yaml"
	}
	l := NewLoaderWith(viper.New())
	l.setDefaults()
	if err := l.v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// Load loads configuration through the global viper instance.
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}
