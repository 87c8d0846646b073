//nolint:lll
package config

import "time"

// Config represents the complete configuration of the formflow service.
// It is loaded from a configuration file, environment variables and
// command-line flags, in increasing precedence.
type Config struct {
	// Local directory watch
	Watch WatchConfig `mapstructure:"watch" yaml:"watch" json:"watch"`

	// Remote (FTP) intake
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote" json:"remote"`

	// Reference templates and matching
	Templates TemplatesConfig `mapstructure:"templates" yaml:"templates" json:"templates"`

	// Page boundary detection and warping
	Rectify RectifyConfig `mapstructure:"rectify" yaml:"rectify" json:"rectify"`

	OCR    OCRConfig    `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
	Submit SubmitConfig `mapstructure:"submit" yaml:"submit" json:"submit"`
	Retry  RetryConfig  `mapstructure:"retry" yaml:"retry" json:"retry"`
	Dedup  DedupConfig  `mapstructure:"dedup" yaml:"dedup" json:"dedup"`

	// Status server (health, metrics, event stream)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	Log LogConfig `mapstructure:"log" yaml:"log" json:"log"`
}

// WatchConfig describes the local intake directory.
type WatchConfig struct {
	Path         string   `mapstructure:"path" yaml:"path" json:"path"`
	Recursive    bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	ScanExisting bool     `mapstructure:"scan_existing" yaml:"scan_existing" json:"scan_existing"`
	Extensions   []string `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
}

// RemoteConfig describes the FTP intake.
type RemoteConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	URL          string        `mapstructure:"url" yaml:"url" json:"url"`
	Username     string        `mapstructure:"username" yaml:"username" json:"username"`
	Password     string        `mapstructure:"password" yaml:"password" json:"-"`
	WatchedDir   string        `mapstructure:"watched_dir" yaml:"watched_dir" json:"watched_dir"`
	TempDir      string        `mapstructure:"temp_dir" yaml:"temp_dir" json:"temp_dir"`
	DownloadDir  string        `mapstructure:"download_dir" yaml:"download_dir" json:"download_dir"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// TemplatesConfig selects the template library and the matching backend.
type TemplatesConfig struct {
	Dir                string  `mapstructure:"dir" yaml:"dir" json:"dir"`
	Threshold          float64 `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	Backend            string  `mapstructure:"backend" yaml:"backend" json:"backend"`
	Ratio              float64 `mapstructure:"ratio" yaml:"ratio" json:"ratio"`
	MaxDistance        int     `mapstructure:"max_distance" yaml:"max_distance" json:"max_distance"`
	Features           int     `mapstructure:"features" yaml:"features" json:"features"`
	CanvasFromTemplate bool    `mapstructure:"canvas_from_template" yaml:"canvas_from_template" json:"canvas_from_template"`
	ClaimField         string  `mapstructure:"claim_field" yaml:"claim_field" json:"claim_field"`
}

// RectifyConfig tunes page boundary detection.
type RectifyConfig struct {
	Margin     int     `mapstructure:"margin" yaml:"margin" json:"margin"`
	KernelSize int     `mapstructure:"kernel_size" yaml:"kernel_size" json:"kernel_size"`
	Epsilon    float64 `mapstructure:"epsilon" yaml:"epsilon" json:"epsilon"`
	Width      int     `mapstructure:"width" yaml:"width" json:"width"`
	Height     int     `mapstructure:"height" yaml:"height" json:"height"`
	DebugDir   string  `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// OCRConfig selects Tesseract languages and data.
type OCRConfig struct {
	Languages string `mapstructure:"languages" yaml:"languages" json:"languages"`
	DataPath  string `mapstructure:"data_path" yaml:"data_path" json:"data_path"`
	PageMode  int    `mapstructure:"page_mode" yaml:"page_mode" json:"page_mode"`
	Equalize  bool   `mapstructure:"equalize" yaml:"equalize" json:"equalize"`
}

// OutputConfig places extraction records.
type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// SubmitConfig configures the downstream claim endpoint.
type SubmitConfig struct {
	Endpoint         string        `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	ClaimField       string        `mapstructure:"claim_field" yaml:"claim_field" json:"claim_field"`
	DescriptionField string        `mapstructure:"description_field" yaml:"description_field" json:"description_field"`
	DateField        string        `mapstructure:"date_field" yaml:"date_field" json:"date_field"`
	PatientField     string        `mapstructure:"patient_field" yaml:"patient_field" json:"patient_field"`
}

// RetryConfig bounds processing attempts.
type RetryConfig struct {
	LocalAttempts  int           `mapstructure:"local_attempts" yaml:"local_attempts" json:"local_attempts"`
	RemoteAttempts int           `mapstructure:"remote_attempts" yaml:"remote_attempts" json:"remote_attempts"`
	Delay          time.Duration `mapstructure:"delay" yaml:"delay" json:"delay"`
}

// DedupConfig selects where processed files are remembered.
type DedupConfig struct {
	Store       string `mapstructure:"store" yaml:"store" json:"store"`
	JournalPath string `mapstructure:"journal_path" yaml:"journal_path" json:"journal_path"`
	RedisURL    string `mapstructure:"redis_url" yaml:"redis_url" json:"redis_url"`
	RedisKey    string `mapstructure:"redis_key" yaml:"redis_key" json:"redis_key"`
}

// ServerConfig contains status server settings.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Host            string        `mapstructure:"host" yaml:"host" json:"host"`
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string        `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" json:"level"`
}
