package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/formflow/internal/config"
	"github.com/MeKo-Tech/formflow/internal/matcher"
	"github.com/MeKo-Tech/formflow/internal/ocr"
	"github.com/MeKo-Tech/formflow/internal/pipeline"
	"github.com/MeKo-Tech/formflow/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

// app carries what the commands share: the loaded configuration and the
// factories for the OCR engine and the matching backend.
type app struct {
	cfgFile  string
	verbose  bool
	logLevel string

	loader   *config.Loader
	cfg      *config.Config
	bindings map[*cobra.Command][][2]string

	newEngine  func(cfg *config.Config) (ocr.Engine, func(), error)
	newBackend func(cfg *config.Config) (matcher.Backend, error)
}

func newApp() *app {
	return &app{
		loader:     config.NewLoaderWith(viper.New()),
		bindings:   make(map[*cobra.Command][][2]string),
		newEngine:  newTesseractEngine,
		newBackend: newBackend,
	}
}

// Execute runs the formflow command line.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp())
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "formflow",
		Short: "Scanned form intake: correct, match, extract, submit",
		Long: `formflow takes photographed or scanned paper forms, straightens them,
recognizes which form they are by comparing them with reference templates and
reads the configured fields with OCR.

It runs as a service watching a local directory and/or polling an FTP server,
writes one JSON record per form and submits the claim fields to an HTTP endpoint.

Examples:
  formflow watch --path ./inbox
  formflow watch --remote --remote-url ftp://scanner.local --server
  formflow process scan.jpg --write
  formflow match scan.jpg
  formflow config init`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.GitCommit, version.BuildDate),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := cmd.Annotations[skipConfig]; ok {
				setupLogging(cmd.ErrOrStderr(), a.level(""))
				return nil
			}
			a.bindFlags(cmd)
			cfg, err := a.loader.Load(a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			setupLogging(cmd.ErrOrStderr(), a.level(cfg.Log.Level))
			if used := a.loader.ConfigFileUsed(); used != "" {
				slog.Debug("Loaded configuration", "file", used)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default is formflow.yaml in ., $HOME/.config/formflow, /etc/formflow)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.String("templates", "", "directory of reference templates and their schemas")
	pf.Float64("threshold", 0, "minimum template match percentage (0-100)")
	pf.String("backend", "", "matching backend (orb, sift, orb-cv)")

	v := a.loader.GetViper()
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("templates.dir", pf.Lookup("templates"))
	_ = v.BindPFlag("templates.threshold", pf.Lookup("threshold"))
	_ = v.BindPFlag("templates.backend", pf.Lookup("backend"))

	root.AddCommand(
		newWatchCommand(a),
		newProcessCommand(a),
		newCorrectCommand(a),
		newMatchCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// bind ties a flag of cmd to a configuration key. Several commands may bind
// the same key, so the binding is applied only for the command that runs.
// A flag the user did not set leaves the configured value alone.
func (a *app) bind(cmd *cobra.Command, name, key string) {
	a.bindings[cmd] = append(a.bindings[cmd], [2]string{name, key})
}

func (a *app) bindFlags(cmd *cobra.Command) {
	v := a.loader.GetViper()
	for _, b := range a.bindings[cmd] {
		_ = v.BindPFlag(b[1], cmd.Flags().Lookup(b[0]))
	}
}

// level resolves the effective log level. --verbose wins over everything.
func (a *app) level(configured string) slog.Level {
	if a.verbose {
		return slog.LevelDebug
	}
	name := configured
	if name == "" {
		name = a.logLevel
	}
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(w io.Writer, level slog.Level) {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// newProcessor assembles the single-file pipeline from the configuration.
// The returned function releases the engine and the template cache.
func (a *app) newProcessor(cfg *config.Config) (*pipeline.Processor, func(), error) {
	backend, err := a.newBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	engine, closeEngine, err := a.newEngine(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("OCR engine: %w", err)
	}
	proc, err := pipeline.New(cfg.PipelineConfig(), pipeline.Deps{Engine: engine, Backend: backend})
	if err != nil {
		closeEngine()
		return nil, nil, err
	}
	return proc, func() {
		_ = proc.Close()
		closeEngine()
	}, nil
}
