package cmd

import (
	"encoding/json"
	"errors"

	"github.com/MeKo-Tech/formflow/internal/batch"
	"github.com/MeKo-Tech/formflow/internal/intake"
	"github.com/MeKo-Tech/formflow/internal/pipeline"
	"github.com/spf13/cobra"
)

func newProcessCommand(a *app) *cobra.Command {
	var (
		write     bool
		submit    bool
		quiet     bool
		recursive bool
		include   []string
		exclude   []string
	)
	cmd := &cobra.Command{
		Use:   "process <file|dir>...",
		Short: "Process scanned forms once and print their records",
		Long: `Run correction, template matching and field extraction on each file and
print the outcome as JSON, one document per file. Directories are expanded
to the scans they contain.

Examples:
  formflow process scan.jpg
  formflow process scans/ --recursive --write --output records/
  formflow process scans/ --include '*.pdf' --exclude 'draft-*'
  formflow process scan.pdf --write --submit`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			files, err := batch.Discover(args, batch.Selection{
				Recursive: recursive,
				Include:   include,
				Exclude:   exclude,
				Accept:    cfg.Accept(),
			})
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return errors.New("no scans found")
			}

			var handlers []intake.Handler
			if write {
				handlers = append(handlers, intake.NewRecordWriter(cfg.Output.Dir))
			}
			if submit {
				s := intake.NewSubmitter(cfg.SubmitterConfig(), nil)
				if !s.Enabled() {
					return errors.New("--submit needs submit.endpoint to be configured")
				}
				handlers = append(handlers, s)
			}

			proc, release, err := a.newProcessor(cfg)
			if err != nil {
				return err
			}
			defer release()

			var progress pipeline.ProgressCallback = pipeline.NoOpProgressCallback{}
			if !quiet && len(files) > 1 {
				progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "process: ")
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			r := &batch.Runner{
				Processor: proc,
				Handlers:  handlers,
				Progress:  progress,
				Emit:      func(out *pipeline.Outcome) error { return enc.Encode(out) },
			}
			return r.Run(cmd.Context(), files).Err()
		},
	}

	f := cmd.Flags()
	f.BoolVar(&write, "write", false, "write each record as <name>.json")
	f.BoolVar(&submit, "submit", false, "submit the claim fields to submit.endpoint")
	f.BoolVarP(&quiet, "quiet", "q", false, "no progress lines")
	f.BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	f.StringSliceVar(&include, "include", nil, "only files matching these globs (directories only)")
	f.StringSliceVar(&exclude, "exclude", nil, "skip files matching these globs")
	f.String("output", "", "directory for records written with --write")
	a.bind(cmd, "output", "output.dir")
	return cmd
}
