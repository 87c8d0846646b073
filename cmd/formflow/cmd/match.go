package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/MeKo-Tech/formflow/internal/forms"
	"github.com/MeKo-Tech/formflow/internal/matcher"
	"github.com/MeKo-Tech/formflow/internal/pipeline"
	"github.com/MeKo-Tech/formflow/internal/rectify"
	"github.com/spf13/cobra"
)

// scoreLine is one template in the match report.
type scoreLine struct {
	Template    string  `json:"template"`
	Descriptors int     `json:"descriptors"`
	Accepted    int     `json:"accepted"`
	Percentage  float64 `json:"percentage"`
	Error       string  `json:"error,omitempty"`
}

type matchReport struct {
	File      string      `json:"file"`
	Backend   string      `json:"backend"`
	Threshold float64     `json:"threshold"`
	Corrected bool        `json:"corrected"`
	Matched   string      `json:"matched,omitempty"`
	Scores    []scoreLine `json:"scores"`
}

func newMatchCommand(a *app) *cobra.Command {
	var (
		asJSON    bool
		noCorrect bool
	)
	cmd := &cobra.Command{
		Use:   "match <file>",
		Short: "Score a scan against every template",
		Long: `Compare a scan with each reference image in the template directory and
print the percentage of template features found in the scan. The best
template is chosen when it reaches the threshold.

Examples:
  formflow match scan.jpg
  formflow match scan.jpg --templates forms/ --threshold 8 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			backend, err := a.newBackend(cfg)
			if err != nil {
				return err
			}
			m := matcher.New(backend)
			defer func() { _ = m.Close() }()

			templates, err := forms.NewLibrary(cfg.Templates.Dir).Templates()
			if err != nil {
				return err
			}
			img, err := pipeline.LoadSource(args[0])
			if err != nil {
				return err
			}

			report := matchReport{File: args[0], Backend: m.Backend(), Threshold: cfg.Templates.Threshold}
			if !noCorrect {
				res, err := rectify.New(cfg.PipelineConfig().Rectify).Correct(img)
				switch {
				case err == nil:
					img = res.Image
					report.Corrected = true
				case rectify.IsGeometryError(err):
					slog.Warn("Page could not be corrected, matching uncorrected", "error", err)
				default:
					return err
				}
			}

			res, err := m.Match(cmd.Context(), img, cfg.Templates.Threshold, templates)
			if err != nil {
				return err
			}
			if res.Found {
				report.Matched = filepath.Base(res.TemplatePath)
			}
			for _, s := range res.Scores {
				line := scoreLine{
					Template:    filepath.Base(s.Template),
					Descriptors: s.Descriptors,
					Accepted:    s.Accepted,
					Percentage:  s.Percentage,
				}
				if s.Err != nil {
					line.Error = s.Err.Error()
				}
				report.Scores = append(report.Scores, line)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&noCorrect, "no-correct", false, "match the scan as it is")
	return cmd
}

func printReport(cmd *cobra.Command, r matchReport) {
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "%s (backend %s, threshold %.2f%%)\n", r.File, r.Backend, r.Threshold)
	for _, s := range r.Scores {
		if s.Error != "" {
			_, _ = fmt.Fprintf(w, "  %-32s error: %s\n", s.Template, s.Error)
			continue
		}
		_, _ = fmt.Fprintf(w, "  %-32s %6.2f%%  (%d/%d)\n", s.Template, s.Percentage, s.Accepted, s.Descriptors)
	}
	if r.Matched == "" {
		_, _ = fmt.Fprintln(w, "no template matched")
		return
	}
	_, _ = fmt.Fprintf(w, "matched: %s\n", r.Matched)
}
