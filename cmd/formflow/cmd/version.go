package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/formflow/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			v, commit, date := version.Info()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "formflow %s\ncommit: %s\nbuilt: %s\n", v, commit, date)
		},
	}
}
