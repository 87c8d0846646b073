package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/formflow/internal/pipeline"
	"github.com/MeKo-Tech/formflow/internal/rectify"
	"github.com/MeKo-Tech/formflow/internal/utils"
	"github.com/spf13/cobra"
)

func newCorrectCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <input> <output>",
		Short: "Straighten a photographed page and save it",
		Long: `Find the page outline in the input, undo its perspective and rotation and
save the result. The output format follows the output file extension.

Examples:
  formflow correct photo.jpg page.png
  formflow correct photo.jpg page.png --width 1654 --height 2339 --debug-dir debug/`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := pipeline.LoadSource(args[0])
			if err != nil {
				return err
			}
			res, err := rectify.New(a.cfg.PipelineConfig().Rectify).Correct(img)
			if err != nil {
				return fmt.Errorf("correct %s: %w", args[0], err)
			}
			if err := utils.SaveImage(args[1], res.Image); err != nil {
				return err
			}

			b := res.Image.Bounds()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%dx%d, orientation %s, mirrored %t)\n",
				args[0], args[1], b.Dx(), b.Dy(), res.Orientation, res.Mirrored)
			for i, c := range res.Corners {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  corner %d: (%.1f, %.1f)\n", i, c.X, c.Y)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Int("width", 0, "canvas width (default: input width)")
	f.Int("height", 0, "canvas height (default: input height)")
	f.String("debug-dir", "", "write the page mask and detected outline here")
	a.bind(cmd, "width", "rectify.width")
	a.bind(cmd, "height", "rectify.height")
	a.bind(cmd, "debug-dir", "rectify.debug_dir")
	return cmd
}
