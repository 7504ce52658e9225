package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/KaramelBytes/chartloom-cli/internal/producer"
	"github.com/KaramelBytes/chartloom-cli/internal/session"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	renderKind     string
	renderOutput   string
	renderDescOnly bool
	renderSession  string
)

var renderCmd = &cobra.Command{
	Use:   "render <file|->",
	Short: "Normalize a dataset into a chart view (data, axes, description)",
	Long: `Render reads a JSON array, a CSV export or an AI response and prints the
chart view as JSON. Files are read by extension unless --kind is given; "-"
reads stdin (JSON unless --kind says otherwise).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := inputProducer(cmd, args[0], renderKind)
		if err != nil {
			return err
		}
		s := session.New(args[0])
		if renderSession != "" {
			prev, err := session.Load(renderSession)
			switch {
			case err == nil:
				s = prev
			case !errors.Is(err, fs.ErrNotExist):
				return err
			}
		}
		view, _, err := producer.Apply(context.Background(), p, newPipeline(cmd), s)
		if err != nil {
			return err
		}
		if renderSession != "" {
			if err := s.Save(renderSession); err != nil {
				return err
			}
		}

		var out []byte
		if renderDescOnly {
			out = []byte(view.Description + "\n")
		} else {
			out, err = utils.PrettyJSON(view)
			if err != nil {
				return fmt.Errorf("encode view: %w", err)
			}
		}
		if err := writeOutput(cmd, renderOutput, out); err != nil {
			return err
		}
		if renderOutput != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote view to %s (%d rows, x=%s, y=%s)\n",
				renderOutput, len(view.Data), view.Axes.X, view.Axes.Y)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVarP(&renderKind, "kind", "k", "", "input kind: json, csv or ai (default: by file extension)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "write the view to this path instead of stdout")
	renderCmd.Flags().BoolVar(&renderDescOnly, "description-only", false, "print only the generated description")
	renderCmd.Flags().StringVar(&renderSession, "session", "", "commit the view into this session file")
}
