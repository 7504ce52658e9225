package cmd

import (
	"context"

	"github.com/KaramelBytes/chartloom-cli/internal/producer"
	"github.com/spf13/cobra"
)

var extractOutput string

var extractCmd = &cobra.Command{
	Use:   "extract [file|-]",
	Short: "Pull the JSON array out of an AI response",
	Long: `Extract strips code fences and prose from a model response and prints the
embedded JSON array, indented. It fails when no usable array is found.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := "-"
		if len(args) == 1 {
			src = args[0]
		}
		text, err := readInput(cmd, src)
		if err != nil {
			return err
		}

		// A saved response replays through the same path a live responder takes.
		replay := producer.ResponderFunc(func(ctx context.Context, _ producer.Request) (string, error) {
			return text, nil
		})
		in, err := producer.ResponseProducer{Responder: replay}.Produce(context.Background())
		if err != nil {
			return err
		}
		return writeOutput(cmd, extractOutput, []byte(in.Text+"\n"))
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "write the JSON to this path instead of stdout")
}
