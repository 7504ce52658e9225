package cmd

import (
	"context"
	"fmt"

	"github.com/KaramelBytes/chartloom-cli/internal/producer"
	"github.com/KaramelBytes/chartloom-cli/internal/session"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var promptKind string

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompts used with an external model",
}

var promptVisionCmd = &cobra.Command{
	Use:   "vision",
	Short: "Prompt for reading the data table out of a chart image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printRequest(cmd, producer.VisionRequest(nil, ""))
	},
}

var promptGenerateCmd = &cobra.Command{
	Use:   "generate <description>",
	Short: "Prompt for generating a dataset from a description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printRequest(cmd, producer.GenerateRequest(args[0]))
	},
}

var promptInsightCmd = &cobra.Command{
	Use:   "insight <file|->",
	Short: "Prompt asking for commentary on the dataset a file renders to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := inputProducer(cmd, args[0], promptKind)
		if err != nil {
			return err
		}
		view, _, err := producer.Apply(context.Background(), p, newPipeline(cmd), session.New(args[0]))
		if err != nil {
			return err
		}
		req, err := producer.InsightPrompt(view.Data)
		if err != nil {
			return err
		}
		return printRequest(cmd, req)
	},
}

func printRequest(cmd *cobra.Command, req producer.Request) error {
	out := cmd.OutOrStdout()
	if req.System != "" {
		fmt.Fprintf(out, "[SYSTEM]\n%s\n\n", req.System)
	}
	fmt.Fprintln(out, req.Prompt)
	fmt.Fprintf(cmd.ErrOrStderr(), "(~%d tokens)\n", utils.CountTokens(req.System+req.Prompt))
	return nil
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.AddCommand(promptVisionCmd, promptGenerateCmd, promptInsightCmd)
	promptInsightCmd.Flags().StringVarP(&promptKind, "kind", "k", "", "input kind: json, csv or ai (default: by file extension)")
}
