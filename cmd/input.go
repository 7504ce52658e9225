package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/KaramelBytes/chartloom-cli/internal/parser"
	"github.com/KaramelBytes/chartloom-cli/internal/pipeline"
	"github.com/KaramelBytes/chartloom-cli/internal/producer"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

// inputProducer picks how a command argument is read. "-" reads stdin as
// text of the given kind; a file with --kind set is read as raw text; a file
// without --kind goes through the upload parsers.
func inputProducer(cmd *cobra.Command, arg, kind string) (producer.Producer, error) {
	if arg != "-" && kind == "" {
		return producer.FileProducer{Path: arg, MaxBytes: cfg.MaxInputBytes}, nil
	}
	k, err := pipeline.ParseKind(kindOr(kind, "json"))
	if err != nil {
		return nil, err
	}
	text, err := readInput(cmd, arg)
	if err != nil {
		return nil, err
	}
	return producer.TextProducer{Kind: k, Text: text}, nil
}

func kindOr(kind, def string) string {
	if kind == "" {
		return def
	}
	return kind
}

// readInput reads a file argument, or stdin for "-", as decoded text.
func readInput(cmd *cobra.Command, arg string) (string, error) {
	if arg == "-" {
		return parser.ReadText("stdin", cmd.InOrStdin(), cfg.MaxInputBytes)
	}
	return parser.ReadTextFile(arg, cfg.MaxInputBytes)
}

// expandInputs resolves glob patterns and literal paths, dropping duplicates.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// writeOutput writes data to path, or to the command's stdout when path is
// empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
