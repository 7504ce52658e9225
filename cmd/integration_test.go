package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/chartloom-cli/internal/pipeline"
	"github.com/KaramelBytes/chartloom-cli/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags puts every flag back to its default so state from one
// invocation does not leak into the next.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Value.Type() == "stringSlice" {
			f.Changed = false
			return
		}
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmdErr executes the root command with args and stdin, returning stdout.
func runCmdErr(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	anaGroupBy = nil
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmdErr(t, "", args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func decodeView(t *testing.T, out string) pipeline.View {
	t.Helper()
	var v pipeline.View
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode view: %v\n%s", err, out)
	}
	return v
}

func TestCLI_RenderCSVFile(t *testing.T) {
	home := setHome(t)
	path := writeFile(t, filepath.Join(home, "sales.csv"), "region,sales\nNorth,10\nSouth,30\n")

	view := decodeView(t, runCmd(t, "render", path, "--seed", "7"))
	if view.Axes.X != "region" || view.Axes.Y != "sales" {
		t.Fatalf("axes = %+v", view.Axes)
	}
	if len(view.Data) != 2 || view.Aggregated {
		t.Fatalf("unexpected data: %d rows, aggregated=%v", len(view.Data), view.Aggregated)
	}
	for _, r := range view.Data {
		uv, ok := r.Get("uv")
		if !ok {
			t.Fatalf("missing uv in %v", r.Keys())
		}
		y, _ := r.Get("sales")
		if uv.Float() < 0.8*y.Float()-0.5 || uv.Float() > 1.2*y.Float()+0.5 {
			t.Fatalf("uv %v out of range for %v", uv, y)
		}
	}
	if !strings.Contains(view.Description, "highest value is **30**") {
		t.Fatalf("description = %q", view.Description)
	}
}

func TestCLI_RenderStdinAndNoSynthetic(t *testing.T) {
	setHome(t)
	out, err := runCmdErr(t, `[{"name":"A","value":1},{"name":"B","value":2}]`, "render", "-", "--no-synthetic")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	view := decodeView(t, out)
	if view.Data[0].Has("uv") {
		t.Fatal("synthetic series should be disabled")
	}
	if view.Axes.X != "name" || view.Axes.Y != "value" {
		t.Fatalf("axes = %+v", view.Axes)
	}
}

func TestCLI_RenderAIResponse(t *testing.T) {
	home := setHome(t)
	path := writeFile(t, filepath.Join(home, "answer.txt"),
		"Here is the data:\n```json\n[{\"month\":\"Jan\",\"visits\":120}]\n```\nLet me know!")
	out := runCmd(t, "render", path, "--kind", "ai", "--description-only")
	want := "This chart shows the distribution of **visits** values by **month**."
	if !strings.HasPrefix(out, want) {
		t.Fatalf("description = %q", out)
	}
}

func TestCLI_RenderAggregatesLargeInput(t *testing.T) {
	home := setHome(t)
	var b strings.Builder
	b.WriteString("id,category,amount\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "%d,%s,%d\n", i, []string{"a", "b", "c"}[i%3], 1)
	}
	path := writeFile(t, filepath.Join(home, "big.csv"), b.String())

	view := decodeView(t, runCmd(t, "render", path, "--no-synthetic"))
	if !view.Aggregated || view.SourceRows != 30 || len(view.Data) != 3 {
		t.Fatalf("aggregated=%v sourceRows=%d len=%d", view.Aggregated, view.SourceRows, len(view.Data))
	}
	if view.Axes.X != "name" || view.Axes.Y != "value" {
		t.Fatalf("axes = %+v", view.Axes)
	}

	// A higher threshold keeps the rows as they are.
	view = decodeView(t, runCmd(t, "render", path, "--no-synthetic", "--threshold", "50"))
	if view.Aggregated || len(view.Data) != 30 {
		t.Fatalf("threshold override ignored: aggregated=%v len=%d", view.Aggregated, len(view.Data))
	}
}

func TestCLI_RenderEmptyFileFails(t *testing.T) {
	home := setHome(t)
	path := writeFile(t, filepath.Join(home, "empty.csv"), "only,header\n")
	_, err := runCmdErr(t, "", "render", path)
	if err == nil || !strings.Contains(err.Error(), "no usable data") {
		t.Fatalf("expected no usable data error, got %v", err)
	}
}

func TestCLI_RenderWritesOutputAndSession(t *testing.T) {
	home := setHome(t)
	in := writeFile(t, filepath.Join(home, "in.json"), `[{"name":"A","value":5}]`)
	outPath := filepath.Join(home, "out", "view.json")
	sessPath := filepath.Join(home, "session.json")

	msg := runCmd(t, "render", in, "-o", outPath, "--session", sessPath)
	if !strings.Contains(msg, "✓ Wrote view to") {
		t.Fatalf("unexpected output: %q", msg)
	}
	b, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if v := decodeView(t, string(b)); len(v.Data) != 1 {
		t.Fatalf("len = %d", len(v.Data))
	}

	runCmd(t, "render", in, "--session", sessPath)
	s, err := session.Load(sessPath)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if _, seq, ok := s.Current(); !ok || seq != 2 {
		t.Fatalf("session seq=%d ok=%v, want 2", seq, ok)
	}
}

func TestCLI_Extract(t *testing.T) {
	setHome(t)
	out, err := runCmdErr(t, "sure: {\"name\":\"X\",\"value\":3} done", "extract")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := "[\n  {\n    \"name\": \"X\",\n    \"value\": 3\n  }\n]\n"
	if out != want {
		t.Fatalf("got %q", out)
	}
	if _, err := runCmdErr(t, "no data here", "extract", "-"); err == nil {
		t.Fatal("expected failure for text without JSON")
	}
}

func TestCLI_AnalyzeWritesSummary(t *testing.T) {
	home := setHome(t)
	path := writeFile(t, filepath.Join(home, "metrics.csv"), "city,pop,rank\nAnkara,5.6,2\nIzmir,4.4,3\nBursa,3.1,4\n")
	outPath := filepath.Join(home, "metrics.summary.md")
	msg := runCmd(t, "analyze", path, "-o", outPath, "--correlations", "--sample-rows", "0")
	if !strings.Contains(msg, "✓ Wrote analysis to") {
		t.Fatalf("unexpected output: %q", msg)
	}
	b, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	md := string(b)
	for _, want := range []string{"[DATASET SUMMARY]", "[CHART]", "[SCHEMA]", "[CORRELATIONS]"} {
		if !strings.Contains(md, want) {
			t.Errorf("summary missing %s", want)
		}
	}
	if strings.Contains(md, "[HEAD AND SAMPLE ROWS]") {
		t.Error("sample rows should be suppressed")
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	home := setHome(t)
	msg := runCmd(t, "config", "set", "display_cap", "7")
	if !strings.Contains(msg, "✓ Saved config") {
		t.Fatalf("unexpected output: %q", msg)
	}
	if _, err := os.Stat(filepath.Join(home, ".chartloom", "config.yaml")); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	out := runCmd(t, "config", "show")
	if !strings.Contains(out, "display_cap: 7\n") {
		t.Fatalf("show output:\n%s", out)
	}
	if _, err := runCmdErr(t, "", "config", "set", "display_cap", "zero"); err == nil {
		t.Fatal("expected invalid value error")
	}
	if _, err := runCmdErr(t, "", "config", "set", "nope", "1"); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestCLI_PromptInsight(t *testing.T) {
	home := setHome(t)
	path := writeFile(t, filepath.Join(home, "in.json"), `[{"name":"A","value":5}]`)
	out := runCmd(t, "prompt", "insight", path, "--no-synthetic")
	if !strings.HasPrefix(out, `As a data analyst, interpret this JSON data: [{"name":"A","value":5}]...`) {
		t.Fatalf("prompt = %q", out)
	}
	out = runCmd(t, "prompt", "generate", "monthly rainfall")
	if !strings.Contains(out, "[SYSTEM]") || !strings.Contains(out, "monthly rainfall") {
		t.Fatalf("generate prompt = %q", out)
	}
}

func TestCLI_RenderWithKindDecodesText(t *testing.T) {
	home := setHome(t)
	content := "\ufeffregion,sales\nNorth,10\n"
	path := writeFile(t, filepath.Join(home, "export.txt"), content)
	view := decodeView(t, runCmd(t, "render", path, "--kind", "csv", "--no-synthetic"))
	if view.Axes.X != "region" {
		t.Fatalf("byte order mark leaked into the header: %q", view.Axes.X)
	}

	out, err := runCmdErr(t, content, "render", "-", "--kind", "csv", "--no-synthetic")
	if err != nil {
		t.Fatalf("render stdin: %v", err)
	}
	if v := decodeView(t, out); v.Axes.X != "region" {
		t.Fatalf("stdin header = %q", v.Axes.X)
	}
}
