package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBatch_CollisionSuffixAndSummary(t *testing.T) {
	home := setHome(t)
	d1 := filepath.Join(home, "d1")
	d2 := filepath.Join(home, "d2")
	for _, d := range []string{d1, d2} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	csv := "col1,col2\nA,1\nB,2\nC,3\n"
	writeFile(t, filepath.Join(d1, "metrics.csv"), csv)
	writeFile(t, filepath.Join(d2, "metrics.csv"), csv)
	outDir := filepath.Join(home, "views")

	out := runCmd(t, "batch", filepath.Join(home, "d*", "metrics.csv"), "--out-dir", outDir, "--summary", "-w", "2")
	for _, want := range []string{"✓ [1/2] metrics.csv", "✓ [2/2] metrics.csv", "3 rows → 3 shown", "✓ Rendered 2 files"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, name := range []string{"metrics.view.json", "metrics__2.view.json", "metrics.summary.md", "metrics__2.summary.md"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	b, err := os.ReadFile(filepath.Join(outDir, "metrics.view.json"))
	if err != nil {
		t.Fatalf("read view: %v", err)
	}
	if v := decodeView(t, string(b)); v.Axes.X != "col1" || v.Axes.Y != "col2" {
		t.Fatalf("axes = %+v", v.Axes)
	}
}

func TestBatch_ReportsFailures(t *testing.T) {
	home := setHome(t)
	good := writeFile(t, filepath.Join(home, "good.json"), `[{"name":"A","value":1}]`)
	bad := writeFile(t, filepath.Join(home, "bad.json"), `[{"name":`)

	out, err := runCmdErr(t, "", "batch", good, bad, "--out-dir", filepath.Join(home, "views"), "-q")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 files failed") {
		t.Fatalf("expected failure summary, got %v", err)
	}
	if !strings.Contains(out, "✗ [1/2] "+bad) {
		t.Fatalf("failure line missing:\n%s", out)
	}
	if strings.Contains(out, "✓") {
		t.Fatalf("quiet mode should only report failures:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(home, "views", "good.view.json")); err != nil {
		t.Fatalf("good file should still render: %v", err)
	}
}

func TestBatch_NoMatches(t *testing.T) {
	home := setHome(t)
	if _, err := runCmdErr(t, "", "batch", filepath.Join(home, "*.csv")); err == nil {
		t.Fatal("expected error when nothing matches")
	}
}
