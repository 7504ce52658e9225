package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/chartloom-cli/internal/record"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func TestInferAxes(t *testing.T) {
	cases := []struct {
		name   string
		sample record.Record
		want   record.Axes
	}{
		{"positional", record.Of("label", "A", "count", 3), record.Axes{X: "label", Y: "count"}},
		{"canonical names", record.Of("name", "A", "value", 3), record.Axes{X: "name", Y: "value"}},
		{"name overrides even when numeric", record.Of("a", 1, "b", "x", "name", 7), record.Axes{X: "name", Y: "a"}},
		{"value key with null still wins", record.Of("city", "Rome", "pop", 2.8, "value", nil), record.Axes{X: "city", Y: "value"}},
		{"no strings or numbers", record.Of("flag", record.Raw([]byte("true"))), record.Axes{X: "name", Y: "value"}},
		{"empty record", record.Record{}, record.Axes{X: "name", Y: "value"}},
	}
	for _, c := range cases {
		if got := InferAxes(c.sample); got != c.want {
			t.Errorf("%s: got %+v want %+v", c.name, got, c.want)
		}
	}
}

func TestGroupingFields(t *testing.T) {
	g, s := GroupingFields(record.Of("id", 1, "city", "Rome", "pop", 3))
	if g != "city" || s != "id" {
		t.Fatalf("got (%q,%q)", g, s)
	}
	g, s = GroupingFields(record.Of("a", record.Raw([]byte("true")), "b", "x"))
	if g != "b" || s != "" {
		t.Fatalf("got (%q,%q)", g, s)
	}
	g, s = GroupingFields(record.Of("flag", nil))
	if g != "flag" || s != "" {
		t.Fatalf("fallback to first field: got (%q,%q)", g, s)
	}
}

func TestAggregateCountAndSum(t *testing.T) {
	seq := record.Sequence{
		record.Of("city", "A", "v", 1),
		record.Of("city", "B", "v", 2),
		record.Of("city", "A", "v", 3),
		record.Of("city", nil, "v", 100),
		record.Of("v", 100),
		record.Of("city", "B", "v", "oops"),
	}
	counts := Aggregate(seq, "city", "", 0)
	want := record.Sequence{
		record.Of("name", "A", "value", 2),
		record.Of("name", "B", "value", 2),
	}
	if !counts.Equal(want) {
		t.Fatalf("counts mismatch: %v", counts)
	}
	sums := Aggregate(seq, "city", "v", 0)
	want = record.Sequence{
		record.Of("name", "A", "value", 4),
		record.Of("name", "B", "value", 2),
	}
	if !sums.Equal(want) {
		t.Fatalf("sums mismatch: %v", sums)
	}
}

func TestAggregateNumericGroupKeys(t *testing.T) {
	seq := record.Sequence{record.Of("year", 2020), record.Of("year", 2021), record.Of("year", 2020)}
	out := Aggregate(seq, "year", "", 0)
	if v, _ := out[0].Get("name"); v.String() != "2020" || !v.IsString() {
		t.Fatalf("group key should be the stringified value, got %v", v)
	}
}

func TestAggregateKeepsFirstSeenGroups(t *testing.T) {
	var seq record.Sequence
	for i := 0; i < 25; i++ {
		seq = append(seq, record.Of("k", fmt.Sprintf("g%02d", i), "n", i))
	}
	// a late, large group must not displace earlier ones
	seq = append(seq, record.Of("k", "g24", "n", 1000))
	out := Aggregate(seq, "k", "n", record.DisplayCap)
	if len(out) != record.DisplayCap {
		t.Fatalf("len=%d want %d", len(out), record.DisplayCap)
	}
	for i, r := range out {
		if v, _ := r.Get("name"); v.String() != fmt.Sprintf("g%02d", i) {
			t.Fatalf("position %d holds %s", i, v)
		}
	}
}

func TestAggregateConservesTotals(t *testing.T) {
	var seq record.Sequence
	var total float64
	for i := 0; i < 60; i++ {
		x := float64(i%7) * 1.5
		total += x
		seq = append(seq, record.Of("k", fmt.Sprintf("g%d", i%9), "x", x))
	}
	var got float64
	for _, r := range Aggregate(seq, "k", "x", 0) {
		v, _ := r.Get("value")
		got += v.Float()
	}
	if math.Abs(got-total) > 1e-9 {
		t.Fatalf("sum=%v want %v", got, total)
	}
}

func TestAugmentBounds(t *testing.T) {
	seq := record.Sequence{
		record.Of("name", "a", "value", 10),
		record.Of("name", "b", "value", 250),
		record.Of("name", "c", "value", "n/a"),
	}
	axes := record.Axes{X: "name", Y: "value"}
	for _, src := range []Float64Source{fixedSource(0), fixedSource(0.5), fixedSource(0.999999), NewSource(7)} {
		out := Augment(seq, axes, src)
		for i := 0; i < 2; i++ {
			y, _ := out[i].Get("value")
			uv, ok := out[i].Get("uv")
			if !ok || !uv.IsNumber() {
				t.Fatalf("row %d missing uv", i)
			}
			lo, hi := roundHalfUp(y.Float()*0.8), roundHalfUp(y.Float()*1.2)
			if u := uv.Float(); u < lo || u > hi {
				t.Fatalf("row %d uv=%v outside [%v,%v]", i, u, lo, hi)
			}
		}
		if uv, ok := out[2].Get("uv"); !ok || !uv.IsNull() {
			t.Fatalf("non-numeric y should get null uv")
		}
	}
	if seq[0].Has("uv") {
		t.Fatalf("input was mutated")
	}
}

func TestAugmentRoundsHalfUp(t *testing.T) {
	seq := record.Sequence{record.Of("value", 2.5), record.Of("value", -2.5), record.Of("value", 10)}
	out := Augment(seq, record.Axes{X: "name", Y: "value"}, fixedSource(0.5))
	want := []float64{3, -2, 10}
	for i, w := range want {
		if uv, _ := out[i].Get("uv"); uv.Float() != w {
			t.Fatalf("row %d uv=%v want %v", i, uv, w)
		}
	}
}

func TestAugmentCoercesLaterTextValues(t *testing.T) {
	seq := record.Sequence{
		record.Of("name", "a", "value", 10),
		record.Of("name", "b", "value", " 5 "),
		record.Of("name", "c", "value", "n/a"),
		record.Of("name", "d", "value", ""),
		record.Of("name", "e"),
	}
	out := Augment(seq, record.Axes{X: "name", Y: "value"}, fixedSource(0.5))
	want := []record.Value{record.Num(10), record.Num(5), record.Null(), record.Num(0), record.Null()}
	for i, w := range want {
		uv, ok := out[i].Get("uv")
		if !ok || !uv.Equal(w) {
			t.Errorf("row %d uv=%v want %v", i, uv, w)
		}
	}
}

func TestAugmentSkips(t *testing.T) {
	axes := record.Axes{X: "name", Y: "value"}
	withUV := record.Sequence{record.Of("name", "a", "value", 1, "uv", 5)}
	if out := Augment(withUV, axes, fixedSource(0)); !out.Equal(withUV) {
		t.Fatalf("existing uv must be kept")
	}
	textY := record.Sequence{record.Of("name", "a", "value", "1"), record.Of("name", "b", "value", 2)}
	if out := Augment(textY, axes, fixedSource(0)); out[1].Has("uv") {
		t.Fatalf("first record decides; non-numeric first y means no augmentation")
	}
	if out := Augment(nil, axes, nil); len(out) != 0 {
		t.Fatalf("empty input")
	}
}

func TestSummarizeAndDescribe(t *testing.T) {
	axes := record.Axes{X: "city", Y: "pop"}
	if _, err := Summarize(nil, axes); !errors.Is(err, ErrEmptySequence) {
		t.Fatalf("want ErrEmptySequence, got %v", err)
	}
	if _, err := Describe(record.Sequence{}, axes); !errors.Is(err, ErrEmptySequence) {
		t.Fatalf("want ErrEmptySequence, got %v", err)
	}
	seq := record.Sequence{
		record.Of("city", "A", "pop", 12.5),
		record.Of("city", "B", "pop", 40),
		record.Of("city", "C"),
	}
	st, err := Summarize(seq, axes)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if st.Max != 40 || st.Min != 0 || st.Count != 3 {
		t.Fatalf("stats=%+v", st)
	}
	desc, err := Describe(seq, axes)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	for _, want := range []string{"**pop**", "**city**", "**40**", "**0**", "**3**"} {
		if !strings.Contains(desc, want) {
			t.Fatalf("description %q missing %s", desc, want)
		}
	}
}

func TestProfileAndMarkdown(t *testing.T) {
	var seq record.Sequence
	regions := []string{"north", "south", "north", "east", "north", "south", "east", "north", "south", "west"}
	for i, r := range regions {
		sales := float64(10 + i)
		if i == 9 {
			sales = 500
		}
		seq = append(seq, record.Of(
			"region", r,
			"sales (EUR)", sales,
			"units", 2*sales,
			"share", fmt.Sprintf("%d%%", i+1),
			"day", fmt.Sprintf("2024-01-%02d", i+1),
			"note", "",
		))
	}
	opt := DefaultOptions()
	opt.SampleRows = 3
	opt.MaxRows = 10
	opt.GroupBy = []string{"region"}
	opt.Correlations = true
	opt.Outliers = true

	rep := Profile("sales.csv", seq, opt)
	if rep.Rows != 10 || rep.Processed != 10 || len(rep.Samples) != 3 {
		t.Fatalf("rows=%d processed=%d samples=%d", rep.Rows, rep.Processed, len(rep.Samples))
	}
	kinds := map[string]string{}
	for _, c := range rep.Cols {
		kinds[c.Name] = c.Kind
	}
	want := map[string]string{"region": "categorical", "sales": "numeric", "units": "numeric", "share": "numeric", "day": "datetime", "note": "unknown"}
	for k, v := range want {
		if kinds[k] != v {
			t.Errorf("%s kind=%q want %q", k, kinds[k], v)
		}
	}
	if rep.Cols[1].Unit != "EUR" || rep.Cols[3].Unit != "%" {
		t.Errorf("units: %q %q", rep.Cols[1].Unit, rep.Cols[3].Unit)
	}
	if rep.Cols[1].OutliersCount != 1 {
		t.Errorf("outliers=%d want 1", rep.Cols[1].OutliersCount)
	}
	if rep.Groups[0].Key != "region=north" || rep.Groups[0].Size != 4 {
		t.Errorf("first group=%+v", rep.Groups[0])
	}

	rep.Axes = &record.Axes{X: "region", Y: "sales (EUR)"}
	rep.Description = "desc"
	md := rep.Markdown()
	for _, s := range []string{
		"[DATASET SUMMARY]", "Source: sales.csv", "Rows: 10", "[CHART]", "X axis: region",
		"sales [EUR]: numeric", "outliers: 1 above |z|>3.5", "[GROUP-BY SUMMARY]", "region=north (n=4)",
		"[CORRELATIONS]", "sales ~ units: r=1.000", "[HEAD AND SAMPLE ROWS]",
	} {
		if !strings.Contains(md, s) {
			t.Fatalf("markdown missing %q:\n%s", s, md)
		}
	}
}

func TestProfileMaxRowsWarning(t *testing.T) {
	seq := record.Sequence{record.Of("a", 1), record.Of("a", 2), record.Of("a", 3)}
	rep := Profile("", seq, Options{MaxRows: 2})
	if rep.Processed != 2 || len(rep.Warnings) != 1 || rep.Warnings[0] != "processed only 2/3 rows due to MaxRows" {
		t.Fatalf("processed=%d warnings=%v", rep.Processed, rep.Warnings)
	}
	if !strings.Contains(rep.Markdown(), "Rows: ~3 (processed 2)") {
		t.Fatalf("markdown missing processed note")
	}
}

func TestParseNumeric(t *testing.T) {
	cases := map[string]float64{"1.234,5": 1234.5, "1,234.5": 1234.5, "12%": 12, "0,5": 0.5}
	for in, want := range cases {
		got, ok := parseNumeric(in)
		if !ok || math.Abs(got-want) > 1e-9 {
			t.Errorf("%q: got %v,%v want %v", in, got, ok, want)
		}
	}
	for _, in := range []string{"abc", "", "2024-01-05"} {
		if _, ok := parseNumeric(in); ok {
			t.Errorf("%q should not parse", in)
		}
	}
}
