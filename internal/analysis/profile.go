package analysis

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/chartloom-cli/internal/record"
)

// Options controls dataset profiling.
type Options struct {
	// MaxRows limits records processed; 0 means unlimited.
	MaxRows int
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// GroupBy computes per-group numeric summaries for the given fields.
	GroupBy []string
	// Correlations computes Pearson correlations among numeric fields.
	Correlations bool
	// Outlier detection via robust Z-score (MAD). Counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for profiling.
func DefaultOptions() Options {
	return Options{MaxRows: 100000, SampleRows: 5}
}

// Report is a markdown-friendly profile of a record sequence.
type Report struct {
	Name      string
	Rows      int
	Processed int
	Cols      []ColumnSummary
	Samples   [][]string
	Warnings  []string
	Groups    []GroupResult
	Corr      *CorrMatrix
	// Axes and Description are filled in by callers that also built a view.
	Axes        *record.Axes
	Description string
}

// ColumnSummary captures inferred type and statistics per field.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|datetime|categorical|text|unknown
	Unit    string
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Categorical top values
	TopValues    []CategoryCount
	ExampleTexts []string
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary // by field name
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric fields.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

type colAcc struct {
	name   string
	unit   string
	nonNil int
	miss   int
	// numeric stats via Welford
	n      int
	mean   float64
	m2     float64
	min    float64
	max    float64
	numCnt int
	dtCnt  int
	txtCnt int
	cats   map[string]int
	exText []string
	vals   []float64
}

func (c *colAcc) addNumber(x float64) {
	c.numCnt++
	c.n++
	if x < c.min {
		c.min = x
	}
	if x > c.max {
		c.max = x
	}
	delta := x - c.mean
	c.mean += delta / float64(c.n)
	c.m2 += delta * (x - c.mean)
	c.vals = append(c.vals, x)
}

type gAcc struct {
	size int
	sum  map[int]float64
	cnt  map[int]int
	min  map[int]float64
	max  map[int]float64
}

type pairAcc struct {
	n                               float64
	sumX, sumY, sumXX, sumYY, sumXY float64
}

// Profile computes per-field statistics over seq. Fields are taken in
// first-seen order across all records.
func Profile(name string, seq record.Sequence, opt Options) *Report {
	fields := seq.Fields()
	rep := &Report{Name: name, Rows: len(seq)}
	if len(fields) == 0 {
		return rep
	}
	ncol := len(fields)
	cols := make([]*colAcc, ncol)
	gbIndex := map[string]int{}
	for i, f := range fields {
		clean, unit := splitUnits(f)
		cols[i] = &colAcc{name: clean, unit: unit, min: math.Inf(1), max: math.Inf(-1), cats: make(map[string]int)}
		gbIndex[strings.ToLower(strings.TrimSpace(f))] = i
	}
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	sampleRows := opt.SampleRows
	if sampleRows <= 0 {
		sampleRows = 5
	}
	groups := map[string]*gAcc{}
	pair := make(map[int]*pairAcc) // key = i*ncol + j with i>j

	for _, r := range seq {
		if rep.Processed >= maxRows {
			break
		}
		rep.Processed++

		row := make([]string, ncol)
		for j, f := range fields {
			if v, ok := r.Get(f); ok && !v.IsNull() {
				row[j] = v.String()
			}
		}
		if len(rep.Samples) < sampleRows {
			rep.Samples = append(rep.Samples, row)
		}
		var gkey string
		if len(opt.GroupBy) > 0 {
			var parts []string
			for _, g := range opt.GroupBy {
				idx, ok := gbIndex[strings.ToLower(strings.TrimSpace(g))]
				if !ok {
					continue
				}
				parts = append(parts, fmt.Sprintf("%s=%s", cols[idx].name, safeVal(row[idx])))
			}
			gkey = strings.Join(parts, " | ")
		}
		var ga *gAcc
		if gkey != "" {
			ga = groups[gkey]
			if ga == nil {
				ga = &gAcc{sum: map[int]float64{}, cnt: map[int]int{}, min: map[int]float64{}, max: map[int]float64{}}
				groups[gkey] = ga
			}
			ga.size++
		}

		rowNums := make(map[int]float64)
		for j, f := range fields {
			c := cols[j]
			v, ok := r.Get(f)
			s, isText := v.Text()
			if !ok || v.IsNull() || (isText && strings.TrimSpace(s) == "") {
				c.miss++
				continue
			}
			c.nonNil++
			x, isNum := v.Number()
			if !isNum && isText {
				if strings.Contains(s, "%") && c.unit == "" {
					c.unit = "%"
				}
				x, isNum = parseNumeric(s)
			}
			if isNum {
				c.addNumber(x)
				rowNums[j] = x
				if ga != nil {
					ga.sum[j] += x
					ga.cnt[j]++
					if m, ok := ga.min[j]; !ok || x < m {
						ga.min[j] = x
					}
					if m, ok := ga.max[j]; !ok || x > m {
						ga.max[j] = x
					}
				}
				continue
			}
			text := v.String()
			if _, ok := parseTimeMaybe(text); ok {
				c.dtCnt++
				continue
			}
			c.txtCnt++
			if len(c.cats) <= 10000 && len(text) <= 64 {
				c.cats[text]++
			}
			if len(c.exText) < 3 {
				c.exText = append(c.exText, text)
			}
		}
		if opt.Correlations && len(rowNums) >= 2 {
			idxs := make([]int, 0, len(rowNums))
			for j := range rowNums {
				idxs = append(idxs, j)
			}
			sort.Ints(idxs)
			for a := 1; a < len(idxs); a++ {
				j := idxs[a]
				for b := 0; b < a; b++ {
					k := idxs[b]
					pa := pair[j*ncol+k]
					if pa == nil {
						pa = &pairAcc{}
						pair[j*ncol+k] = pa
					}
					x, y := rowNums[j], rowNums[k]
					pa.n++
					pa.sumX += x
					pa.sumY += y
					pa.sumXX += x * x
					pa.sumYY += y * y
					pa.sumXY += x * y
				}
			}
		}
	}

	var numCols []int
	rep.Cols = make([]ColumnSummary, 0, ncol)
	for idx, c := range cols {
		s := ColumnSummary{Name: c.name, Unit: c.unit, NonNull: c.nonNil, Missing: c.miss, Kind: "unknown"}
		switch {
		case c.numCnt > 0 && c.numCnt >= c.dtCnt && c.numCnt >= c.txtCnt:
			s.Kind = "numeric"
			s.Min, s.Max, s.Mean = c.min, c.max, c.mean
			if c.n > 1 {
				s.Std = math.Sqrt(c.m2 / float64(c.n-1))
			}
			numCols = append(numCols, idx)
			if opt.Outliers && len(c.vals) >= 8 {
				s.OutliersCount, s.OutliersMaxAbsZ, s.OutlierThreshold = outliers(c.vals, opt.OutlierThreshold)
			}
		case c.dtCnt > 0 && c.dtCnt >= c.txtCnt:
			s.Kind = "datetime"
		case len(c.cats) > 0:
			s.Kind = "categorical"
			s.TopValues = topValues(c.cats, 8)
			s.Unique = len(c.cats)
		case c.txtCnt > 0:
			s.Kind = "text"
			s.ExampleTexts = c.exText
		}
		rep.Cols = append(rep.Cols, s)
	}

	if rep.Processed < rep.Rows {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", rep.Processed, rep.Rows))
	}
	if len(groups) > 0 {
		rep.Groups = buildGroups(groups, cols, numCols)
	}
	if opt.Correlations && len(numCols) >= 2 {
		rep.Corr = buildCorr(pair, cols, numCols, ncol)
	}
	return rep
}

func outliers(vals []float64, thr float64) (count int, maxAbsZ, threshold float64) {
	if thr <= 0 {
		thr = 3.5
	}
	median, mad := medianMAD(vals)
	if mad > 0 {
		for _, v := range vals {
			az := math.Abs(0.6745 * (v - median) / mad)
			if az > thr {
				count++
			}
			if az > maxAbsZ {
				maxAbsZ = az
			}
		}
	}
	return count, maxAbsZ, thr
}

func topValues(cats map[string]int, n int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(cats))
	for k, v := range cats {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > n {
		tops = tops[:n]
	}
	return tops
}

func buildGroups(groups map[string]*gAcc, cols []*colAcc, numCols []int) []GroupResult {
	out := make([]GroupResult, 0, len(groups))
	for k, ga := range groups {
		gr := GroupResult{Key: k, Size: ga.size, Metrics: map[string]NumSummary{}}
		for _, idx := range numCols {
			if ga.cnt[idx] == 0 {
				continue
			}
			gr.Metrics[cols[idx].name] = NumSummary{
				Count: ga.cnt[idx],
				Min:   ga.min[idx],
				Max:   ga.max[idx],
				Mean:  ga.sum[idx] / float64(ga.cnt[idx]),
			}
		}
		out = append(out, gr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

func buildCorr(pair map[int]*pairAcc, cols []*colAcc, numCols []int, ncol int) *CorrMatrix {
	n := len(numCols)
	names := make([]string, n)
	mat := make([][]float64, n)
	for i, idx := range numCols {
		names[i] = cols[idx].name
		mat[i] = make([]float64, n)
	}
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			if a == b {
				mat[a][b] = 1
				continue
			}
			ia, ib := numCols[a], numCols[b]
			pa := pair[max(ia, ib)*ncol+min(ia, ib)]
			if pa == nil || pa.n < 2 {
				continue
			}
			denom := math.Sqrt((pa.n*pa.sumXX - pa.sumX*pa.sumX) * (pa.n*pa.sumYY - pa.sumY*pa.sumY))
			var r float64
			if denom != 0 {
				r = (pa.n*pa.sumXY - pa.sumX*pa.sumY) / denom
			}
			if math.IsNaN(r) || math.IsInf(r, 0) {
				r = 0
			}
			mat[a][b] = math.Max(-1, math.Min(1, r))
		}
	}
	return &CorrMatrix{Columns: names, Values: mat}
}

func parseTimeMaybe(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumeric reads numbers left as text by the extractor, such as
// "1.234,5" or "12%". The decimal separator is whichever of ',' and '.'
// appears last.
func parseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := '.'
	if strings.LastIndex(raw, ",") > strings.LastIndex(raw, ".") {
		dec = ','
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`), 2},  // e.g., Alpha (%)
	{regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), 2}, // e.g., Mass [kg]
}

func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
