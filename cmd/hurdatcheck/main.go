// Command hurdatcheck performs integrity checks over a HURDAT dataset: every
// line parses, declared day counts match the lines read, coordinates and
// pressures are in range, and every storm summarizes. With -csv it also
// checks a CSV export against summaries recomputed from the dataset.
//
// Usage:
//
//	go run ./cmd/hurdatcheck -input data/hurdat.txt [-num-meas 4] [-csv output/all.csv]
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/hurdat-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/hurdat-etl/internal/adapter/hurdatfile"
	"github.com/couchcryptid/hurdat-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

const (
	minPressure = 850
	maxPressure = 1100
	coordTol    = 1e-6
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	input   string
	numMeas int
	csvPath string
}

func main() {
	var opts options
	flag.StringVar(&opts.input, "input", "", "path to the HURDAT dataset")
	flag.IntVar(&opts.numMeas, "num-meas", domain.DefaultNumMeas, "window size for the first/last/middle midpoints")
	flag.StringVar(&opts.csvPath, "csv", "", "optional CSV export of the all-storms profile to cross-check")
	flag.Parse()

	if opts.input == "" || opts.numMeas < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, opts); code != 0 {
		os.Exit(code)
	}
}

func run(w io.Writer, opts options) int {
	// Summaries are compared field by field; pin processed_at.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	fmt.Fprintln(w, "=== HURDAT Integrity Validation ===")
	fmt.Fprintln(w)

	r, err := hurdatfile.Open(opts.input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	defer r.Close()

	parsePhase, storms, lines := validateParse(r)
	summaryPhase, summaries := validateSummaries(storms, opts.numMeas)
	phases := []*phase{
		parsePhase,
		validateDayCounts(storms),
		validateRanges(storms),
		summaryPhase,
	}
	if opts.csvPath != "" {
		phases = append(phases, validateCSV(opts.csvPath, summaries))
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Lines: %d, storms: %d, observations: %d\n", lines, len(storms), countObservations(storms))
	printCategoryTotals(w, summaries)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// ── Phase 1: Parse Integrity ──
// Every line must parse; malformed records are reported and skipped so the
// later phases still see the rest of the dataset.

func validateParse(r *hurdatfile.Reader) (*phase, []domain.Storm, int) {
	p := &phase{name: "Phase 1: Parse Integrity"}

	a := domain.NewAssembler()
	var storms []domain.Storm
	lines := 0
	for {
		batch, err := r.ExtractLines(context.Background(), 1000)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.errorf("read: %v", err)
			return p, storms, lines
		}
		for _, line := range batch {
			lines++
			s, ok, err := a.Feed(line.Num, line.Text)
			if err != nil {
				p.errorf("%v", err)
				if errors.Is(err, domain.ErrMalformedStream) {
					return p, storms, lines
				}
				continue
			}
			if ok {
				storms = append(storms, s)
			}
		}
	}
	s, ok, err := a.Close()
	if err != nil {
		p.errorf("%v", err)
	} else if ok {
		storms = append(storms, s)
	}
	return p, storms, lines
}

// ── Phase 2: Day Counts ──

func validateDayCounts(storms []domain.Storm) *phase {
	p := &phase{name: "Phase 2: Declared Day Counts"}
	for _, s := range storms {
		if s.DeclaredDays != s.DaysRead {
			p.errorf("storm %d (%s): header declares %d days, %d read", s.ID, s.Name, s.DeclaredDays, s.DaysRead)
		}
	}
	return p
}

// ── Phase 3: Ranges ──
// Coordinates, pressures and observation order.

func validateRanges(storms []domain.Storm) *phase {
	p := &phase{name: "Phase 3: Coordinate and Pressure Ranges"}
	for _, s := range storms {
		var prev time.Time
		for i, o := range s.Observations {
			if o.Lat < -90 || o.Lat > 90 {
				p.errorf("storm %d obs %d: latitude %.1f out of range", s.ID, i, o.Lat)
			}
			if o.Lon < -180 || o.Lon > 180 {
				p.errorf("storm %d obs %d: longitude %.1f out of range", s.ID, i, o.Lon)
			}
			if o.Pressure != domain.MissingPressure && (o.Pressure < minPressure || o.Pressure > maxPressure) {
				p.errorf("storm %d obs %d: pressure %d mb outside %d-%d", s.ID, i, o.Pressure, minPressure, maxPressure)
			}
			if i > 0 && !o.Time.After(prev) {
				p.errorf("storm %d obs %d: time %s does not follow %s", s.ID, i, o.Time.Format(time.RFC3339), prev.Format(time.RFC3339))
			}
			prev = o.Time
		}
	}
	return p
}

// ── Phase 4: Summaries ──

func validateSummaries(storms []domain.Storm, numMeas int) (*phase, []domain.StormSummary) {
	p := &phase{name: "Phase 4: Summaries"}

	var summaries []domain.StormSummary
	for _, s := range storms {
		if len(s.Observations) == 0 {
			continue
		}
		sum, err := domain.Summarize(s, numMeas)
		if err != nil {
			p.errorf("storm %d: %v", s.ID, err)
			continue
		}
		for _, pt := range []domain.Point{sum.All, sum.Mid, sum.First, sum.Last} {
			if math.IsNaN(pt.Lat) || math.IsNaN(pt.Lon) {
				p.errorf("storm %d: midpoint is NaN", s.ID)
				break
			}
		}
		summaries = append(summaries, sum)
	}
	return p, summaries
}

func printCategoryTotals(w io.Writer, summaries []domain.StormSummary) {
	totals := make(map[domain.Category]int, len(domain.Categories))
	for i := range summaries {
		totals[summaries[i].PeakCategory]++
	}
	fmt.Fprint(w, "Peak categories:")
	for _, c := range domain.Categories {
		fmt.Fprintf(w, " %s=%d", c, totals[c])
	}
	fmt.Fprintln(w)
}

// ── Phase 5: CSV Export ──
// Validates an export of the unfiltered profile against recomputed summaries.

func validateCSV(path string, summaries []domain.StormSummary) *phase {
	p := &phase{name: "Phase 5: CSV Export (vs dataset)"}

	rows, err := loadCSV(path)
	if err != nil {
		p.errorf("load %s: %v", path, err)
		return p
	}
	if len(rows) != len(summaries) {
		p.errorf("row count: expected %d, got %d", len(summaries), len(rows))
	}

	byID := make(map[int]domain.StormSummary, len(summaries))
	for _, s := range summaries {
		byID[s.ID] = s
	}
	for _, row := range rows {
		id, err := strconv.Atoi(row.fields["id"])
		if err != nil {
			p.errorf("line %d: bad id %q", row.lineNum, row.fields["id"])
			continue
		}
		want, ok := byID[id]
		if !ok {
			p.errorf("line %d: storm %d not in dataset", row.lineNum, id)
			continue
		}
		compareRow(p, row, want)
	}
	return p
}

func compareRow(p *phase, row csvRow, want domain.StormSummary) {
	if got := row.fields["observations"]; got != strconv.Itoa(want.ObservationCount) {
		p.errorf("line %d (storm %d): observations: expected %d, got %s", row.lineNum, want.ID, want.ObservationCount, got)
	}
	if got := row.fields["peak_category"]; got != string(want.PeakCategory) {
		p.errorf("line %d (storm %d): peak_category: expected %s, got %s", row.lineNum, want.ID, want.PeakCategory, got)
	}
	coords := map[string]float64{
		"all_lat": want.All.Lat, "all_lon": want.All.Lon,
		"mid_lat": want.Mid.Lat, "mid_lon": want.Mid.Lon,
		"first_lat": want.First.Lat, "first_lon": want.First.Lon,
		"last_lat": want.Last.Lat, "last_lon": want.Last.Lon,
	}
	for _, col := range csvfile.Header {
		expected, ok := coords[col]
		if !ok {
			continue
		}
		got, err := strconv.ParseFloat(row.fields[col], 64)
		if err != nil || math.Abs(got-expected) > coordTol {
			p.errorf("line %d (storm %d): %s: expected %.6f, got %q", row.lineNum, want.ID, col, expected, row.fields[col])
		}
	}
}

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

func loadCSV(path string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 1 {
		return nil, fmt.Errorf("no header row in %s", path)
	}

	header := all[0]
	var rows []csvRow
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[h] = row[j]
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return rows, nil
}

func countObservations(storms []domain.Storm) int {
	n := 0
	for _, s := range storms {
		n += len(s.Observations)
	}
	return n
}
