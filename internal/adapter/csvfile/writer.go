// Package csvfile writes storm summaries as one delimited file per profile,
// and the flat observation export as observations.csv.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/couchcryptid/hurdat-etl/internal/domain"
)

// Header is the first row of every file.
var Header = []string{
	"id", "name", "decade", "year", "month", "day", "hour", "landfall",
	"observations", "peak_wind", "peak_category",
	"all_lat", "all_lon", "mid_lat", "mid_lon", "first_lat", "first_lon", "last_lat", "last_lon",
	"scale", "weighted_lat", "weighted_lon", "place_name", "run_id",
}

// ObservationHeader is the first row of observations.csv.
var ObservationHeader = []string{
	"id", "name", "year", "month", "day", "hour",
	"lat", "lon", "wind", "pressure", "stage", "category", "landfall",
}

// observationsFile is reserved; no profile may write to it.
const observationsFile = "observations"

var profileNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Writer implements pipeline.BatchLoader. Files are created (or truncated) the
// first time a profile is seen and stay open until Close.
type Writer struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	files map[string]*profileFile
}

type profileFile struct {
	f *os.File
	w *csv.Writer
}

// NewWriter creates dir if needed.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir, logger: logger, files: make(map[string]*profileFile)}, nil
}

// LoadBatch appends one row per summary to <profile>.csv and flushes.
func (w *Writer) LoadBatch(_ context.Context, summaries []domain.StormSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	touched := make(map[*profileFile]struct{})
	for i := range summaries {
		if summaries[i].Profile == observationsFile {
			return fmt.Errorf("profile name %q is reserved", observationsFile)
		}
		pf, err := w.fileFor(summaries[i].Profile, Header)
		if err != nil {
			return err
		}
		if err := pf.w.Write(Record(summaries[i])); err != nil {
			return fmt.Errorf("write %s: %w", pf.f.Name(), err)
		}
		touched[pf] = struct{}{}
	}
	for pf := range touched {
		pf.w.Flush()
		if err := pf.w.Error(); err != nil {
			return fmt.Errorf("flush %s: %w", pf.f.Name(), err)
		}
	}
	return nil
}

// LoadObservations appends one row per observation to observations.csv.
func (w *Writer) LoadObservations(_ context.Context, records []domain.ObservationRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	pf, err := w.fileFor(observationsFile, ObservationHeader)
	if err != nil {
		return err
	}
	for i := range records {
		if err := pf.w.Write(ObservationRow(records[i])); err != nil {
			return fmt.Errorf("write %s: %w", pf.f.Name(), err)
		}
	}
	pf.w.Flush()
	if err := pf.w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", pf.f.Name(), err)
	}
	return nil
}

func (w *Writer) fileFor(profile string, header []string) (*profileFile, error) {
	if pf, ok := w.files[profile]; ok {
		return pf, nil
	}
	if !profileNameRe.MatchString(profile) {
		return nil, fmt.Errorf("profile name %q is not usable as a file name", profile)
	}

	path := filepath.Join(w.dir, profile+".csv")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	pf := &profileFile{f: f, w: csv.NewWriter(f)}
	if err := pf.w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header %s: %w", path, err)
	}
	w.files[profile] = pf
	w.logger.Info("csv output opened", "profile", profile, "path", path)
	return pf, nil
}

// Close flushes and closes every file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for name, pf := range w.files {
		pf.w.Flush()
		if err := pf.w.Error(); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", name, err))
		}
		if err := pf.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	w.files = make(map[string]*profileFile)
	return errors.Join(errs...)
}

// Record renders a summary in Header order. The start hour is the first
// observation's synoptic hour; coordinates carry six decimals.
func Record(s domain.StormSummary) []string {
	weightedLat, weightedLon := "", ""
	if s.Weighted != nil {
		weightedLat, weightedLon = coord(s.Weighted.Lat), coord(s.Weighted.Lon)
	}
	start := s.Start.UTC()
	return []string{
		strconv.Itoa(s.ID),
		s.Name,
		strconv.Itoa(s.Decade),
		strconv.Itoa(start.Year()),
		strconv.Itoa(int(start.Month())),
		strconv.Itoa(start.Day()),
		strconv.Itoa(start.Hour()),
		landfallFlag(s.Landfall),
		strconv.Itoa(s.ObservationCount),
		strconv.Itoa(s.PeakWind),
		string(s.PeakCategory),
		coord(s.All.Lat), coord(s.All.Lon),
		coord(s.Mid.Lat), coord(s.Mid.Lon),
		coord(s.First.Lat), coord(s.First.Lon),
		coord(s.Last.Lat), coord(s.Last.Lon),
		strconv.FormatFloat(s.Scale, 'f', 2, 64),
		weightedLat, weightedLon,
		s.PlaceName,
		s.RunID,
	}
}

// ObservationRow renders an observation record in ObservationHeader order.
// The year is the observation's own, so it has already rolled over for
// storms crossing into January.
func ObservationRow(r domain.ObservationRecord) []string {
	t := r.Time.UTC()
	return []string{
		strconv.Itoa(r.StormID),
		r.Name,
		strconv.Itoa(t.Year()),
		strconv.Itoa(int(t.Month())),
		strconv.Itoa(t.Day()),
		strconv.Itoa(t.Hour()),
		strconv.FormatFloat(r.Lat, 'f', 1, 64),
		strconv.FormatFloat(r.Lon, 'f', 1, 64),
		strconv.Itoa(r.Wind),
		strconv.Itoa(r.Pressure),
		string(r.Stage),
		string(r.Category),
		landfallFlag(r.Landfall),
	}
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func landfallFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
