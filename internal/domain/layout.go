package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type fieldType int

const (
	textField   fieldType = iota
	intField              // unsigned decimal, space padded
	tenthsField           // unsigned decimal with an implied single decimal place
)

// Field is one entry of the fixed-width layout: a named column range and how
// to read it. Start is relative to the base offset passed at extraction, which
// is 0 for line-level fields and the block start for observation fields.
type Field struct {
	Name  string
	Start int
	Width int
	Type  fieldType
}

// Line-level fields.
var (
	fieldMonth       = Field{Name: "month", Start: 6, Width: 2, Type: intField}
	fieldDay         = Field{Name: "day", Start: 9, Width: 2, Type: intField}
	fieldYear        = Field{Name: "year", Start: 12, Width: 4, Type: intField}
	fieldMarker      = Field{Name: "marker", Start: 17, Width: 2, Type: textField}
	fieldDays        = Field{Name: "days", Start: 19, Width: 2, Type: intField}
	fieldStormNumber = Field{Name: "storm_number", Start: 22, Width: 2, Type: intField}
	fieldName        = Field{Name: "name", Start: 35, Width: 11, Type: textField}
	fieldLandfall    = Field{Name: "landfall", Start: 52, Width: 1, Type: textField}
)

// Observation block fields, relative to the block start.
var (
	fieldStage    = Field{Name: "stage", Start: 0, Width: 1, Type: textField}
	fieldLat      = Field{Name: "lat", Start: 1, Width: 3, Type: tenthsField}
	fieldLon      = Field{Name: "lon", Start: 4, Width: 4, Type: tenthsField}
	fieldWind     = Field{Name: "wind", Start: 9, Width: 3, Type: intField}
	fieldPressure = Field{Name: "pressure", Start: 13, Width: 4, Type: intField}
)

const (
	blockStart    = 11
	blockWidth    = 17
	blocksPerLine = 4
)

var errNotNumeric = errors.New("not numeric")

// extract is the single routine every field read goes through. It returns the
// raw text and, for numeric fields, the parsed value.
func (f Field) extract(line string, base int) (string, int, error) {
	start := base + f.Start
	end := start + f.Width
	if end > len(line) {
		return "", 0, recordError(f, start, line,
			fmt.Errorf("line too short: need %d bytes, have %d", end, len(line)))
	}
	raw := line[start:end]
	if f.Type == textField {
		return raw, 0, nil
	}

	digits := strings.TrimSpace(raw)
	if digits == "" || strings.Trim(digits, "0123456789") != "" {
		return raw, 0, recordError(f, start, line, fmt.Errorf("%w: %q", errNotNumeric, raw))
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return raw, 0, recordError(f, start, line, err)
	}
	return raw, n, nil
}

func (f Field) text(line string, base int) (string, error) {
	s, _, err := f.extract(line, base)
	return s, err
}

func (f Field) integer(line string, base int) (int, error) {
	_, n, err := f.extract(line, base)
	return n, err
}

func (f Field) tenths(line string, base int) (float64, error) {
	_, n, err := f.extract(line, base)
	return float64(n) / 10, err
}
