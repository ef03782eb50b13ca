package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	headerMarker = "M="

	// MissingPressure replaces a zero pressure reading.
	MissingPressure = -999

	unnamed = "UNNAMED"
)

// SynopticHours are the UTC hours of the four blocks on an observation line.
var SynopticHours = [blocksPerLine]int{0, 6, 12, 18}

// Header is the parsed first line of a storm record.
type Header struct {
	Month       int
	Day         int
	Year        int
	Days        int
	StormNumber int
	Name        string
	Landfall    bool
}

// StormID combines the header year and storm number, e.g. 1886 and 1 give 188601.
func (h Header) StormID() int {
	return h.Year*100 + h.StormNumber
}

// Block is one synoptic-hour slot of an observation line. Absent blocks are
// padding and carry no data.
type Block struct {
	Present  bool
	Stage    Stage
	Lat      float64
	Lon      float64
	Wind     int
	Pressure int
}

// ObservationLine is one day of observations.
type ObservationLine struct {
	Month  int
	Day    int
	Blocks [blocksPerLine]Block
}

// IsHeader reports whether the line carries the header marker at columns 17-18.
func IsHeader(line string) bool {
	return len(line) >= fieldMarker.Start+fieldMarker.Width &&
		line[fieldMarker.Start:fieldMarker.Start+fieldMarker.Width] == headerMarker
}

// IsFooter reports whether the line is a storm's trailing summary line: column 6
// is missing or not a digit.
func IsFooter(line string) bool {
	return len(line) <= fieldMonth.Start || !isDigit(line[fieldMonth.Start])
}

// ParseHeader reads a header line. A blank name becomes "UNNAMED".
func ParseHeader(line string) (Header, error) {
	if !IsHeader(line) {
		return Header{}, recordError(fieldMarker, fieldMarker.Start, line, errors.New("missing header marker"))
	}

	var h Header
	var err error
	if h.Month, h.Day, err = parseMonthDay(line); err != nil {
		return Header{}, err
	}
	if h.Year, err = fieldYear.integer(line, 0); err != nil {
		return Header{}, err
	}
	if !validDate(h.Year, h.Month, h.Day) {
		return Header{}, dayError(line, h.Year, h.Month, h.Day)
	}
	if h.Days, err = fieldDays.integer(line, 0); err != nil {
		return Header{}, err
	}
	if h.StormNumber, err = fieldStormNumber.integer(line, 0); err != nil {
		return Header{}, err
	}

	name, err := fieldName.text(line, 0)
	if err != nil {
		return Header{}, err
	}
	h.Name = strings.TrimSpace(name)
	if h.Name == "" {
		h.Name = unnamed
	}

	flag, err := fieldLandfall.text(line, 0)
	if err != nil {
		return Header{}, err
	}
	h.Landfall = flag == "1"
	return h, nil
}

// ParseObservationLine reads one day of observations. The whole line fails if
// any present block is malformed.
func ParseObservationLine(line string) (ObservationLine, error) {
	var ol ObservationLine
	var err error
	if ol.Month, ol.Day, err = parseMonthDay(line); err != nil {
		return ObservationLine{}, err
	}
	for i := range ol.Blocks {
		if ol.Blocks[i], err = parseBlock(line, blockStart+i*blockWidth); err != nil {
			return ObservationLine{}, err
		}
	}
	return ol, nil
}

func parseBlock(line string, base int) (Block, error) {
	if base >= len(line) || strings.TrimSpace(line[base:min(base+blockWidth, len(line))]) == "" {
		return Block{}, nil
	}

	lat, err := fieldLat.tenths(line, base)
	if err != nil {
		return Block{}, err
	}
	lon, err := fieldLon.tenths(line, base)
	if err != nil {
		return Block{}, err
	}
	wind, err := fieldWind.integer(line, base)
	if err != nil {
		return Block{}, err
	}
	pressure, err := fieldPressure.integer(line, base)
	if err != nil {
		return Block{}, err
	}
	if wind == 0 && lat == 0 {
		return Block{}, nil
	}

	stage, ok := DecodeStage(line[base+fieldStage.Start])
	if !ok {
		return Block{}, recordError(fieldStage, base+fieldStage.Start, line,
			fmt.Errorf("unknown stage code %q", line[base+fieldStage.Start]))
	}
	if pressure == 0 {
		pressure = MissingPressure
	}
	return Block{
		Present:  true,
		Stage:    stage,
		Lat:      lat,
		Lon:      NormalizeLongitude(lon),
		Wind:     wind,
		Pressure: pressure,
	}, nil
}

// NormalizeLongitude converts a west-positive magnitude to signed degrees.
// Magnitudes of 180 or more have crossed the antimeridian and map to raw-360.
func NormalizeLongitude(raw float64) float64 {
	if raw >= 180 {
		return raw - 360
	}
	return -raw
}

func parseMonthDay(line string) (int, int, error) {
	month, err := fieldMonth.integer(line, 0)
	if err != nil {
		return 0, 0, err
	}
	if month < 1 || month > 12 {
		return 0, 0, recordError(fieldMonth, fieldMonth.Start, line, fmt.Errorf("month %d out of range", month))
	}
	day, err := fieldDay.integer(line, 0)
	if err != nil {
		return 0, 0, err
	}
	// Observation lines carry no year; the assembler rechecks February 29.
	if day < 1 || !validDate(leapYear, month, day) {
		return 0, 0, recordError(fieldDay, fieldDay.Start, line, fmt.Errorf("day %d out of range for month %d", day, month))
	}
	return month, day, nil
}

const leapYear = 2000

// validDate reports whether month/day exists in year, so that time.Date does
// not carry it into the next month.
func validDate(year, month, day int) bool {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Month() == time.Month(month) && t.Day() == day
}

func dayError(line string, year, month, day int) error {
	return recordError(fieldDay, fieldDay.Start, line, fmt.Errorf("%02d/%02d does not exist in %d", month, day, year))
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
