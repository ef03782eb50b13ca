package domain

import (
	"errors"
	"strings"
	"time"
)

type assemblerState int

const (
	stateIdle assemblerState = iota
	stateInStorm
	stateSkipping // header rejected; its observation lines are refused
	stateDone
)

// RawLine is one dataset line with its 1-based line number.
type RawLine struct {
	Num  int
	Text string
}

// Assembler groups raw HURDAT lines into storms. It moves from idle to in
// storm on the first header and to done on Close, and carries the running
// year of the open storm so observation lines that cross New Year get the
// right date.
//
// An Assembler is not safe for concurrent use.
type Assembler struct {
	state   assemblerState
	current Storm
	pending bool // current holds a storm not yet emitted
	year    int
}

// NewAssembler returns an idle assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Feed consumes one line. When the line is a header that closes an open
// storm, the closed storm is returned with ok set.
//
// A malformed observation line is rejected as a whole: none of its blocks are
// appended and the running year is unchanged, so callers may skip it and keep
// feeding. After a malformed header every observation line up to the next
// header is rejected too; the storm open before it is still emitted.
func (a *Assembler) Feed(lineNum int, line string) (storm Storm, ok bool, err error) {
	if a.state == stateDone {
		return Storm{}, false, &Error{Kind: ErrMalformedStream, Op: "assemble", LineNum: lineNum, Err: errors.New("feed after close")}
	}
	if strings.TrimSpace(line) == "" {
		return Storm{}, false, nil
	}

	switch {
	case IsHeader(line):
		h, err := ParseHeader(line)
		if err != nil {
			a.state = stateSkipping
			return Storm{}, false, annotate(err, lineNum, 0)
		}
		storm, ok = a.current, a.pending
		a.open(h)
		return storm, ok, nil

	case IsFooter(line):
		return Storm{}, false, nil

	case a.state == stateSkipping:
		return Storm{}, false, &Error{
			Kind:    ErrMalformedRecord,
			Op:      "assemble",
			LineNum: lineNum,
			Line:    line,
			Err:     errors.New("storm header was rejected"),
		}

	default:
		if a.state != stateInStorm {
			return Storm{}, false, &Error{
				Kind:    ErrMalformedStream,
				Op:      "assemble",
				LineNum: lineNum,
				Line:    line,
				Err:     errors.New("observation line before any header"),
			}
		}
		return Storm{}, false, a.observe(lineNum, line)
	}
}

// Close ends the stream and returns the storm still open, if any.
func (a *Assembler) Close() (Storm, bool, error) {
	if a.state == stateDone {
		return Storm{}, false, &Error{Kind: ErrMalformedStream, Op: "assemble", Err: errors.New("already closed")}
	}
	storm, ok := a.current, a.pending
	a.state = stateDone
	a.current = Storm{}
	a.pending = false
	return storm, ok, nil
}

func (a *Assembler) open(h Header) {
	a.state = stateInStorm
	a.pending = true
	a.year = h.Year
	a.current = Storm{
		ID:           h.StormID(),
		Name:         h.Name,
		Year:         h.Year,
		Start:        time.Date(h.Year, time.Month(h.Month), h.Day, 0, 0, 0, 0, time.UTC),
		Landfall:     h.Landfall,
		DeclaredDays: h.Days,
	}
}

func (a *Assembler) observe(lineNum int, line string) error {
	ol, err := ParseObservationLine(line)
	if err != nil {
		return annotate(err, lineNum, a.current.ID)
	}
	if !validDate(a.year, ol.Month, ol.Day) {
		return annotate(dayError(line, a.year, ol.Month, ol.Day), lineNum, a.current.ID)
	}
	for i, b := range ol.Blocks {
		if !b.Present {
			continue
		}
		a.current.Observations = append(a.current.Observations, Observation{
			Time:     time.Date(a.year, time.Month(ol.Month), ol.Day, SynopticHours[i], 0, 0, 0, time.UTC),
			Lat:      b.Lat,
			Lon:      b.Lon,
			Wind:     b.Wind,
			Pressure: b.Pressure,
			Stage:    b.Stage,
		})
	}
	// The 18Z block is the last of the day.
	if ol.Month == 12 && ol.Day == 31 {
		a.year++
	}
	a.current.DaysRead++
	return nil
}

// AssembleLines runs a whole slice of lines through a fresh assembler. Line
// numbers in errors are 1-based.
func AssembleLines(lines []string) ([]Storm, error) {
	a := NewAssembler()
	var storms []Storm
	for i, line := range lines {
		s, ok, err := a.Feed(i+1, line)
		if err != nil {
			return storms, err
		}
		if ok {
			storms = append(storms, s)
		}
	}
	s, ok, err := a.Close()
	if err != nil {
		return storms, err
	}
	if ok {
		storms = append(storms, s)
	}
	return storms, nil
}

func annotate(err error, lineNum, stormID int) error {
	var de *Error
	if errors.As(err, &de) {
		de.LineNum = lineNum
		de.StormID = stormID
	}
	return err
}
