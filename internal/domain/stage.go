package domain

import "fmt"

// Stage is the life-cycle stage of a storm at one observation.
type Stage string

const (
	TropicalCyclone Stage = "Tropical Cyclone"
	Subtropical     Stage = "Subtropical"
	Extratropical   Stage = "Extratropical"
	Wave            Stage = "Wave"
	RemnantLow      Stage = "Remnant Low"
)

var stageCodes = map[byte]Stage{
	'*': TropicalCyclone,
	'S': Subtropical,
	'E': Extratropical,
	'W': Wave,
	'L': RemnantLow,
}

// Stages lists every stage in code order.
var Stages = []Stage{TropicalCyclone, Subtropical, Extratropical, Wave, RemnantLow}

// DecodeStage maps a single-character HURDAT stage code to its Stage.
func DecodeStage(code byte) (Stage, bool) {
	s, ok := stageCodes[code]
	return s, ok
}

// ParseStage validates a stage label such as "Extratropical".
func ParseStage(label string) (Stage, error) {
	for _, s := range Stages {
		if string(s) == label {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", label)
}
