package domain

import "fmt"

// DefaultNumMeas is the window size used when a profile does not set one.
const DefaultNumMeas = 4

// Profile is one named export: which observations qualify and how many
// samples the windowed midpoints use.
type Profile struct {
	Name     string
	NumMeas  int
	Criteria Criteria
}

// Validate checks the fields a run depends on.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.NumMeas < 1 {
		return fmt.Errorf("profile %q: num_meas %d must be at least 1", p.Name, p.NumMeas)
	}
	return nil
}
