package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/hurdat-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

// profilesFile is the on-disk shape of PROFILES_PATH.
type profilesFile struct {
	Profiles []profileEntry `yaml:"profiles"`
}

type profileEntry struct {
	Name     string   `yaml:"name"`
	NumMeas  int      `yaml:"num_meas"`
	Match    string   `yaml:"match"`
	Stage    []string `yaml:"stage"`
	Cat      []string `yaml:"cat"`
	Landfall *bool    `yaml:"landfall"`
}

// DefaultProfiles is the single unfiltered export used when no profiles file
// is configured.
func DefaultProfiles(numMeas int) []domain.Profile {
	return []domain.Profile{{Name: "all", NumMeas: numMeas}}
}

// LoadProfiles reads and validates a profiles file. Profiles without
// num_meas take numMeas.
func LoadProfiles(path string, numMeas int) ([]domain.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return ParseProfiles(data, numMeas)
}

// ParseProfiles decodes profiles from YAML. A cat entry may be a single
// label or an inclusive range such as "TS..H5".
func ParseProfiles(data []byte, numMeas int) ([]domain.Profile, error) {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if len(file.Profiles) == 0 {
		return nil, fmt.Errorf("parse profiles: no profiles defined")
	}

	profiles := make([]domain.Profile, 0, len(file.Profiles))
	seen := make(map[string]bool, len(file.Profiles))
	for _, e := range file.Profiles {
		p, err := e.toProfile(numMeas)
		if err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("profile %q defined twice", p.Name)
		}
		seen[p.Name] = true
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func (e profileEntry) toProfile(numMeas int) (domain.Profile, error) {
	p := domain.Profile{Name: e.Name, NumMeas: e.NumMeas}
	if p.NumMeas == 0 {
		p.NumMeas = numMeas
	}

	comb, err := domain.ParseCombinator(e.Match)
	if err != nil {
		return p, fmt.Errorf("profile %q: %w", e.Name, err)
	}
	p.Criteria.Combinator = comb
	p.Criteria.Landfall = e.Landfall

	if e.Stage != nil {
		p.Criteria.Stages = make([]domain.Stage, 0, len(e.Stage))
		for _, label := range e.Stage {
			s, err := domain.ParseStage(label)
			if err != nil {
				return p, fmt.Errorf("profile %q: %w", e.Name, err)
			}
			p.Criteria.Stages = append(p.Criteria.Stages, s)
		}
	}
	if e.Cat != nil {
		p.Criteria.Categories = make([]domain.Category, 0, len(e.Cat))
		for _, entry := range e.Cat {
			cats, err := parseCategoryEntry(entry)
			if err != nil {
				return p, fmt.Errorf("profile %q: %w", e.Name, err)
			}
			for _, c := range cats {
				if !slices.Contains(p.Criteria.Categories, c) {
					p.Criteria.Categories = append(p.Criteria.Categories, c)
				}
			}
		}
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func parseCategoryEntry(entry string) ([]domain.Category, error) {
	lo, hi, isRange := strings.Cut(entry, "..")
	if !isRange {
		c, err := domain.ParseCategory(strings.TrimSpace(entry))
		if err != nil {
			return nil, err
		}
		return []domain.Category{c}, nil
	}

	from, err := domain.ParseCategory(strings.TrimSpace(lo))
	if err != nil {
		return nil, err
	}
	to, err := domain.ParseCategory(strings.TrimSpace(hi))
	if err != nil {
		return nil, err
	}
	i, j := slices.Index(domain.Categories, from), slices.Index(domain.Categories, to)
	if i > j {
		return nil, fmt.Errorf("category range %q runs backwards", entry)
	}
	return slices.Clone(domain.Categories[i : j+1]), nil
}
