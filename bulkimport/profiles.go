package bulkimport

import (
	"fmt"
	"io"
	"os"

	"github.com/poiesic/mentormatch/core"
	"gopkg.in/yaml.v3"
)

// LoadProfiles reads profiles from a YAML or JSON file.
func LoadProfiles(path string) ([]core.Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	profiles, err := ParseProfiles(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return profiles, nil
}

// ParseProfiles decodes a list of profiles:
//
//	- subject_id: m1
//	  fields:
//	    skills: go, kubernetes
//	    goals: help new engineers
func ParseProfiles(r io.Reader) ([]core.Profile, error) {
	var profiles []core.Profile
	if err := yaml.NewDecoder(r).Decode(&profiles); err != nil {
		if err == io.EOF {
			return []core.Profile{}, nil
		}
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	return profiles, nil
}
