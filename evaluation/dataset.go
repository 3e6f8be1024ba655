package evaluation

import (
	"fmt"
	"os"

	"github.com/poiesic/mentormatch/core"
	"gopkg.in/yaml.v3"
)

// Mentor is a profile stored before the queries run.
type Mentor struct {
	ID     string            `yaml:"id" json:"id"`
	Name   string            `yaml:"name" json:"name"`
	Fields map[string]string `yaml:"fields" json:"fields"`
}

// Query is a search whose best answer is known in advance.
type Query struct {
	Name           string              `yaml:"name" json:"name"`
	Criteria       core.SearchCriteria `yaml:"criteria" json:"criteria"`
	TargetMentorID string              `yaml:"target_mentor_id" json:"target_mentor_id"`
}

// Dataset is a labelled set of mentors and queries.
type Dataset struct {
	Mentors []Mentor `yaml:"mentors" json:"mentors"`
	Queries []Query  `yaml:"queries" json:"queries"`
}

// LoadDataset reads a dataset from a YAML or JSON file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s: %w", path, err)
	}
	return &ds, nil
}

func (ds *Dataset) mentorName(id string) string {
	for _, m := range ds.Mentors {
		if m.ID == id {
			if m.Name != "" {
				return m.Name
			}
			return m.ID
		}
	}
	return "Unknown"
}
