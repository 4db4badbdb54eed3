// Package manifest parses and validates the submission manifest
// (config.yaml) carried inside a judged archive.
package manifest

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ProblemType selects which Environment a submission's tests run under.
type ProblemType string

const (
	TypeStandard    ProblemType = "standard"
	TypeInteractive ProblemType = "interactive"
)

// Limits are the resource limits applied to the submission's own solution
// process. Checkers run unlimited; interactors reuse Time and RealTime but
// run without memory, stack or process limits.
type Limits struct {
	Time     float64  `yaml:"time" validate:"gt=0"`
	RealTime float64  `yaml:"real_time" validate:"gt=0"`
	Memory   int64    `yaml:"memory" validate:"gt=0"`
	Stack    *int64   `yaml:"stack"`
}

// TestsRange is a 1-based, inclusive test index range.
type TestsRange struct {
	First int `yaml:"first" validate:"gte=1"`
	Last  int `yaml:"last" validate:"gtefield=First"`
}

// Contains reports whether the 1-based test index t is within the range.
func (r TestsRange) Contains(t int) bool {
	return t >= r.First && t <= r.Last
}

// Group is a scored, atomically-blocking subset of tests.
type Group struct {
	ID      int        `yaml:"id" validate:"gte=0"`
	Range   TestsRange `yaml:"range" validate:"required"`
	Cost    int        `yaml:"cost" validate:"gte=0"`
	Depends []int      `yaml:"depends"`
}

// Manifest is the parsed config.yaml describing one submission.
type Manifest struct {
	Type    ProblemType `yaml:"type" validate:"required,oneof=standard interactive"`
	Lang    Language    `yaml:"lang"`
	Limits  Limits      `yaml:"limits" validate:"required"`
	Groups  []Group     `yaml:"groups" validate:"dive"`
}

var validate = validator.New()

// Parse decodes and validates a manifest document. Invariants enforced
// beyond struct tags: group ids are dense indices into Groups, depends
// references existing ids, and ranges are non-empty (struct tags already
// enforce First<=Last and First>=1).
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse: %w", err)
	}

	if err := validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("manifest: validate: %w", err)
	}

	known := make(map[int]bool, len(m.Groups))
	for i, g := range m.Groups {
		if g.ID != i {
			return nil, fmt.Errorf("manifest: group %d has id %d, expected dense index %d", i, g.ID, i)
		}
		known[g.ID] = true
	}
	for _, g := range m.Groups {
		for _, d := range g.Depends {
			if !known[d] {
				return nil, fmt.Errorf("manifest: group %d depends on unknown group %d", g.ID, d)
			}
		}
	}

	return &m, nil
}

// ParseFile reads and parses the manifest at path.
func ParseFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return Parse(data)
}
