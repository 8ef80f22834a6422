// Package project defines the Project record that owns issues, sprints and epics.
package project

import (
	"regexp"
	"strings"
	"time"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/issue"
)

var keyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// Project groups issues under a short upper-case key such as "WEB".
type Project struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	NextSeq   int       `yaml:"next_seq" json:"next_seq"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// New validates the key and name and returns a project whose first issue
// will be numbered 1.
func New(key, name string, now time.Time) (*Project, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = key
	}
	return &Project{ID: key, Name: name, NextSeq: 1, CreatedAt: now}, nil
}

// ValidateKey checks a project key: 2-10 upper-case letters or digits,
// starting with a letter.
func ValidateKey(key string) error {
	if keyPattern.MatchString(key) {
		return nil
	}
	return apierr.Newf(apierr.InvalidInput,
		"invalid project key %q: use 2-10 upper-case letters or digits, starting with a letter", key).
		WithDetails(map[string]any{"field": "project", "input": key})
}

// AllocateKey returns the next issue key and advances the sequence.
func (p *Project) AllocateKey() string {
	if p.NextSeq < 1 {
		p.NextSeq = 1
	}
	key := issue.FormatKey(p.ID, p.NextSeq)
	p.NextSeq++
	return key
}
