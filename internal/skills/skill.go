// Package skills loads SKILL.md documents and assembles the prompt
// section that teaches the agent which skills exist and how to load one.
package skills

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Requires describes the environment a skill needs to run.
type Requires struct {
	Bins []string `yaml:"bins"`
	Env  []string `yaml:"env"`
}

// Skill is one loaded SKILL.md document.
type Skill struct {
	Name        string
	Description string
	Version     string
	Requires    Requires
	Always      bool
	Location    string // filesystem path, for the prompt stub
	Body        string // markdown instruction text
}

type frontmatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version"`
	Requires    Requires `yaml:"requires"`
	Always      bool     `yaml:"always"`
}

// ErrMissingName is returned when a SKILL.md front-matter block has no
// name field.
var ErrMissingName = fmt.Errorf("skills: SKILL.md missing required 'name' field")

// ErrMissingDescription is returned when a SKILL.md front-matter block
// has no description field.
var ErrMissingDescription = fmt.Errorf("skills: SKILL.md missing required 'description' field")

// ParseSkillMD splits a SKILL.md document into its YAML front matter and
// markdown body, delimited by "---" lines.
func ParseSkillMD(content string) (Skill, error) {
	if !strings.HasPrefix(content, "---") {
		return Skill{}, fmt.Errorf("skills: SKILL.md missing front-matter delimiter")
	}
	parts := strings.SplitN(content[3:], "---", 2)
	if len(parts) < 2 {
		return Skill{}, fmt.Errorf("skills: SKILL.md front-matter not terminated")
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(parts[0]), &fm); err != nil {
		return Skill{}, fmt.Errorf("skills: parsing front matter: %w", err)
	}
	if strings.TrimSpace(fm.Name) == "" {
		return Skill{}, ErrMissingName
	}
	if strings.TrimSpace(fm.Description) == "" {
		return Skill{}, ErrMissingDescription
	}

	return Skill{
		Name:        strings.TrimSpace(fm.Name),
		Description: strings.TrimSpace(fm.Description),
		Version:     fm.Version,
		Requires:    fm.Requires,
		Always:      fm.Always,
		Body:        strings.TrimSpace(parts[1]),
	}, nil
}

// LoadFile reads and parses one SKILL.md file, stamping its Location.
func LoadFile(path string) (Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, fmt.Errorf("skills: reading %s: %w", path, err)
	}
	s, err := ParseSkillMD(string(content))
	if err != nil {
		return Skill{}, fmt.Errorf("skills: %s: %w", path, err)
	}
	s.Location = path
	return s, nil
}

// discoverDir finds every <dir>/<name>/SKILL.md and loads it, skipping and
// warning about any entry that fails to parse rather than aborting the
// whole scan.
func discoverDir(dir string) []Skill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []Skill
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name(), "SKILL.md")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		s, err := LoadFile(path)
		if err != nil {
			slog.Warn("skills: skipping SKILL.md that failed to parse", "path", path, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out
}
