package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSkillMD = `---
name: weather
description: Fetch current weather for a city
version: "1.0"
requires:
  bins: [curl]
  env: [WEATHER_API_KEY]
always: false
---

# Weather

Call the weather API and summarize the forecast.
`

func TestParseSkillMDExtractsFrontmatterAndBody(t *testing.T) {
	s, err := ParseSkillMD(sampleSkillMD)
	if err != nil {
		t.Fatalf("ParseSkillMD() error: %v", err)
	}
	if s.Name != "weather" || s.Description != "Fetch current weather for a city" {
		t.Errorf("unexpected metadata: %+v", s)
	}
	if s.Requires.Bins[0] != "curl" || s.Requires.Env[0] != "WEATHER_API_KEY" {
		t.Errorf("unexpected requires: %+v", s.Requires)
	}
	if !strings.Contains(s.Body, "Call the weather API") {
		t.Errorf("expected body to contain instructions, got %q", s.Body)
	}
}

func TestParseSkillMDMissingNameErrors(t *testing.T) {
	content := "---\ndescription: no name here\n---\nbody\n"
	if _, err := ParseSkillMD(content); err != ErrMissingName {
		t.Errorf("expected ErrMissingName, got %v", err)
	}
}

func TestParseSkillMDMissingDelimiterErrors(t *testing.T) {
	if _, err := ParseSkillMD("just plain markdown, no front matter"); err == nil {
		t.Fatal("expected an error for missing front-matter delimiter")
	}
}

func TestCatalogLoadFirstSourceWins(t *testing.T) {
	workspaceDir := t.TempDir()
	globalDir := t.TempDir()

	writeSkill(t, workspaceDir, "weather", "workspace version of weather")
	writeSkill(t, globalDir, "weather", "global version of weather")
	writeSkill(t, globalDir, "github", "github skill")

	c := Load(workspaceDir, globalDir)
	all := c.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 distinct skills, got %d", len(all))
	}
	got, ok := c.Get("weather")
	if !ok {
		t.Fatal("expected weather skill to be present")
	}
	if !strings.Contains(got.Body, "workspace version") {
		t.Errorf("expected the workspace copy to win, got %q", got.Body)
	}
}

func TestCatalogVisibleFiltersByAllowDeny(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "weather", "weather body")
	writeSkill(t, dir, "github", "github body")

	c := Load(dir)

	onlyWeather := c.Visible([]string{"weather"}, nil)
	if len(onlyWeather) != 1 || onlyWeather[0].Name != "weather" {
		t.Errorf("expected allow list to restrict to weather, got %+v", onlyWeather)
	}

	denyGithub := c.Visible(nil, []string{"github"})
	if len(denyGithub) != 1 || denyGithub[0].Name != "weather" {
		t.Errorf("expected deny list to exclude github, got %+v", denyGithub)
	}
}

func TestBuildPromptSectionAlwaysSkillGetsFullBlock(t *testing.T) {
	dir := t.TempDir()
	writeSkillWithAlways(t, dir, "onboarding", "onboarding instructions", true)
	c := Load(dir)

	section := BuildPromptSection(c.All(), 0, 0)
	if !strings.Contains(section, "<skill name=\"onboarding\">") {
		t.Errorf("expected a full block for an always=true skill, got %q", section)
	}
	if !strings.Contains(section, "onboarding instructions") {
		t.Errorf("expected the body inlined for always=true, got %q", section)
	}
}

func TestBuildPromptSectionNonAlwaysGetsStub(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "weather", "weather body")
	c := Load(dir)

	section := BuildPromptSection(c.All(), 0, 0)
	if strings.Contains(section, "weather body") {
		t.Errorf("expected a stub (no body) for a non-always skill, got %q", section)
	}
	if !strings.Contains(section, `<skill name="weather"`) || !strings.Contains(section, "location=") {
		t.Errorf("expected a self-closing stub with a location, got %q", section)
	}
}

func TestBuildPromptSectionTruncatesAtMaxCount(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "a", "a")
	writeSkill(t, dir, "b", "b")
	writeSkill(t, dir, "c", "c")
	c := Load(dir)

	section := BuildPromptSection(c.All(), 2, 0)
	if !strings.Contains(section, "truncated") {
		t.Errorf("expected a truncation marker when exceeding max count, got %q", section)
	}
}

func writeSkill(t *testing.T, root, name, body string) {
	t.Helper()
	writeSkillWithAlways(t, root, name, body, false)
}

func writeSkillWithAlways(t *testing.T, root, name, body string, always bool) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "---\nname: " + name + "\ndescription: " + name + " skill\nalways: " + boolStr(always) + "\n---\n\n" + body + "\n"
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
