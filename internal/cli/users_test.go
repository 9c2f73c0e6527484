package cli

import (
	"testing"

	"github.com/wtokarzewski/janus-agent/internal/config"
)

func TestUserResolverResolvesKnownUser(t *testing.T) {
	r := newUserResolver([]config.UserConfig{
		{
			ID:          "alice",
			DisplayName: "Alice",
			ProfileDoc:  "prefers terse replies",
			Tools:       config.AllowDenyConfig{Allow: []string{"read_file"}, Deny: []string{"exec"}},
			Skills:      config.AllowDenyConfig{Allow: []string{"deploy"}},
			ContentPolicy: "standard",
		},
	})

	profile, ok := r.Resolve("alice")
	if !ok {
		t.Fatal("expected alice to resolve")
	}
	if profile.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want Alice", profile.DisplayName)
	}
	if profile.ProfileDoc != "prefers terse replies" {
		t.Errorf("ProfileDoc = %q", profile.ProfileDoc)
	}
	if len(profile.ToolAllow) != 1 || profile.ToolAllow[0] != "read_file" {
		t.Errorf("ToolAllow = %v", profile.ToolAllow)
	}
	if len(profile.ToolDeny) != 1 || profile.ToolDeny[0] != "exec" {
		t.Errorf("ToolDeny = %v", profile.ToolDeny)
	}
	if len(profile.SkillAllow) != 1 || profile.SkillAllow[0] != "deploy" {
		t.Errorf("SkillAllow = %v", profile.SkillAllow)
	}
	if profile.ContentPolicy != "standard" {
		t.Errorf("ContentPolicy = %q", profile.ContentPolicy)
	}
}

func TestUserResolverUnknownUser(t *testing.T) {
	r := newUserResolver(nil)
	if _, ok := r.Resolve("nobody"); ok {
		t.Fatal("expected unknown user to not resolve")
	}
}
