package cli

import (
	"github.com/wtokarzewski/janus-agent/internal/agent"
	"github.com/wtokarzewski/janus-agent/internal/config"
)

// userResolver adapts the configured user registry to agent.UserResolver.
type userResolver struct {
	byID map[string]config.UserConfig
}

func newUserResolver(users []config.UserConfig) *userResolver {
	r := &userResolver{byID: make(map[string]config.UserConfig, len(users))}
	for _, u := range users {
		r.byID[u.ID] = u
	}
	return r
}

func (r *userResolver) Resolve(userID string) (agent.UserProfile, bool) {
	u, ok := r.byID[userID]
	if !ok {
		return agent.UserProfile{}, false
	}
	return agent.UserProfile{
		DisplayName:   u.DisplayName,
		ProfileDoc:    u.ProfileDoc,
		ToolAllow:     u.Tools.Allow,
		ToolDeny:      u.Tools.Deny,
		SkillAllow:    u.Skills.Allow,
		SkillDeny:     u.Skills.Deny,
		ContentPolicy: u.ContentPolicy,
	}, true
}
