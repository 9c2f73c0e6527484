package skills

// Catalog holds every skill discovered across the search path, keyed by
// name with first-source-wins precedence.
type Catalog struct {
	skills map[string]Skill
	order  []string
}

// Load discovers skills across searchPaths in priority order (earlier
// paths win on a name collision), typically workspace skills first, then
// the user's global `~/.janus/skills`, then any built-in directory.
func Load(searchPaths ...string) *Catalog {
	c := &Catalog{skills: make(map[string]Skill)}
	for _, dir := range searchPaths {
		for _, s := range discoverDir(dir) {
			if _, exists := c.skills[s.Name]; exists {
				continue
			}
			c.skills[s.Name] = s
			c.order = append(c.order, s.Name)
		}
	}
	return c
}

// All returns every loaded skill in discovery order.
func (c *Catalog) All() []Skill {
	out := make([]Skill, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.skills[name])
	}
	return out
}

// Get returns one skill by name.
func (c *Catalog) Get(name string) (Skill, bool) {
	s, ok := c.skills[name]
	return s, ok
}

// Visible filters All() by a user's skill allow/deny lists: an empty
// allow list means everything not denied is visible.
func (c *Catalog) Visible(allow, deny []string) []Skill {
	var out []Skill
	for _, s := range c.All() {
		if len(allow) > 0 && !contains(allow, s.Name) {
			continue
		}
		if contains(deny, s.Name) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
