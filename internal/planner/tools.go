package planner

// toolResolver intersects whitelist entries with the available tool set.
type toolResolver struct {
	cfg       Config
	domains   []string
	available []string
	have      map[string]bool
}

func newToolResolver(cfg Config, domains, available []string) *toolResolver {
	have := make(map[string]bool, len(available))
	for _, t := range available {
		have[t] = true
	}
	return &toolResolver{cfg: cfg, domains: domains, available: available, have: have}
}

// forRole resolves a role through RoleTools, falling back to the union of
// the detected non-research domains, or general when none remain.
func (r *toolResolver) forRole(role string) []string {
	if key, ok := r.cfg.RoleTools[role]; ok {
		return r.union(key)
	}

	var keys []string
	for _, d := range r.domains {
		if d == "research" || d == GeneralDomain {
			continue
		}
		keys = append(keys, d)
	}
	if len(keys) == 0 {
		keys = []string{GeneralDomain}
	}
	return r.union(keys...)
}

// all returns every available tool in the order given.
func (r *toolResolver) all() []string {
	out := make([]string, 0, len(r.available))
	seen := make(map[string]bool, len(r.available))
	for _, t := range r.available {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// union concatenates the filtered whitelists of keys without duplicates.
func (r *toolResolver) union(keys ...string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, key := range keys {
		for _, t := range r.cfg.Tools[key] {
			if r.have[t] && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
