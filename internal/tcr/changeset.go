package tcr

import (
	"path"
	"sort"
	"strings"

	"stageline/internal/config"
)

// Detector classifies changed paths into configured targets.
type Detector struct {
	names   []string
	targets map[string]config.Target
}

func NewDetector(targets map[string]config.Target) Detector {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return Detector{names: names, targets: targets}
}

// ChangeSet is the classification of one set of changed paths.
type ChangeSet struct {
	Files     []string            `json:"files"`
	ByTarget  map[string][]string `json:"by_target"`
	Unmatched []string            `json:"unmatched,omitempty"`
}

// Targets returns targets with at least one changed file, by name.
func (c ChangeSet) Targets() []string {
	names := make([]string, 0, len(c.ByTarget))
	for name := range c.ByTarget {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c ChangeSet) Empty() bool { return len(c.ByTarget) == 0 }

// Label is a short description of the affected targets, e.g. "frontend" or "both".
func (c ChangeSet) Label() string {
	names := c.Targets()
	switch len(names) {
	case 0:
		return "none"
	case 1:
		return names[0]
	case 2:
		return "both"
	}
	return strings.Join(names, "+")
}

// Classify assigns every path to the first target, in name order, that claims it.
// Paths no target claims are reported as unmatched and otherwise ignored.
func (d Detector) Classify(paths []string) ChangeSet {
	cs := ChangeSet{ByTarget: map[string][]string{}}
	seen := map[string]bool{}
	for _, p := range paths {
		p = normalize(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		cs.Files = append(cs.Files, p)
		matched := false
		for _, name := range d.names {
			if claims(d.targets[name], p) {
				cs.ByTarget[name] = append(cs.ByTarget[name], p)
				matched = true
				break
			}
		}
		if !matched {
			cs.Unmatched = append(cs.Unmatched, p)
		}
	}
	sort.Strings(cs.Files)
	for name := range cs.ByTarget {
		sort.Strings(cs.ByTarget[name])
	}
	sort.Strings(cs.Unmatched)
	return cs
}

func claims(t config.Target, p string) bool {
	prefixed := false
	for _, prefix := range t.Paths {
		prefix = normalize(prefix)
		if prefix == "" || prefix == "." || strings.HasPrefix(p, prefix) {
			prefixed = true
			break
		}
	}
	if !prefixed {
		return false
	}
	if len(t.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(p))
	for _, e := range t.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func normalize(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}
