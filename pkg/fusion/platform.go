package fusion

import (
	"sort"
	"strings"
)

// Platform names accepted by [NewPlatform].
const (
	PlatformCodinGame = "codingame"
	PlatformOther     = "other"
)

// codingameCrates are the external crates available on CodinGame servers.
var codingameCrates = []string{
	"chrono",
	"itertools",
	"libc",
	"rand",
	"regex",
	"time",
}

// Platform describes the target environment a fused file is submitted to,
// in particular which external crates it may depend on. Crate names are
// normalized so manifest spelling (my-crate) and source spelling (my_crate)
// match the same entry.
type Platform struct {
	name   string
	crates map[string]struct{}
}

// CodinGame returns the platform with the CodinGame crate allow-list.
func CodinGame() Platform {
	return NewPlatform(PlatformCodinGame, codingameCrates)
}

// NewPlatform builds a platform supporting exactly the given crates.
func NewPlatform(name string, crates []string) Platform {
	set := make(map[string]struct{}, len(crates))
	for _, c := range crates {
		c = normalizeCrate(c)
		if c != "" {
			set[c] = struct{}{}
		}
	}
	return Platform{name: name, crates: set}
}

// Name returns the platform name.
func (p Platform) Name() string { return p.name }

// Supports reports whether the platform provides the named crate.
func (p Platform) Supports(name string) bool {
	_, ok := p.crates[normalizeCrate(name)]
	return ok
}

// Crates returns the allow-list in sorted order.
func (p Platform) Crates() []string {
	out := make([]string, 0, len(p.crates))
	for c := range p.crates {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func normalizeCrate(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "-", "_")
}
