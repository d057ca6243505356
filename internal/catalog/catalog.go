package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"mutool.ai/internal/item"
)

const (
	// ScanIDs bounds the id probe per group.
	ScanIDs = 200
	// ScanLevels is the number of levels probed per id (0..15).
	ScanLevels = item.MaxLevel + 1
)

// NameResolver returns the client display name for an item code at a level.
// An empty name means the client has no such item.
type NameResolver interface {
	ResolveName(ctx context.Context, code item.Code, level uint8) (string, error)
}

// ResolverFunc adapts a plain function to NameResolver.
type ResolverFunc func(ctx context.Context, code item.Code, level uint8) (string, error)

func (f ResolverFunc) ResolveName(ctx context.Context, code item.Code, level uint8) (string, error) {
	return f(ctx, code, level)
}

// Entry maps a code (and, when the name varies per level, a level) to its
// display name.
type Entry struct {
	Name     string    `json:"name" yaml:"name"`
	Code     item.Code `json:"code" yaml:"code"`
	Level    uint8     `json:"level,omitempty" yaml:"level,omitempty"`
	HasLevel bool      `json:"has_level,omitempty" yaml:"has_level,omitempty"`
}

// Build probes the resolver for every group/id/level and returns the entries
// in scan order.
//
// For each id the level scan stops when level 0 has no name, when a name
// carries a "+" marker, or when a name repeats the previous collected one.
// Empty names above level 0 are gaps and are skipped. An id with a single
// collected name does not keep its level.
func Build(ctx context.Context, r NameResolver) ([]Entry, error) {
	out := make([]Entry, 0, 2000)
	pending := make([]Entry, 0, ScanLevels)

	for g := 0; g < item.GroupCount; g++ {
		for id := 0; id < ScanIDs; id++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			code := item.New(item.Group(g), uint16(id))

			for lvl := 0; lvl < ScanLevels; lvl++ {
				name, err := r.ResolveName(ctx, code, uint8(lvl))
				if err != nil {
					return nil, fmt.Errorf("resolve %v level %d: %w", code, lvl, err)
				}
				if name == "" {
					if lvl == 0 {
						break
					}
					continue
				}
				if strings.Contains(name, "+") {
					break
				}
				if n := len(pending); n > 0 && pending[n-1].Name == name {
					break
				}
				pending = append(pending, Entry{Name: name, Code: code, Level: uint8(lvl), HasLevel: true})
			}

			if len(pending) == 1 {
				pending[0].Level = 0
				pending[0].HasLevel = false
			}
			out = append(out, pending...)
			pending = pending[:0]
		}
	}
	return out, nil
}

// Once builds the catalog at most once and shares the result.
type Once struct {
	once    sync.Once
	entries []Entry
	err     error
}

func (o *Once) Get(ctx context.Context, r NameResolver) ([]Entry, error) {
	o.once.Do(func() {
		o.entries, o.err = Build(ctx, r)
	})
	return o.entries, o.err
}

// Set installs a prebuilt catalog (for example one read from cache). It has
// no effect once the catalog has been resolved.
func (o *Once) Set(entries []Entry) {
	o.once.Do(func() {
		o.entries = entries
	})
}

// Name returns the display name of it, preferring a level-specific entry.
func Name(entries []Entry, it item.Item) (string, bool) {
	fallback := ""
	found := false
	lvl := it.NameLevel()
	for _, e := range entries {
		if e.Code != it.Code {
			continue
		}
		if !e.HasLevel || e.Level == lvl {
			return e.Name, true
		}
		if !found {
			fallback, found = e.Name, true
		}
	}
	return fallback, found
}
