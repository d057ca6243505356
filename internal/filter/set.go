package filter

import (
	"fmt"

	"mutool.ai/internal/catalog"
	"mutool.ai/internal/item"
)

// Set is an ordered list of filters; an item matches the set when any
// filter matches it.
type Set []*Filter

// CompileAll compiles each text independently. Texts that fail are reported
// in errs and left out of the set.
func CompileAll(texts []string, entries []catalog.Entry) (Set, []error) {
	var (
		set  Set
		errs []error
	)
	for i, text := range texts {
		f, err := Compile(text, entries)
		if err != nil {
			errs = append(errs, fmt.Errorf("items[%d]: %w", i, err))
			continue
		}
		set = append(set, f)
	}
	return set, errs
}

func (s Set) Match(it item.Item) bool {
	for _, f := range s {
		if f.Apply(it) {
			return true
		}
	}
	return false
}

// Admit is Match with the currency rule applied: zen skips every attribute
// clause and is admitted when passCurrency is set or when some filter does
// not pin a different code.
func (s Set) Admit(it item.Item, passCurrency bool) bool {
	if !it.IsZen() {
		return s.Match(it)
	}
	if passCurrency {
		return true
	}
	for _, f := range s {
		if !f.HasCode || f.Code == item.ZenCode {
			return true
		}
	}
	return false
}

// Select returns the items admitted by the set, in their original order.
func (s Set) Select(items []item.Item) []item.Item {
	var out []item.Item
	for _, it := range items {
		if s.Match(it) {
			out = append(out, it)
		}
	}
	return out
}
