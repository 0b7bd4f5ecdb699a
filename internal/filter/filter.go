package filter

import (
	"strings"

	"hempies/coasync/internal/domain"
)

// Filter decides whether a catalog item belongs to an excluded category.
// Entries may be Square category IDs or display names; either kind of
// match excludes, case-insensitively.
type Filter struct {
	entries map[string]struct{}
}

func New(entries []string) *Filter {
	f := &Filter{entries: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			f.entries[e] = struct{}{}
		}
	}
	return f
}

func (f *Filter) Size() int {
	return len(f.entries)
}

// Excluded reports whether any of the item's categories, by id or by
// name, is in the exclusion list. A single match anywhere in the item's
// category list excludes the whole item.
func (f *Filter) Excluded(item domain.CatalogItem) bool {
	if len(f.entries) == 0 {
		return false
	}
	for _, pair := range item.CategoryPairs() {
		if f.match(pair[0]) || f.match(pair[1]) {
			return true
		}
	}
	return false
}

func (f *Filter) match(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return false
	}
	_, ok := f.entries[value]
	return ok
}

// Normalize splits raw exclusion-list text on newlines, commas and
// semicolons into a trimmed, non-empty string list. Settings accept
// free-form text; matching always goes through New.
func Normalize(raw string) []string {
	raw = strings.NewReplacer(",", "\n", ";", "\n").Replace(raw)
	parts := strings.Split(raw, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
