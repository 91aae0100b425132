package catalog

import (
	"maps"
	"slices"
	"strings"
)

// Selection is the filter state a screen edits: chosen categories, chosen regions
// and an optional folder. It belongs to exactly one screen and is not safe for
// concurrent use on its own; Browser guards the Selection it owns.
type Selection struct {
	categories map[string]struct{}
	regions    map[string]struct{}
	folderID   int64
}

// NewSelection starts from filter.
func NewSelection(filter Filter) *Selection {
	s := &Selection{
		categories: make(map[string]struct{}),
		regions:    make(map[string]struct{}),
	}
	s.SetCategories(filter.Categories...)
	s.SetRegions(filter.Regions...)
	s.folderID = filter.FolderID
	return s
}

// ToggleCategory selects category, or deselects it when already selected.
// It reports whether the category is selected afterwards.
func (s *Selection) ToggleCategory(category string) bool {
	return toggle(s.categories, category)
}

// SetCategories replaces the selected categories.
func (s *Selection) SetCategories(categories ...string) {
	s.categories = toSet(categories)
}

// ClearCategories deselects every category.
func (s *Selection) ClearCategories() {
	clear(s.categories)
}

// ToggleRegion selects region, or deselects it when already selected.
// It reports whether the region is selected afterwards.
func (s *Selection) ToggleRegion(region string) bool {
	return toggle(s.regions, region)
}

// SetRegions replaces the selected regions.
func (s *Selection) SetRegions(regions ...string) {
	s.regions = toSet(regions)
}

// ClearRegions deselects every region.
func (s *Selection) ClearRegions() {
	clear(s.regions)
}

// SetFolder scopes the selection to folderID; 0 removes the scope.
func (s *Selection) SetFolder(folderID int64) {
	s.folderID = folderID
}

// Filter returns a normalized snapshot of the selection.
func (s *Selection) Filter() Filter {
	return Filter{
		Categories: sortedKeys(s.categories),
		Regions:    sortedKeys(s.regions),
		FolderID:   s.folderID,
	}
}

func toggle(set map[string]struct{}, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if _, ok := set[value]; ok {
		delete(set, value)
		return false
	}
	set[value] = struct{}{}
	return true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range normalizeValues(values) {
		set[v] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(set))
}
