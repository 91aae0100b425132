package catalog

import (
	"context"
	"sync"

	"github.com/placemark-app/placemark-client/pkg/pagination"
)

// Browser is the controller of one collection screen. It owns the screen's
// Selection and fetcher; every change of the selected filter resets the fetcher
// onto a source for the new filter before the next page is loaded.
//
// OnStateChange callbacks of the fetcher must not change the selection.
type Browser[T pagination.Item] struct {
	mu        sync.Mutex
	selection *Selection
	filter    Filter
	sourceFor func(Filter) pagination.PageSource[T]
	fetcher   *pagination.Fetcher[T]
}

// NewBrowser creates a browser starting from filter. sourceFor binds a filter
// to a page source.
func NewBrowser[T pagination.Item](filter Filter, config pagination.Config, sourceFor func(Filter) pagination.PageSource[T]) *Browser[T] {
	selection := NewSelection(filter)
	current := selection.Filter()

	return &Browser[T]{
		selection: selection,
		filter:    current,
		sourceFor: sourceFor,
		fetcher:   pagination.NewFetcher(sourceFor(current), config),
	}
}

// update applies change and resets the fetcher if the filter changed.
func (b *Browser[T]) update(change func(*Selection)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	change(b.selection)
	next := b.selection.Filter()
	if next.Equal(b.filter) {
		return false
	}

	b.filter = next
	b.fetcher.Reset(b.sourceFor(next))
	return true
}

// ToggleCategory toggles category and reports whether it is selected afterwards.
func (b *Browser[T]) ToggleCategory(category string) bool {
	var selected bool
	b.update(func(s *Selection) { selected = s.ToggleCategory(category) })
	return selected
}

// SetCategories replaces the selected categories.
func (b *Browser[T]) SetCategories(categories ...string) {
	b.update(func(s *Selection) { s.SetCategories(categories...) })
}

// ClearCategories deselects every category.
func (b *Browser[T]) ClearCategories() {
	b.update(func(s *Selection) { s.ClearCategories() })
}

// ToggleRegion toggles region and reports whether it is selected afterwards.
func (b *Browser[T]) ToggleRegion(region string) bool {
	var selected bool
	b.update(func(s *Selection) { selected = s.ToggleRegion(region) })
	return selected
}

// SetRegions replaces the selected regions.
func (b *Browser[T]) SetRegions(regions ...string) {
	b.update(func(s *Selection) { s.SetRegions(regions...) })
}

// ClearRegions deselects every region.
func (b *Browser[T]) ClearRegions() {
	b.update(func(s *Selection) { s.ClearRegions() })
}

// SetFolder scopes the browser to folderID; 0 removes the scope.
func (b *Browser[T]) SetFolder(folderID int64) {
	b.update(func(s *Selection) { s.SetFolder(folderID) })
}

// SetFilter replaces the whole selection. It reports whether the filter changed.
func (b *Browser[T]) SetFilter(filter Filter) bool {
	return b.update(func(s *Selection) {
		s.SetCategories(filter.Categories...)
		s.SetRegions(filter.Regions...)
		s.SetFolder(filter.FolderID)
	})
}

// Filter returns the filter the current list was loaded with.
func (b *Browser[T]) Filter() Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

// Refresh discards the list and starts over with the same filter.
func (b *Browser[T]) Refresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetcher.Reset(b.sourceFor(b.filter))
}

// LoadMore loads the next page. See pagination.Fetcher.LoadNext.
func (b *Browser[T]) LoadMore(ctx context.Context) (pagination.Page[T], bool, error) {
	return b.fetcher.LoadNext(ctx)
}

// Items returns a snapshot of the accumulated list.
func (b *Browser[T]) Items() []T {
	return b.fetcher.Items()
}

// HasMore reports whether another page can be loaded.
func (b *Browser[T]) HasMore() bool {
	return b.fetcher.HasMore()
}

// Loading reports whether a page is in flight.
func (b *Browser[T]) Loading() bool {
	return b.fetcher.Loading()
}

// Fetcher returns the underlying fetcher.
func (b *Browser[T]) Fetcher() *pagination.Fetcher[T] {
	return b.fetcher
}
