package pagination

import "context"

// Cursor marks where the next page of a collection starts.
// StartCursor requests the first page.
type Cursor int64

// StartCursor is the cursor of the first page.
const StartCursor Cursor = 0

// DefaultTake is the page size used by every Placemark collection screen.
const DefaultTake = 10

// Item is a record that can be accumulated by a Fetcher.
// ItemID must be stable and unique within a collection.
type Item interface {
	ItemID() int64
}

// Meta is the pagination metadata returned with every page.
type Meta struct {
	HasNextPage bool   `json:"hasNextPage"`
	NextCursor  Cursor `json:"nextCursorId"`
}

// Page is one response unit of a paginated collection.
type Page[T any] struct {
	Items []T `json:"items"`
	Meta  Meta `json:"meta"`
}

// PageRequest identifies the page a PageSource should return.
type PageRequest struct {
	Cursor Cursor
	Take   int
}

// First reports whether the request targets the first page.
func (r PageRequest) First() bool {
	return r.Cursor == StartCursor
}

// PageSource fetches single pages of one filtered collection.
// The filter context is bound into the source; a new context means a new source.
type PageSource[T any] interface {
	FetchPage(ctx context.Context, req PageRequest) (Page[T], error)
}

// Named is implemented by page sources that label their own collection, e.g.
// a places source scoped to a folder. A fetcher bound to one uses the name in
// place of Config.Collection for logs, metrics and errors.
type Named interface {
	CollectionName() string
}

// PageSourceFunc adapts a function to the PageSource interface.
type PageSourceFunc[T any] func(ctx context.Context, req PageRequest) (Page[T], error)

// FetchPage calls f(ctx, req).
func (f PageSourceFunc[T]) FetchPage(ctx context.Context, req PageRequest) (Page[T], error) {
	return f(ctx, req)
}

// State is the load state of a Fetcher.
type State int

const (
	// StateIdle means the next page can be requested.
	StateIdle State = iota

	// StateLoading means a page request is in flight.
	StateLoading

	// StateExhausted means the server reported there are no more pages.
	StateExhausted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}
