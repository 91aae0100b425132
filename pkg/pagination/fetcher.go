package pagination

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/placemark-app/placemark-client/pkg/logging"
	"github.com/rs/zerolog"
)

// Config holds fetcher configuration.
type Config struct {
	// Collection names the collection in logs and metrics (e.g. "places")
	Collection string

	// Take is the page size sent with every request
	Take int

	// OnStateChange is called after state transitions, outside the fetcher lock.
	// Calls are serialized and carry the state at delivery time, so transitions
	// racing each other may be coalesced but the last call always matches State.
	// Screens use it to drive spinners and disable "load more" buttons.
	// It must not call LoadNext or Reset.
	OnStateChange func(State)
}

// DefaultConfig returns the configuration used by the Placemark screens.
func DefaultConfig(collection string) Config {
	return Config{
		Collection: collection,
		Take:       DefaultTake,
	}
}

// Fetcher accumulates the pages of one filtered collection.
//
// All state is owned by the fetcher. Callers read it through Items, HasMore,
// Loading and State, and change it only through Reset and LoadNext.
// A Fetcher is safe for concurrent use.
type Fetcher[T Item] struct {
	config Config
	base   zerolog.Logger

	mu         sync.Mutex
	source     PageSource[T]
	collection string
	logger     zerolog.Logger
	items      []T
	seen       map[int64]struct{}
	cursor     Cursor
	state      State
	generation uint64
	cancel     context.CancelFunc

	// transitions counts state changes; notifyMu serializes OnStateChange
	// and guards delivered, the last transition handed to it.
	transitions uint64
	notifyMu    sync.Mutex
	delivered   uint64
}

// NewFetcher creates a fetcher bound to source.
func NewFetcher[T Item](source PageSource[T], config Config) *Fetcher[T] {
	if config.Take <= 0 {
		config.Take = DefaultTake
	}
	if config.Collection == "" {
		config.Collection = "collection"
	}

	f := &Fetcher[T]{
		config: config,
		base:   logging.NewLogger("pagination"),
		seen:   make(map[int64]struct{}),
		cursor: StartCursor,
		state:  StateIdle,
	}
	f.bind(source)
	return f
}

// bind sets the source and the collection label it implies.
// Callers must hold f.mu once the fetcher is shared.
func (f *Fetcher[T]) bind(source PageSource[T]) {
	f.source = source
	f.collection = f.config.Collection
	if named, ok := source.(Named); ok {
		if name := named.CollectionName(); name != "" {
			f.collection = name
		}
	}
	f.logger = f.base.With().Str("collection", f.collection).Logger()
}

// Reset discards the accumulated list and rewinds to the first page.
// A non-nil source replaces the current one, which is how a new filter context is
// bound. A request still in flight is cancelled and its page will be discarded.
func (f *Fetcher[T]) Reset(source PageSource[T]) {
	f.mu.Lock()
	if source != nil {
		f.bind(source)
	}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.generation++
	f.items = nil
	f.seen = make(map[int64]struct{})
	f.cursor = StartCursor
	f.setState(StateIdle)
	generation := f.generation
	logger := f.logger
	f.mu.Unlock()

	logger.Debug().Uint64("generation", generation).Msg("Fetcher reset")
	f.notify()
}

// LoadNext requests the page at the current cursor and appends it.
//
// It returns fetched=false with a nil error, and does nothing, when a load is
// already in flight or the collection is exhausted. On failure the accumulated
// list, cursor and end-of-data flag are left untouched and a *FetchError is
// returned. The returned page is the page as sent by the server; items already
// present in the list are not appended again.
func (f *Fetcher[T]) LoadNext(ctx context.Context) (Page[T], bool, error) {
	f.mu.Lock()
	if f.state != StateIdle {
		f.mu.Unlock()
		return Page[T]{}, false, nil
	}
	if f.source == nil {
		f.mu.Unlock()
		return Page[T]{}, false, ErrNoSource
	}

	source := f.source
	collection, logger := f.collection, f.logger
	cursor := f.cursor
	generation := f.generation
	reqCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.setState(StateLoading)
	f.mu.Unlock()
	defer cancel()

	f.notify()

	start := time.Now()
	page, err := source.FetchPage(reqCtx, PageRequest{Cursor: cursor, Take: f.config.Take})
	PageDuration.WithLabelValues(collection).Observe(time.Since(start).Seconds())

	f.mu.Lock()
	if generation != f.generation {
		// Reset ran while the request was in flight; the slot belongs to the new context.
		f.mu.Unlock()
		PagesTotal.WithLabelValues(collection, "stale").Inc()
		logger.Debug().
			Int64("cursor", int64(cursor)).
			Uint64("generation", generation).
			Msg("Discarding page from previous filter context")
		return Page[T]{}, false, ErrContextChanged
	}
	f.cancel = nil

	if err != nil {
		f.setState(StateIdle)
		f.mu.Unlock()
		f.notify()

		PagesTotal.WithLabelValues(collection, "error").Inc()
		logger.Warn().
			Err(err).
			Int64("cursor", int64(cursor)).
			Msg("Page load failed")
		return Page[T]{}, false, &FetchError{Collection: collection, Cursor: cursor, Err: err}
	}

	appended, duplicates := f.appendItems(page.Items)

	next := StateIdle
	stalled := false
	switch {
	case !page.Meta.HasNextPage:
		next = StateExhausted
	case page.Meta.NextCursor <= StartCursor || page.Meta.NextCursor == cursor:
		stalled = true
		next = StateExhausted
	default:
		f.cursor = page.Meta.NextCursor
	}
	f.setState(next)
	total := len(f.items)
	f.mu.Unlock()
	f.notify()

	PagesTotal.WithLabelValues(collection, "ok").Inc()
	ItemsTotal.WithLabelValues(collection).Add(float64(appended))
	if duplicates > 0 {
		DuplicatesTotal.WithLabelValues(collection).Add(float64(duplicates))
		logger.Debug().
			Int("duplicates", duplicates).
			Int64("cursor", int64(cursor)).
			Msg("Dropped items already accumulated")
	}
	if stalled {
		StalledCursors.WithLabelValues(collection).Inc()
		logger.Warn().
			Int64("cursor", int64(cursor)).
			Int64("next_cursor", int64(page.Meta.NextCursor)).
			Msg("Next cursor did not advance - treating as end of collection")
	}

	logger.Debug().
		Int64("cursor", int64(cursor)).
		Int("items", appended).
		Int("total", total).
		Str("state", next.String()).
		Msg("Page loaded")

	return page, true, nil
}

// Prime loads the first page if nothing has been requested yet for the current
// filter context. It lets a Prefetcher warm fetchers of different item types.
func (f *Fetcher[T]) Prime(ctx context.Context) error {
	f.mu.Lock()
	untouched := f.state == StateIdle && f.cursor == StartCursor && len(f.items) == 0
	f.mu.Unlock()
	if !untouched {
		return nil
	}

	_, _, err := f.LoadNext(ctx)
	return err
}

// Drain loads pages until the collection is exhausted or maxPages pages were
// loaded by this call. maxPages <= 0 means no limit. It returns the number of
// pages loaded.
func (f *Fetcher[T]) Drain(ctx context.Context, maxPages int) (int, error) {
	return f.DrainFunc(ctx, maxPages, nil)
}

// DrainFunc is Drain with fn called after every page with the items that page
// appended, in list order. An error from fn stops draining and is returned.
// A load already in flight elsewhere makes it return ErrLoadInFlight.
func (f *Fetcher[T]) DrainFunc(ctx context.Context, maxPages int, fn func(appended []T) error) (int, error) {
	loaded := 0
	for maxPages <= 0 || loaded < maxPages {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}

		before := f.Len()
		_, fetched, err := f.LoadNext(ctx)
		if err != nil {
			return loaded, err
		}
		if !fetched {
			if f.State() == StateExhausted {
				return loaded, nil
			}
			return loaded, ErrLoadInFlight
		}
		loaded++

		if fn != nil {
			// A concurrent Reset may have shrunk the list since before was read.
			if items := f.Items(); len(items) > before {
				if err := fn(items[before:]); err != nil {
					return loaded, err
				}
			}
		}

		if !f.HasMore() {
			return loaded, nil
		}
	}
	return loaded, nil
}

// Items returns a snapshot of the accumulated list.
// Later loads do not modify a returned snapshot.
func (f *Fetcher[T]) Items() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items)
}

// Len returns the number of accumulated items.
func (f *Fetcher[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// HasMore returns true until the server reports the last page.
func (f *Fetcher[T]) HasMore() bool {
	return f.State() != StateExhausted
}

// Loading returns true while a page request is in flight.
func (f *Fetcher[T]) Loading() bool {
	return f.State() == StateLoading
}

// State returns the current load state.
func (f *Fetcher[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Collection returns the label used for the current source.
func (f *Fetcher[T]) Collection() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collection
}

// Cursor returns the cursor the next LoadNext will request.
func (f *Fetcher[T]) Cursor() Cursor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

// String implements fmt.Stringer for debugging.
func (f *Fetcher[T]) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("%s[%s cursor=%d items=%d]", f.collection, f.state, f.cursor, len(f.items))
}

// appendItems appends items not seen before. Callers must hold f.mu.
func (f *Fetcher[T]) appendItems(items []T) (appended, duplicates int) {
	for _, item := range items {
		id := item.ItemID()
		if _, ok := f.seen[id]; ok {
			duplicates++
			continue
		}
		f.seen[id] = struct{}{}
		f.items = append(f.items, item)
		appended++
	}
	return appended, duplicates
}

// setState records a transition. Callers must hold f.mu.
func (f *Fetcher[T]) setState(s State) {
	if f.state == s {
		return
	}
	f.state = s
	f.transitions++
}

// notify delivers the current state unless no transition happened since the
// last delivery. Callers must not hold f.mu.
func (f *Fetcher[T]) notify() {
	if f.config.OnStateChange == nil {
		return
	}

	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()

	f.mu.Lock()
	state, seq := f.state, f.transitions
	f.mu.Unlock()

	if seq == f.delivered {
		return
	}
	f.delivered = seq
	f.config.OnStateChange(state)
}
