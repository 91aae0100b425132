// Package pagination drives cursor-paginated collections of the Placemark API.
//
// The API pages collections with an opaque numeric cursor: the first request omits
// it, every response carries meta.hasNextPage and meta.nextCursorId, and the client
// passes the returned cursor back to get the following page. A Fetcher accumulates
// the pages of one filter context into a single ordered, de-duplicated list and
// exposes a "load more" operation that is safe to call repeatedly, e.g. from a
// scroll-near-bottom handler.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(source, pagination.DefaultConfig("places"))
//	for fetcher.HasMore() {
//		if _, _, err := fetcher.LoadNext(ctx); err != nil {
//			return err
//		}
//	}
//	places := fetcher.Items()
//
// The fetcher:
//   - Issues at most one request at a time (Idle -> Loading -> Idle|Exhausted)
//   - Appends each page in arrival order, dropping items already seen
//   - Leaves the list and cursor untouched when a request fails, so the next
//     LoadNext retries from the same position
//   - Discards pages that complete after Reset switched to another filter context
//   - Treats a cursor that does not advance as the end of the collection
//
// Prefetcher loads the first page of many independent fetchers in parallel.
package pagination
