package catalog

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/placemark-app/placemark-client/pkg/pagination"
)

// Query parameter names understood by the collection endpoints.
const (
	ParamTake       = "take"
	ParamCursor     = "cursorId"
	ParamCategories = "categoryList"
	ParamRegions    = "addressList"
)

// Filter narrows a collection query. A different Filter is a different collection.
type Filter struct {
	Categories []string
	Regions    []string
	// FolderID scopes place queries to one folder; 0 means all places.
	FolderID int64
}

// Normalized returns a copy with trimmed, de-duplicated and sorted values.
// Equal filters normalize to equal values.
func (f Filter) Normalized() Filter {
	return Filter{
		Categories: normalizeValues(f.Categories),
		Regions:    normalizeValues(f.Regions),
		FolderID:   f.FolderID,
	}
}

// Equal reports whether f and other select the same collection.
func (f Filter) Equal(other Filter) bool {
	a, b := f.Normalized(), other.Normalized()
	return a.FolderID == b.FolderID &&
		slices.Equal(a.Categories, b.Categories) &&
		slices.Equal(a.Regions, b.Regions)
}

// WithFolder returns a copy scoped to folderID.
func (f Filter) WithFolder(folderID int64) Filter {
	out := f.Normalized()
	out.FolderID = folderID
	return out
}

// Query encodes the filter for the page at cursor.
// cursorId is omitted for the first page; list filters repeat once per value and
// are omitted when empty.
func (f Filter) Query(cursor pagination.Cursor, take int) url.Values {
	n := f.Normalized()

	query := url.Values{
		ParamTake: {strconv.Itoa(take)},
	}
	if cursor != pagination.StartCursor {
		query[ParamCursor] = []string{strconv.FormatInt(int64(cursor), 10)}
	}
	if len(n.Categories) > 0 {
		query[ParamCategories] = n.Categories
	}
	if len(n.Regions) > 0 {
		query[ParamRegions] = n.Regions
	}
	return query
}

func normalizeValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
