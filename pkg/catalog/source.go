package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/placemark-app/placemark-client/pkg/pagination"
)

// Resource paths of the paginated collections.
const (
	PathPlaces          = "/places"
	PathFolders         = "/folders"
	PathCollectionLinks = "/collections/links"
)

// FolderPlacesPath returns the path of the places saved in one folder.
func FolderPlacesPath(folderID int64) string {
	return PathFolders + "/" + strconv.FormatInt(folderID, 10) + "/places"
}

// Getter performs authenticated GET requests and decodes JSON bodies.
// *client.Client implements it.
type Getter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// restSource fetches pages of one filtered collection from the API.
type restSource[T pagination.Item] struct {
	getter     Getter
	path       string
	filter     Filter
	collection string
}

// CollectionName implements pagination.Named.
func (s *restSource[T]) CollectionName() string {
	return s.collection
}

// FetchPage implements pagination.PageSource.
func (s *restSource[T]) FetchPage(ctx context.Context, req pagination.PageRequest) (pagination.Page[T], error) {
	var body json.RawMessage
	if err := s.getter.GetJSON(ctx, s.path, s.filter.Query(req.Cursor, req.Take), &body); err != nil {
		return pagination.Page[T]{}, err
	}

	page, err := decodePage[T](body)
	if err != nil {
		return pagination.Page[T]{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return page, nil
}

func newSource[T pagination.Item](getter Getter, collection, path string, filter Filter) pagination.PageSource[T] {
	return &restSource[T]{
		getter:     getter,
		path:       path,
		filter:     filter.Normalized(),
		collection: collection,
	}
}

// PlacesSource pages through places. A non-zero FolderID scopes it to that folder.
func PlacesSource(getter Getter, filter Filter) pagination.PageSource[Place] {
	if filter.FolderID != 0 {
		return newSource[Place](getter, CollectionFolderPlaces, FolderPlacesPath(filter.FolderID), filter)
	}
	return newSource[Place](getter, CollectionPlaces, PathPlaces, filter)
}

// FolderPlacesSource pages through the places of one folder.
func FolderPlacesSource(getter Getter, folderID int64, filter Filter) pagination.PageSource[Place] {
	return PlacesSource(getter, filter.WithFolder(folderID))
}

// FoldersSource pages through the user's folders.
func FoldersSource(getter Getter, filter Filter) pagination.PageSource[Folder] {
	return newSource[Folder](getter, CollectionFolders, PathFolders, filter)
}

// CollectionLinksSource pages through saved links.
func CollectionLinksSource(getter Getter, filter Filter) pagination.PageSource[CollectionLink] {
	return newSource[CollectionLink](getter, CollectionLinks, PathCollectionLinks, filter)
}
