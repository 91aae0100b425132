package catalog

import (
	"github.com/placemark-app/placemark-client/pkg/pagination"
)

// Collection names used in logs and metrics.
const (
	CollectionPlaces       = "places"
	CollectionFolderPlaces = "folder_places"
	CollectionFolders      = "folders"
	CollectionLinks        = "collection_links"
)

// Service creates fetchers for the Placemark collections.
// Every call returns a new, independent fetcher.
type Service struct {
	getter Getter
	take   int
}

// NewService creates a service. take <= 0 uses pagination.DefaultTake.
func NewService(getter Getter, take int) *Service {
	if take <= 0 {
		take = pagination.DefaultTake
	}
	return &Service{getter: getter, take: take}
}

// Take returns the page size of fetchers created by the service.
func (s *Service) Take() int {
	return s.take
}

func (s *Service) config(collection string) pagination.Config {
	cfg := pagination.DefaultConfig(collection)
	cfg.Take = s.take
	return cfg
}

// Places returns a fetcher over places matching filter. A non-zero FolderID
// makes it a folder_places fetcher.
func (s *Service) Places(filter Filter) *pagination.Fetcher[Place] {
	return pagination.NewFetcher(PlacesSource(s.getter, filter), s.config(CollectionPlaces))
}

// FolderPlaces returns a fetcher over the places saved in folderID.
func (s *Service) FolderPlaces(folderID int64, filter Filter) *pagination.Fetcher[Place] {
	return pagination.NewFetcher(FolderPlacesSource(s.getter, folderID, filter), s.config(CollectionFolderPlaces))
}

// Folders returns a fetcher over the user's folders.
func (s *Service) Folders(filter Filter) *pagination.Fetcher[Folder] {
	return pagination.NewFetcher(FoldersSource(s.getter, filter), s.config(CollectionFolders))
}

// CollectionLinks returns a fetcher over saved links.
func (s *Service) CollectionLinks(filter Filter) *pagination.Fetcher[CollectionLink] {
	return pagination.NewFetcher(CollectionLinksSource(s.getter, filter), s.config(CollectionLinks))
}

// PlacesBrowser returns a browser over places, starting from filter. Selecting
// a folder relabels its fetcher as folder_places, like Places does.
func (s *Service) PlacesBrowser(filter Filter) *Browser[Place] {
	return NewBrowser(filter, s.config(CollectionPlaces), func(f Filter) pagination.PageSource[Place] {
		return PlacesSource(s.getter, f)
	})
}

// FoldersBrowser returns a browser over folders, starting from filter.
func (s *Service) FoldersBrowser(filter Filter) *Browser[Folder] {
	return NewBrowser(filter, s.config(CollectionFolders), func(f Filter) pagination.PageSource[Folder] {
		return FoldersSource(s.getter, f)
	})
}

// CollectionLinksBrowser returns a browser over saved links, starting from filter.
func (s *Service) CollectionLinksBrowser(filter Filter) *Browser[CollectionLink] {
	return NewBrowser(filter, s.config(CollectionLinks), func(f Filter) pagination.PageSource[CollectionLink] {
		return CollectionLinksSource(s.getter, f)
	})
}
