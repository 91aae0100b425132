// Package catalog maps the Placemark collections (places, folders and collection
// links) onto paginated fetchers.
//
// Every page is decoded into canonical records and validated at the API boundary.
// A page with an invalid record is rejected as a whole.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/placemark-app/placemark-client/pkg/pagination"
)

// ErrInvalidRecord is returned when a page does not match the record schema.
var ErrInvalidRecord = errors.New("catalog: invalid record")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Place is a bookmarkable location.
type Place struct {
	ID        int64     `json:"id" validate:"required,gt=0"`
	Name      string    `json:"name" validate:"required,max=200"`
	Category  string    `json:"category" validate:"omitempty,max=64"`
	Address   string    `json:"address" validate:"omitempty,max=300"`
	Latitude  float64   `json:"latitude" validate:"latitude"`
	Longitude float64   `json:"longitude" validate:"longitude"`
	ImageURL  string    `json:"imageUrl,omitempty" validate:"omitempty,url"`
	Saved     bool      `json:"saved"`
	CreatedAt time.Time `json:"createdAt"`
}

// ItemID implements pagination.Item.
func (p Place) ItemID() int64 { return p.ID }

// Folder groups saved places.
type Folder struct {
	ID            int64     `json:"id" validate:"required,gt=0"`
	Name          string    `json:"name" validate:"required,max=100"`
	PlaceCount    int       `json:"placeCount" validate:"gte=0"`
	CoverImageURL string    `json:"coverImageUrl,omitempty" validate:"omitempty,url"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ItemID implements pagination.Item.
func (f Folder) ItemID() int64 { return f.ID }

// CollectionLink is an external link saved to the user's collection.
type CollectionLink struct {
	ID        int64     `json:"id" validate:"required,gt=0"`
	Title     string    `json:"title" validate:"required,max=200"`
	URL       string    `json:"url" validate:"required,url"`
	FolderID  int64     `json:"folderId,omitempty" validate:"gte=0"`
	CreatedAt time.Time `json:"createdAt"`
}

// ItemID implements pagination.Item.
func (l CollectionLink) ItemID() int64 { return l.ID }

// envelope is the wire shape of one page. Pointers distinguish missing fields.
type envelope[T any] struct {
	Items *[]T             `json:"items"`
	Meta  *pagination.Meta `json:"meta"`
}

// decodePage decodes and validates one page body.
func decodePage[T pagination.Item](body []byte) (pagination.Page[T], error) {
	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return pagination.Page[T]{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if env.Items == nil {
		return pagination.Page[T]{}, fmt.Errorf("%w: page without items", ErrInvalidRecord)
	}
	if env.Meta == nil {
		return pagination.Page[T]{}, fmt.Errorf("%w: page without meta", ErrInvalidRecord)
	}

	items := *env.Items
	for i := range items {
		if err := validate.Struct(items[i]); err != nil {
			return pagination.Page[T]{}, fmt.Errorf("%w: item %d: %w", ErrInvalidRecord, i, err)
		}
	}

	return pagination.Page[T]{Items: items, Meta: *env.Meta}, nil
}
