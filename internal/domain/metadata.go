// Tagged metadata variants for saved items.
//
// Each item type carries a small, fixed metadata shape with one canonical
// field name per concept (title, image URL, coordinates). Payloads are decoded
// exactly once at the system boundary via DecodeMetadata; everything past that
// point works with a typed value. The dedup core never probes alternate key
// spellings — the capability accessors Title and Coordinates are the only
// fields it reads, and both degrade to "absent" when a payload lacks them.
package domain

import (
	"encoding/json"
	"fmt"
)

// Metadata is the closed set of per-type metadata shapes. Implementations are
// plain value types; the interface exists only to tag the variant.
type Metadata interface {
	// MetadataType reports which ItemType this payload belongs to.
	MetadataType() ItemType
}

// RecipeMetadata describes a saved recipe.
type RecipeMetadata struct {
	Title          string `json:"title"`
	ImageURL       string `json:"image_url,omitempty"`
	SourceURL      string `json:"source_url,omitempty"`
	ReadyInMinutes int    `json:"ready_in_minutes,omitempty"`
	Servings       int    `json:"servings,omitempty"`
}

// MetadataType implements Metadata.
func (RecipeMetadata) MetadataType() ItemType { return ItemTypeRecipe }

// RestaurantMetadata describes a saved restaurant/place. Lat and Lng are
// pointers so "no coordinates" is distinguishable from the zero coordinate.
type RestaurantMetadata struct {
	Name       string   `json:"name"`
	Address    string   `json:"address,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	Rating     *float64 `json:"rating,omitempty"`
	PriceLevel int      `json:"price_level,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// MetadataType implements Metadata.
func (RestaurantMetadata) MetadataType() ItemType { return ItemTypeRestaurant }

// PhotoMetadata describes a saved photo (e.g., a snap upload).
type PhotoMetadata struct {
	Caption  string `json:"caption,omitempty"`
	ImageURL string `json:"image_url"`
}

// MetadataType implements Metadata.
func (PhotoMetadata) MetadataType() ItemType { return ItemTypePhoto }

// VideoMetadata describes a saved short video.
type VideoMetadata struct {
	Title           string `json:"title"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	ChannelTitle    string `json:"channel_title,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// MetadataType implements Metadata.
func (VideoMetadata) MetadataType() ItemType { return ItemTypeVideo }

// GenericMetadata is the open bag used for ItemTypeOther. Only the canonical
// "title" key is ever read by the core.
type GenericMetadata map[string]any

// MetadataType implements Metadata.
func (GenericMetadata) MetadataType() ItemType { return ItemTypeOther }

// DecodeMetadata parses a raw JSON payload into the typed variant for the
// given item type. A nil or empty payload decodes to nil metadata without
// error: a saved item is allowed to carry no metadata at all.
func DecodeMetadata(t ItemType, raw json.RawMessage) (Metadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch t {
	case ItemTypeRecipe:
		var m RecipeMetadata
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode recipe metadata: %w", err)
		}
		return m, nil
	case ItemTypeRestaurant:
		var m RestaurantMetadata
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode restaurant metadata: %w", err)
		}
		return m, nil
	case ItemTypePhoto:
		var m PhotoMetadata
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode photo metadata: %w", err)
		}
		return m, nil
	case ItemTypeVideo:
		var m VideoMetadata
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode video metadata: %w", err)
		}
		return m, nil
	default:
		var m GenericMetadata
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		return m, nil
	}
}

// EncodeMetadata serializes a typed metadata value for storage. Nil metadata
// encodes to a nil payload.
func EncodeMetadata(m Metadata) (json.RawMessage, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}

// Title returns the display title of a metadata payload, if it exposes one.
// Recipes and videos use Title, restaurants use Name, photos use Caption, and
// the generic bag uses its "title" key.
func Title(m Metadata) (string, bool) {
	switch v := m.(type) {
	case RecipeMetadata:
		return v.Title, v.Title != ""
	case RestaurantMetadata:
		return v.Name, v.Name != ""
	case VideoMetadata:
		return v.Title, v.Title != ""
	case PhotoMetadata:
		return v.Caption, v.Caption != ""
	case GenericMetadata:
		if s, ok := v["title"].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Coordinates returns the decimal-degree location of a metadata payload.
// Only restaurant metadata can carry coordinates, and both components must be
// present for the location to count.
func Coordinates(m Metadata) (lat, lng float64, ok bool) {
	if v, isRestaurant := m.(RestaurantMetadata); isRestaurant {
		if v.Lat != nil && v.Lng != nil {
			return *v.Lat, *v.Lng, true
		}
	}
	return 0, 0, false
}
