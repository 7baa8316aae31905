package app

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/persistency"
)

var (
	ErrValidation = errors.New("app: validation failed")
	ErrNotFound   = errors.New("app: not found")
)

// Collections the services persist under. Identifiers within the weather
// collections are decimal station IDs; preferences is a singleton.
const (
	CollectionBookmarkedWeather = "weatherInformation.bookmarked"
	CollectionNearbyWeather     = "weatherInformation.nearby"
	CollectionStationBookmarks  = "weatherStations.bookmarked"
	CollectionPreferences       = "preferences"

	preferencesIdentifier = "default"
)

// WeatherCollections lists the collections holding weather readings, in the
// order maintenance sweeps them.
func WeatherCollections() []string {
	return []string{CollectionBookmarkedWeather, CollectionNearbyWeather}
}

// ListKind selects one of the two weather reading lists.
type ListKind string

const (
	ListBookmarked ListKind = "bookmarked"
	ListNearby     ListKind = "nearby"
)

func ParseListKind(value string) (ListKind, error) {
	switch ListKind(value) {
	case ListBookmarked:
		return ListBookmarked, nil
	case ListNearby:
		return ListNearby, nil
	}
	return "", fmt.Errorf("%w: unknown weather list %q (want %q or %q)", ErrValidation, value, ListBookmarked, ListNearby)
}

func (k ListKind) collection() (string, error) {
	switch k {
	case ListBookmarked:
		return CollectionBookmarkedWeather, nil
	case ListNearby:
		return CollectionNearbyWeather, nil
	}
	return "", fmt.Errorf("%w: unknown weather list %q", ErrValidation, k)
}

func stationIdentity(collection string, stationID int64) (persistency.Identity, error) {
	if stationID <= 0 {
		return persistency.Identity{}, fmt.Errorf("%w: station id must be positive, got %d", ErrValidation, stationID)
	}
	return persistency.NewIdentity(collection, strconv.FormatInt(stationID, 10)), nil
}
