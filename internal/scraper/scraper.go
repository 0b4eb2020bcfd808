// Package scraper fetches descriptive game fields from online catalogues.
// Results only pre-fill entry fields; the library never calls a fetcher.
package scraper

import (
	"context"
	"errors"

	"github.com/xxxsen/eversd/internal/model"
)

var (
	ErrBadIdentifier = errors.New("bad identifier")
	ErrNoData        = errors.New("page has no game data")
)

// Fetcher resolves an identifier (a catalogue url or id) to game fields.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, identifier string) (*model.ScrapedInfo, error)
}

// Merge copies non-empty scraped fields into the fields selected by dst that
// are still empty.
func Merge(info *model.ScrapedInfo, dst map[string]*string) {
	if info == nil {
		return
	}
	src := map[string]string{
		"title":        info.Title,
		"platform":     info.Platform,
		"genre":        info.Genre,
		"publisher":    info.Publisher,
		"developer":    info.Developer,
		"release_date": info.ReleaseDate,
		"description":  info.Description,
	}
	for key, ptr := range dst {
		if ptr == nil || *ptr != "" {
			continue
		}
		if v := src[key]; v != "" {
			*ptr = v
		}
	}
}
