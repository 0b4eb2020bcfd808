package metadata

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type GamelistDocument struct {
	Provider ProviderInfo    `xml:"provider"`
	Games    []GamelistEntry `xml:"game"`
}

// ProviderInfo describes metadata about the gamelist file creator/source.
type ProviderInfo struct {
	System   string `xml:"System"`
	Software string `xml:"software"`
}

type GamelistEntry struct {
	Path        string   `xml:"path"`
	Name        string   `xml:"name"`
	Description string   `xml:"desc"`
	Image       string   `xml:"image"`
	Thumbnail   string   `xml:"thumbnail"`
	Marquee     string   `xml:"marquee"`
	Developer   string   `xml:"developer"`
	Publisher   string   `xml:"publisher"`
	Genres      []string `xml:"genre"`
	ReleaseDate string   `xml:"releasedate"`
	Players     string   `xml:"players"`
	Hidden      bool     `xml:"hidden"`
}

type providerXML struct {
	SystemUpper string `xml:"System"`
	SystemLower string `xml:"system"`
	Software    string `xml:"software"`
}

func ParseGamelistFile(path string) (*GamelistDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gamelist %s: %w", path, err)
	}
	defer f.Close()

	var doc struct {
		Provider providerXML     `xml:"provider"`
		Games    []GamelistEntry `xml:"game"`
	}
	decoder := xml.NewDecoder(f)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode gamelist %s: %w", path, err)
	}

	for i := range doc.Games {
		entry := &doc.Games[i]
		entry.Path = strings.TrimSpace(entry.Path)
		entry.Name = strings.TrimSpace(entry.Name)
		entry.Description = strings.TrimSpace(entry.Description)
		entry.Image = strings.TrimSpace(entry.Image)
		entry.Thumbnail = strings.TrimSpace(entry.Thumbnail)
		entry.Marquee = strings.TrimSpace(entry.Marquee)
		entry.Developer = strings.TrimSpace(entry.Developer)
		entry.Publisher = strings.TrimSpace(entry.Publisher)
		entry.ReleaseDate = strings.TrimSpace(entry.ReleaseDate)
		entry.Players = strings.TrimSpace(entry.Players)
		for j := range entry.Genres {
			entry.Genres[j] = strings.TrimSpace(entry.Genres[j])
		}
	}

	system := strings.TrimSpace(doc.Provider.SystemUpper)
	if system == "" {
		system = strings.TrimSpace(doc.Provider.SystemLower)
	}
	return &GamelistDocument{
		Provider: ProviderInfo{
			System:   system,
			Software: strings.TrimSpace(doc.Provider.Software),
		},
		Games: doc.Games,
	}, nil
}

func loadGamelist(path string) (*Source, error) {
	doc, err := ParseGamelistFile(path)
	if err != nil {
		return nil, err
	}
	baseDir := filepath.Dir(path)
	src := &Source{Format: FormatGamelist, Platform: doc.Provider.System}
	for _, entry := range doc.Games {
		if entry.Hidden || entry.Path == "" {
			continue
		}
		title := entry.Name
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(entry.Path), filepath.Ext(entry.Path))
		}
		src.Games = append(src.Games, Game{
			Title:       title,
			Description: entry.Description,
			Developer:   entry.Developer,
			Publisher:   entry.Publisher,
			Genre:       strings.Join(nonEmpty(entry.Genres), ", "),
			ReleaseDate: normalizeReleaseDate(entry.ReleaseDate),
			Players:     entry.Players,
			RomPath:     resolvePath(baseDir, entry.Path),
			BoxartPath:  resolvePath(baseDir, firstNonEmpty(entry.Image, entry.Thumbnail)),
			BannerPath:  resolvePath(baseDir, entry.Marquee),
		})
	}
	return src, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
