package metadata

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PegasusGame describes the subset of a Pegasus game block we import.
type PegasusGame struct {
	Name        string
	Files       []string
	Summary     string
	Description string
	Assets      map[string]string
	Developer   string
	Publisher   string
	Genres      []string
	Players     string
	Release     string
}

// PegasusDocument represents a metadata file and its games.
type PegasusDocument struct {
	Collection string
	Games      []PegasusGame
}

var (
	boxartAssetKeys = []string{"boxfront", "box_front", "boxart", "poster", "cartridge"}
	bannerAssetKeys = []string{"banner", "marquee", "wheel", "logo"}
)

// ParsePegasusFile reads a Pegasus metadata file from disk.
func ParsePegasusFile(path string) (*PegasusDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata %s: %w", path, err)
	}
	defer f.Close()

	doc := &PegasusDocument{}
	var current *PegasusGame
	var lastKey string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNo := 0

	commitGame := func() error {
		if current != nil {
			if strings.TrimSpace(current.Name) == "" {
				return fmt.Errorf("metadata %s:%d: game entry missing name", path, lineNo)
			}
			doc.Games = append(doc.Games, *current)
			current = nil
		}
		return nil
	}

	appendValue := func(key, value string) error {
		if key == "collection" {
			if doc.Collection == "" {
				doc.Collection = value
			}
			return nil
		}
		if current == nil {
			// collection level keys such as launch or extensions
			return nil
		}
		switch {
		case key == "game":
			current.Name = joinLine(current.Name, value)
		case key == "file" || key == "files":
			current.Files = append(current.Files, value)
		case key == "description":
			current.Description = joinLine(current.Description, value)
		case key == "summary":
			current.Summary = joinLine(current.Summary, value)
		case key == "developer" || key == "developers":
			current.Developer = value
		case key == "publisher" || key == "publishers":
			current.Publisher = value
		case key == "players":
			current.Players = value
		case key == "release":
			current.Release = strings.TrimSpace(value)
		case key == "genre" || key == "genres":
			for _, part := range strings.Split(value, ",") {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					current.Genres = append(current.Genres, trimmed)
				}
			}
		case strings.HasPrefix(key, "assets."):
			if current.Assets == nil {
				current.Assets = make(map[string]string)
			}
			assetKey := strings.ToLower(strings.TrimPrefix(key, "assets."))
			if _, ok := current.Assets[assetKey]; !ok {
				current.Assets[assetKey] = value
			}
		}
		return nil
	}

	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSuffix(scanner.Text(), "\r")
		if lineNo == 1 {
			raw = strings.TrimPrefix(raw, "\ufeff")
		}
		if strings.TrimSpace(raw) == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		firstRune, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsSpace(firstRune) {
			if lastKey == "" {
				return nil, fmt.Errorf("metadata %s:%d: value without preceding entry", path, lineNo)
			}
			if err := appendValue(lastKey, strings.TrimSpace(raw)); err != nil {
				return nil, err
			}
			continue
		}

		colon := strings.IndexRune(raw, ':')
		if colon == -1 {
			return nil, fmt.Errorf("metadata %s:%d: expected key-value entry", path, lineNo)
		}
		key := strings.ToLower(strings.TrimSpace(raw[:colon]))
		if key == "" {
			return nil, fmt.Errorf("metadata %s:%d: invalid entry name", path, lineNo)
		}
		value := strings.TrimSpace(raw[colon+1:])

		switch key {
		case "game":
			if err := commitGame(); err != nil {
				return nil, err
			}
			current = &PegasusGame{}
		case "collection":
			if err := commitGame(); err != nil {
				return nil, err
			}
		}
		lastKey = key
		if value == "" {
			continue
		}
		if err := appendValue(key, value); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan metadata %s: %w", path, err)
	}
	if err := commitGame(); err != nil {
		return nil, err
	}
	return doc, nil
}

func loadPegasus(path string) (*Source, error) {
	doc, err := ParsePegasusFile(path)
	if err != nil {
		return nil, err
	}
	baseDir := filepath.Dir(path)
	src := &Source{Format: FormatPegasus, Platform: doc.Collection}
	for _, g := range doc.Games {
		if len(g.Files) == 0 {
			continue
		}
		src.Games = append(src.Games, Game{
			Title:       g.Name,
			Description: firstNonEmpty(g.Description, g.Summary),
			Developer:   g.Developer,
			Publisher:   g.Publisher,
			Genre:       strings.Join(g.Genres, ", "),
			ReleaseDate: g.Release,
			Players:     g.Players,
			RomPath:     resolvePath(baseDir, g.Files[0]),
			BoxartPath:  resolvePath(baseDir, pickAsset(g.Assets, boxartAssetKeys)),
			BannerPath:  resolvePath(baseDir, pickAsset(g.Assets, bannerAssetKeys)),
		})
	}
	return src, nil
}

func pickAsset(assets map[string]string, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(assets[k]); v != "" {
			return v
		}
	}
	return ""
}

func joinLine(prev, value string) string {
	if prev == "" {
		return value
	}
	return prev + "\n" + value
}
