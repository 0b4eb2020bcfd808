// Package metadata reads frontend metadata files (EmulationStation
// gamelist.xml and Pegasus metadata.pegasus.txt) so their games can be
// imported as library entries.
package metadata

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Game is one importable game. Paths are absolute.
type Game struct {
	Title       string
	Description string
	Developer   string
	Publisher   string
	Genre       string
	ReleaseDate string
	Players     string
	RomPath     string
	BoxartPath  string
	BannerPath  string
}

// Source is a parsed metadata file.
type Source struct {
	Format   string
	Platform string
	Games    []Game
}

const (
	FormatGamelist = "gamelist"
	FormatPegasus  = "pegasus"
)

// Load parses path, picking the reader from the file name.
func Load(path string) (*Source, error) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".xml"):
		return loadGamelist(path)
	case strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".metadata"):
		return loadPegasus(path)
	default:
		return nil, fmt.Errorf("unsupported metadata file %s", path)
	}
}

// resolvePath turns a path relative to the metadata file into an absolute
// one. "./" prefixes and "~" style home references of gamelists are handled.
func resolvePath(baseDir, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(baseDir, filepath.FromSlash(p)))
}

var compactDateRe = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(T\d{6})?$`)

// normalizeReleaseDate rewrites the compact gamelist form 19960623T000000 as
// 1996-06-23 and leaves other forms as they are.
func normalizeReleaseDate(s string) string {
	s = strings.TrimSpace(s)
	if m := compactDateRe.FindStringSubmatch(s); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
