package library

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xxxsen/eversd/internal/naming"
)

// All file naming rules of an entry live here. Nothing else in the package
// builds entry file names by hand.
const (
	GameDirName = "game"

	metadataExt  = ".json"
	coreExt      = ".so"
	boxartSuffix = "0_1080.png"
	boxartAlt    = "0.png"
	bannerSuffix = "_gamebanner.png"
	tmpSuffix    = ".tmp"
)

// entry file name separators following the base name: "<base>.", "<base>0", "<base>_".
var ownerSeparators = []byte{'.', '0', '_'}

// conventionSuffixes are exact names an entry claims regardless of longer
// base names sharing its prefix.
var conventionSuffixes = []string{metadataExt, boxartSuffix, boxartAlt, bannerSuffix}

// Layout resolves paths inside a library root.
type Layout struct {
	Root string
}

func (l Layout) GameDir() string { return filepath.Join(l.Root, GameDirName) }

func (l Layout) path(name string) string { return filepath.Join(l.GameDir(), name) }

func MetadataName(base string) string { return base + metadataExt }

func RomName(base, ext string) string { return base + ext }

func BoxartName(base string) string { return base + boxartSuffix }

func BoxartAltName(base string) string { return base + boxartAlt }

func BannerName(base string) string { return base + bannerSuffix }

func (l Layout) MetadataPath(base string) string { return l.path(MetadataName(base)) }

func (l Layout) BoxartPath(base string) string { return l.path(BoxartName(base)) }

func (l Layout) BoxartAltPath(base string) string { return l.path(BoxartAltName(base)) }

func (l Layout) BannerPath(base string) string { return l.path(BannerName(base)) }

// OwnerPatterns returns the glob patterns covering every file of base.
func OwnerPatterns(base string) []string {
	out := make([]string, 0, len(ownerSeparators))
	for _, sep := range ownerSeparators {
		out = append(out, base+string(sep)+"*")
	}
	return out
}

// matchesBase reports whether name falls under one of base's patterns.
func matchesBase(base, name string) bool {
	if len(name) <= len(base) || !strings.HasPrefix(name, base) {
		return false
	}
	next := name[len(base)]
	for _, sep := range ownerSeparators {
		if next == sep {
			return true
		}
	}
	return false
}

// isBoxartCandidate reports whether name looks like box art of base: <base>0*.png.
func isBoxartCandidate(base, name string) bool {
	return strings.HasPrefix(name, base+"0") && strings.HasSuffix(name, ".png")
}

// metadataBase returns the base name of a metadata document file name.
// Documents whose name is not a well formed base name (written by other
// tools, e.g. "Zelda-DX.json") are not entries.
func metadataBase(name string) (string, bool) {
	if !strings.HasSuffix(name, metadataExt) {
		return "", false
	}
	base := strings.TrimSuffix(name, metadataExt)
	return base, naming.IsValid(base)
}

// isForeignMetadata reports a .json file that is not an entry document.
func isForeignMetadata(name string) bool {
	_, ok := metadataBase(name)
	return !ok && strings.HasSuffix(name, metadataExt)
}

// MetadataBases returns the base names of the entry documents among names.
func MetadataBases(names []string) []string {
	out := make([]string, 0)
	for _, name := range names {
		if base, ok := metadataBase(name); ok {
			out = append(out, base)
		}
	}
	sort.Strings(out)
	return out
}

// owner picks which of bases a file belongs to. Exact convention names win,
// otherwise the longest base whose patterns match. "mario0.json" and
// "mario00.png" therefore belong to "mario0" even though "mario" patterns
// match them too.
func owner(name string, bases map[string]struct{}) (string, bool) {
	for _, suffix := range conventionSuffixes {
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		if b := strings.TrimSuffix(name, suffix); b != "" {
			if _, ok := bases[b]; ok {
				return b, true
			}
		}
	}
	best := ""
	for b := range bases {
		if len(b) > len(best) && matchesBase(b, name) {
			best = b
		}
	}
	return best, best != ""
}

// orphanKey guesses the base name a stray file was written for.
func orphanKey(name string) string {
	name = strings.TrimSuffix(name, tmpSuffix)
	for _, suffix := range []string{boxartSuffix, boxartAlt, bannerSuffix} {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	if idx := strings.IndexByte(name, '.'); idx > 0 {
		return name[:idx]
	}
	return name
}

// dirListing is a snapshot of the regular files in the game directory.
type dirListing struct {
	files   []string
	bases   map[string]struct{}
	foreign []string
}

// listGameDir reads the game directory. A missing directory yields an empty
// listing and ok=false.
func (l Layout) listGameDir() (*dirListing, bool, error) {
	entries, err := os.ReadDir(l.GameDir())
	if err != nil {
		if os.IsNotExist(err) {
			return &dirListing{bases: map[string]struct{}{}}, false, nil
		}
		return nil, false, wrapIO("read dir", l.GameDir(), err)
	}
	lst := &dirListing{bases: make(map[string]struct{})}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lst.files = append(lst.files, name)
		if base, ok := metadataBase(name); ok {
			lst.bases[base] = struct{}{}
		} else if isForeignMetadata(name) {
			lst.foreign = append(lst.foreign, name)
		}
	}
	sort.Strings(lst.files)
	return lst, true, nil
}

// ownedBy returns the files owned by base. base takes part in ownership even
// when it has no metadata document, so degenerate entries can be cleaned up.
func (d *dirListing) ownedBy(base string) []string {
	bases := d.bases
	if _, ok := bases[base]; !ok {
		bases = make(map[string]struct{}, len(d.bases)+1)
		for b := range d.bases {
			bases[b] = struct{}{}
		}
		bases[base] = struct{}{}
	}
	var out []string
	for _, name := range d.files {
		if o, ok := owner(name, bases); ok && o == base {
			out = append(out, name)
		}
	}
	return out
}

// orphans returns files no metadata document owns, grouped by orphanKey.
func (d *dirListing) orphans() map[string][]string {
	out := make(map[string][]string)
	for _, name := range d.files {
		if _, ok := owner(name, d.bases); ok {
			continue
		}
		key := orphanKey(name)
		out[key] = append(out[key], name)
	}
	return out
}

// FilterOwned returns the names among candidates that would belong to base
// if they sat in the game directory next to the library's current files.
func (l Layout) FilterOwned(base string, candidates []string) ([]string, error) {
	return l.FilterOwnedAmong(base, candidates, nil)
}

// FilterOwnedAmong is FilterOwned with extra competing base names, such as
// the entries of a remote copy that no longer exist locally.
func (l Layout) FilterOwnedAmong(base string, candidates, extraBases []string) ([]string, error) {
	lst, _, err := l.listGameDir()
	if err != nil {
		return nil, err
	}
	bases := make(map[string]struct{}, len(lst.bases)+len(extraBases)+1)
	for b := range lst.bases {
		bases[b] = struct{}{}
	}
	for _, b := range extraBases {
		bases[b] = struct{}{}
	}
	bases[base] = struct{}{}
	var out []string
	for _, name := range candidates {
		if o, ok := owner(name, bases); ok && o == base {
			out = append(out, name)
		}
	}
	return out, nil
}
