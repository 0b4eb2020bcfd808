// Package library manages game entries stored on an EverSD volume. An entry
// has no index record: it is the set of files in <root>/game that share a
// base name, tied together by the naming rules in layout.go.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xxxsen/eversd/internal/artwork"
	"github.com/xxxsen/eversd/internal/model"
	"github.com/xxxsen/eversd/internal/naming"

	"github.com/dustin/go-humanize"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// InvalidTitleMarker is appended to the title of entries whose metadata
// document cannot be parsed.
const InvalidTitleMarker = " [JSON ERROR]"

// Deriver turns a title into a base name.
type Deriver interface {
	Derive(title string) string
}

// Repository performs the entry lifecycle against one library root. It is
// meant for a single writer; callers serialise mutating calls.
type Repository struct {
	layout     Layout
	reporter   Reporter
	deriver    Deriver
	normalizer artwork.Normalizer
}

type Option func(r *Repository)

func WithReporter(rp Reporter) Option {
	return func(r *Repository) {
		if rp != nil {
			r.reporter = rp
		}
	}
}

func WithDeriver(d Deriver) Option {
	return func(r *Repository) {
		if d != nil {
			r.deriver = d
		}
	}
}

func WithNormalizer(n artwork.Normalizer) Option {
	return func(r *Repository) {
		if n != nil {
			r.normalizer = n
		}
	}
}

// New builds a repository rooted at the EverSD volume root.
func New(root string, opts ...Option) *Repository {
	r := &Repository{
		layout:     Layout{Root: root},
		reporter:   nopReporter{},
		deriver:    naming.Deriver{},
		normalizer: artwork.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Layout exposes the path rules of this repository.
func (r *Repository) Layout() Layout { return r.layout }

func (r *Repository) report(format string, args ...interface{}) {
	r.reporter.Report(fmt.Sprintf(format, args...))
}

// CreateRequest describes a new entry. Empty optional fields take the device
// defaults.
type CreateRequest struct {
	Title       string
	Platform    string
	Core        string
	LaunchType  string
	Genre       string
	ReleaseDate string
	Players     int
	Description string
	Publisher   string
	Developer   string
	Mapping     map[string]string

	RomPath    string
	BoxartPath string
	BannerPath string

	// Overwrite replaces an existing entry with the same base name instead
	// of failing with ErrConflict.
	Overwrite bool
}

// UpdateRequest changes an existing entry. Nil fields keep their stored
// value; empty source paths leave the corresponding files untouched.
type UpdateRequest struct {
	BaseName string

	Title       *string
	Platform    *string
	Core        *string
	LaunchType  *string
	Genre       *string
	ReleaseDate *string
	Players     *int
	Description *string
	Publisher   *string
	Developer   *string
	Mapping     map[string]string

	RomPath    string
	BoxartPath string
	BannerPath string
}

// Result is returned by Create and Update. Warnings carry problems that did
// not stop the entry from being written: artwork failures wrap ErrImage, a
// previous rom that had to be kept wraps ErrConflict and leftover files that
// could not be removed wrap ErrIO.
type Result struct {
	BaseName string
	Warnings []error
}

// Partial reports whether the result carries any warning.
func (r *Result) Partial() bool { return len(r.Warnings) > 0 }

// Scan lists every metadata document in the game directory. Entries whose
// document cannot be read are listed with InvalidTitleMarker and Valid=false.
// Documents whose name is not a valid base name are skipped and reported;
// Orphans lists them. A missing game directory yields an empty list.
func (r *Repository) Scan(ctx context.Context) ([]model.EntrySummary, error) {
	lst, ok, err := r.layout.listGameDir()
	if err != nil {
		r.report("Error: cannot read game directory: %v", err)
		return nil, err
	}
	if !ok {
		r.report("Error: '%s' directory not found.", GameDirName)
		return []model.EntrySummary{}, nil
	}

	for _, name := range lst.foreign {
		r.report("Skipping %s: not a valid entry name", name)
		logutil.GetLogger(ctx).Warn("foreign metadata document skipped", zap.String("file", name))
	}

	bases := make([]string, 0, len(lst.bases))
	for b := range lst.bases {
		bases = append(bases, b)
	}
	sort.Strings(bases)

	out := make([]model.EntrySummary, 0, len(bases))
	for _, base := range bases {
		meta, err := r.readMeta(base)
		if err != nil {
			logutil.GetLogger(ctx).Warn("read metadata failed",
				zap.String("base_name", base), zap.Error(err))
			out = append(out, model.EntrySummary{BaseName: base, Title: base + InvalidTitleMarker})
			continue
		}
		title := meta.Title
		if title == "" {
			title = base
		}
		out = append(out, model.EntrySummary{BaseName: base, Title: title, Valid: true})
	}
	return out, nil
}

// SortByTitle orders summaries the way the library is presented.
func SortByTitle(list []model.EntrySummary) {
	sort.SliceStable(list, func(i, j int) bool {
		ti, tj := strings.ToLower(list[i].Title), strings.ToLower(list[j].Title)
		if ti != tj {
			return ti < tj
		}
		return list[i].BaseName < list[j].BaseName
	})
}

// Details reconstructs an entry. A missing document wraps ErrNotFound, a
// corrupt one ErrParse.
func (r *Repository) Details(ctx context.Context, base string) (*model.EntryDetails, error) {
	if err := validateBase(base); err != nil {
		return nil, err
	}
	meta, err := r.readMeta(base)
	if err != nil {
		return nil, err
	}
	lst, _, err := r.layout.listGameDir()
	if err != nil {
		return nil, err
	}

	details := &model.EntryDetails{
		BaseName:     base,
		MetadataPath: r.layout.MetadataPath(base),
		Meta:         meta,
	}
	if meta.FileName != "" && isPlainName(meta.FileName) && fileExists(r.layout.path(meta.FileName)) {
		details.RomPath = r.layout.path(meta.FileName)
	}

	var boxart []string
	for _, name := range lst.ownedBy(base) {
		if isBoxartCandidate(base, name) {
			boxart = append(boxart, name)
		}
	}
	for _, name := range boxart {
		if name == BoxartName(base) {
			details.BoxartPath = r.layout.path(name)
		}
	}
	if details.BoxartPath == "" && len(boxart) > 0 {
		details.BoxartPath = r.layout.path(boxart[0])
	}
	if fileExists(r.layout.BannerPath(base)) {
		details.BannerPath = r.layout.BannerPath(base)
	}
	return details, nil
}

// Create writes a new entry: rom, artwork, then the metadata document last.
func (r *Repository) Create(ctx context.Context, req *CreateRequest) (*Result, error) {
	logger := logutil.GetLogger(ctx)
	if req == nil {
		return nil, validationErrorf("create request is nil")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, validationErrorf("title is required")
	}
	base := r.deriver.Derive(req.Title)
	if !naming.IsValid(base) {
		return nil, validationErrorf("title %q does not produce a usable base name", req.Title)
	}
	romExt, err := checkRomSource(req.RomPath)
	if err != nil {
		return nil, err
	}
	mapping := model.DefaultMapping()
	if err := applyMapping(mapping, req.Mapping); err != nil {
		return nil, err
	}

	gameDir := r.layout.GameDir()
	if _, err := os.Stat(gameDir); os.IsNotExist(err) {
		if err := os.MkdirAll(gameDir, 0o755); err != nil {
			return nil, wrapIO("create dir", gameDir, err)
		}
		r.report("Created directory: %s", gameDir)
	}

	lst, _, err := r.layout.listGameDir()
	if err != nil {
		return nil, err
	}
	existing := lst.ownedBy(base)
	if len(existing) > 0 {
		if !req.Overwrite {
			r.report("Error: an entry named '%s' already exists.", base)
			return nil, fmt.Errorf("%w: entry %s already exists (%s)", ErrConflict, base, strings.Join(existing, ", "))
		}
		r.report("Overwriting existing entry '%s'.", base)
	}

	meta := model.NewGameMeta()
	meta.FileName = RomName(base, romExt)
	meta.Title = req.Title
	meta.Core = req.Core
	meta.LaunchType = req.LaunchType
	if req.Platform != "" {
		meta.Platform = req.Platform
	}
	meta.Genre = req.Genre
	meta.ReleaseDate = req.ReleaseDate
	if req.Players > 0 {
		meta.Players = req.Players
	}
	meta.Description = req.Description
	meta.Publisher = req.Publisher
	meta.Developer = req.Developer
	meta.Mapping = mapping

	if err := r.copyRom(req.RomPath, meta.FileName); err != nil {
		return nil, err
	}

	res := &Result{BaseName: base}
	written := map[string]struct{}{MetadataName(base): {}, meta.FileName: {}}
	if req.BoxartPath != "" {
		if err := r.writeBoxart(base, req.BoxartPath); err != nil {
			res.Warnings = append(res.Warnings, err)
		} else {
			written[BoxartName(base)] = struct{}{}
			written[BoxartAltName(base)] = struct{}{}
			r.report("Created boxart at %s and %s", r.layout.BoxartPath(base), r.layout.BoxartAltPath(base))
		}
	}
	if req.BannerPath != "" {
		if err := r.writeBanner(base, req.BannerPath); err != nil {
			res.Warnings = append(res.Warnings, err)
		} else {
			written[BannerName(base)] = struct{}{}
			r.report("Created banner at %s", r.layout.BannerPath(base))
		}
	}

	if err := r.writeMeta(base, meta); err != nil {
		return nil, err
	}
	r.report("Generated metadata at %s", r.layout.MetadataPath(base))

	if err := r.removeReplaced(base, existing, written); err != nil {
		res.Warnings = append(res.Warnings, err)
	}

	if res.Partial() {
		r.report("Created game entry '%s' with %d problem(s).", base, len(res.Warnings))
	} else {
		r.report("Successfully created game entry!")
	}
	logger.Info("entry created",
		zap.String("base_name", base),
		zap.String("rom", meta.FileName),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// Update merges new field values into an existing entry and replaces the rom
// or artwork when new sources are given. The base name never changes.
func (r *Repository) Update(ctx context.Context, req *UpdateRequest) (*Result, error) {
	logger := logutil.GetLogger(ctx)
	if req == nil {
		return nil, validationErrorf("update request is nil")
	}
	base := req.BaseName
	if err := validateBase(base); err != nil {
		return nil, err
	}
	meta, err := r.readMeta(base)
	if err != nil {
		r.report("Error: %v", err)
		return nil, err
	}

	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, validationErrorf("title must not be empty")
	}
	var romExt string
	if req.RomPath != "" {
		if romExt, err = checkRomSource(req.RomPath); err != nil {
			return nil, err
		}
	}
	mapping := meta.Mapping.Clone()
	if err := applyMapping(mapping, req.Mapping); err != nil {
		return nil, err
	}

	setString(&meta.Title, req.Title)
	setString(&meta.Platform, req.Platform)
	setString(&meta.Core, req.Core)
	setString(&meta.LaunchType, req.LaunchType)
	setString(&meta.Genre, req.Genre)
	setString(&meta.ReleaseDate, req.ReleaseDate)
	setString(&meta.Description, req.Description)
	setString(&meta.Publisher, req.Publisher)
	setString(&meta.Developer, req.Developer)
	if req.Players != nil && *req.Players > 0 {
		meta.Players = *req.Players
	}
	meta.Mapping = mapping

	res := &Result{BaseName: base}
	if req.RomPath != "" {
		romName := RomName(base, romExt)
		warn, err := r.removeStaleRom(base, romName)
		if err != nil {
			return nil, err
		}
		if warn != nil {
			res.Warnings = append(res.Warnings, warn)
		}
		if err := r.copyRom(req.RomPath, romName); err != nil {
			return nil, err
		}
		meta.FileName = romName
		r.report("Replaced ROM with %s", romName)
	}

	if req.BoxartPath != "" {
		if err := r.writeBoxart(base, req.BoxartPath); err != nil {
			res.Warnings = append(res.Warnings, err)
		} else {
			r.report("Updated boxart.")
		}
	}
	if req.BannerPath != "" {
		if err := r.writeBanner(base, req.BannerPath); err != nil {
			res.Warnings = append(res.Warnings, err)
		} else {
			r.report("Updated banner.")
		}
	}

	if err := r.writeMeta(base, meta); err != nil {
		return nil, err
	}
	r.report("Updated metadata file.")
	if res.Partial() {
		r.report("Updated game entry '%s' with %d problem(s).", base, len(res.Warnings))
	} else {
		r.report("Successfully updated game entry!")
	}
	logger.Info("entry updated",
		zap.String("base_name", base),
		zap.String("rom", meta.FileName),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// Delete removes every file owned by base. It returns false without error
// when there was nothing to delete.
func (r *Repository) Delete(ctx context.Context, base string) (bool, error) {
	if err := validateBase(base); err != nil {
		return false, err
	}
	lst, _, err := r.layout.listGameDir()
	if err != nil {
		return false, err
	}
	files := lst.ownedBy(base)
	if len(files) == 0 {
		r.report("Error: No files found for game '%s'.", base)
		return false, nil
	}
	for _, name := range files {
		p := r.layout.path(name)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			r.report("Error deleting game files: %v", err)
			return false, wrapIO("remove", p, err)
		}
		r.report("Deleted %s", name)
	}
	r.report("Successfully deleted all files for '%s'.", base)
	logutil.GetLogger(ctx).Info("entry deleted",
		zap.String("base_name", base),
		zap.Int("files", len(files)),
	)
	return true, nil
}

// Files returns the absolute paths of every file owned by base.
func (r *Repository) Files(ctx context.Context, base string) ([]string, error) {
	if err := validateBase(base); err != nil {
		return nil, err
	}
	lst, _, err := r.layout.listGameDir()
	if err != nil {
		return nil, err
	}
	names := lst.ownedBy(base)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, r.layout.path(name))
	}
	return out, nil
}

// State classifies base as absent, valid or degenerate.
func (r *Repository) State(ctx context.Context, base string) (model.EntryState, error) {
	if err := validateBase(base); err != nil {
		return "", err
	}
	meta, err := r.readMeta(base)
	switch {
	case err == nil:
		if meta.FileName != "" && isPlainName(meta.FileName) && fileExists(r.layout.path(meta.FileName)) {
			return model.StateValid, nil
		}
		return model.StateDegenerate, nil
	case errors.Is(err, ErrNotFound):
		files, ferr := r.Files(ctx, base)
		if ferr != nil {
			return "", ferr
		}
		if len(files) == 0 {
			return model.StateAbsent, nil
		}
		return model.StateDegenerate, nil
	case errors.Is(err, ErrParse):
		return model.StateDegenerate, nil
	default:
		return "", err
	}
}

// Orphans lists files that no metadata document owns.
func (r *Repository) Orphans(ctx context.Context) ([]model.OrphanGroup, error) {
	lst, _, err := r.layout.listGameDir()
	if err != nil {
		return nil, err
	}
	groups := lst.orphans()
	out := make([]model.OrphanGroup, 0, len(groups))
	for key, files := range groups {
		out = append(out, model.OrphanGroup{BaseName: key, Files: files})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseName < out[j].BaseName })
	return out, nil
}

// Cores lists the emulator core files (*.so) at the library root.
func (r *Repository) Cores(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.layout.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, wrapIO("read dir", r.layout.Root, err)
	}
	out := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), coreExt) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (r *Repository) readMeta(base string) (*model.GameMeta, error) {
	p := r.layout.MetadataPath(base)
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: metadata file not found: %s", ErrNotFound, filepath.Base(p))
		}
		return nil, wrapIO("read", p, err)
	}
	meta, err := model.DecodeGameMeta(data)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading metadata %s: %w", ErrParse, filepath.Base(p), err)
	}
	return meta, nil
}

func (r *Repository) writeMeta(base string, meta *model.GameMeta) error {
	data, err := meta.Encode()
	if err != nil {
		return fmt.Errorf("%w: encode metadata %s: %w", ErrIO, base, err)
	}
	p := r.layout.MetadataPath(base)
	if err := writeFile(p, data); err != nil {
		r.report("Error writing metadata: %v", err)
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func (r *Repository) copyRom(src, romName string) error {
	dst := r.layout.path(romName)
	if sameFile(src, dst) {
		r.report("ROM %s already in place", romName)
		return nil
	}
	n, err := copyFile(src, dst)
	if err != nil {
		r.report("Error copying ROM: %v", err)
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	r.report("Copied ROM to %s (%s)", dst, humanize.Bytes(uint64(n)))
	return nil
}

// removeStaleRom deletes the rom recorded in the current document when it is
// about to be replaced by a file with a different name. A recorded name that
// does not belong to base is left on disk and returned as a warning.
func (r *Repository) removeStaleRom(base, newRomName string) (error, error) {
	meta, err := r.readMeta(base)
	if err != nil {
		return nil, nil
	}
	old := meta.FileName
	if old == "" || old == newRomName {
		return nil, nil
	}
	if !isPlainName(old) || !matchesBase(base, old) || old == MetadataName(base) {
		r.report("Skipping removal of unexpected rom name %q", old)
		return fmt.Errorf("%w: previous rom %q kept, it is not named after entry %s", ErrConflict, old, base), nil
	}
	p := r.layout.path(old)
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		r.report("Error removing old ROM: %v", err)
		return nil, wrapIO("remove", p, err)
	}
	r.report("Removed old ROM %s", old)
	return nil, nil
}

// removeReplaced deletes the files of an overwritten entry that were not
// written again, such as an old rom with another extension or art that was
// not supplied this time.
func (r *Repository) removeReplaced(base string, existing []string, keep map[string]struct{}) error {
	var failed []string
	for _, name := range existing {
		if _, ok := keep[name]; ok {
			continue
		}
		if err := os.Remove(r.layout.path(name)); err != nil && !os.IsNotExist(err) {
			r.report("Error removing %s: %v", name, err)
			failed = append(failed, name)
			continue
		}
		r.report("Removed stale file %s", name)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: stale files of %s left in place: %s", ErrIO, base, strings.Join(failed, ", "))
	}
	return nil
}

func (r *Repository) writeBoxart(base, src string) error {
	dst := r.layout.BoxartPath(base)
	if err := r.normalizer.NormalizeFile(src, dst, artwork.BoxartSize); err != nil {
		r.report("Error processing boxart: %v", err)
		return fmt.Errorf("%w: boxart: %w", ErrImage, err)
	}
	alt := r.layout.BoxartAltPath(base)
	if _, err := copyFile(dst, alt); err != nil {
		r.report("Error duplicating boxart: %v", err)
		return fmt.Errorf("%w: boxart copy: %w", ErrImage, err)
	}
	return nil
}

func (r *Repository) writeBanner(base, src string) error {
	dst := r.layout.BannerPath(base)
	if err := r.normalizer.NormalizeFile(src, dst, artwork.BannerSize); err != nil {
		r.report("Error processing banner: %v", err)
		return fmt.Errorf("%w: banner: %w", ErrImage, err)
	}
	return nil
}

func checkRomSource(src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", validationErrorf("rom path is required")
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("%w: rom source %s: %w", ErrValidation, src, err)
	}
	if info.IsDir() {
		return "", validationErrorf("rom source %s is a directory", src)
	}
	ext := filepath.Ext(src)
	if ext == "" || ext == "." {
		return "", validationErrorf("rom source %s has no extension", src)
	}
	if strings.EqualFold(ext, metadataExt) {
		return "", validationErrorf("rom source %s uses the metadata extension", src)
	}
	return ext, nil
}

func applyMapping(dst model.Mapping, overrides map[string]string) error {
	for slot, value := range overrides {
		if err := dst.Set(slot, value); err != nil {
			return validationErrorf("%v", err)
		}
	}
	return nil
}

func validateBase(base string) error {
	if !naming.IsValid(base) {
		return validationErrorf("invalid base name %q", base)
	}
	return nil
}

func isPlainName(name string) bool {
	return name != "" && filepath.Base(name) == name && name != "." && name != ".."
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// String returns a pointer to s, for filling UpdateRequest fields.
func String(s string) *string { return &s }

// Int returns a pointer to n, for filling UpdateRequest fields.
func Int(n int) *int { return &n }
