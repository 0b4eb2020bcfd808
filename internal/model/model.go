package model

// EntryState is the observable state of a library entry.
type EntryState string

const (
	StateAbsent     EntryState = "absent"
	StateValid      EntryState = "valid"
	StateDegenerate EntryState = "degenerate"
)

// EntrySummary is one row of a library scan.
type EntrySummary struct {
	BaseName string `json:"base_name"`
	Title    string `json:"title"`
	Valid    bool   `json:"valid"`
}

// EntryDetails is the reconstructed view of a single entry.
type EntryDetails struct {
	BaseName     string    `json:"base_name"`
	MetadataPath string    `json:"metadata_path"`
	RomPath      string    `json:"rom_path,omitempty"`
	BoxartPath   string    `json:"boxart_path,omitempty"`
	BannerPath   string    `json:"banner_path,omitempty"`
	Meta         *GameMeta `json:"-"`
}

// ScrapedInfo carries the descriptive fields a metadata fetcher can supply.
type ScrapedInfo struct {
	Title       string `json:"title"`
	Platform    string `json:"platform"`
	Genre       string `json:"genre"`
	Publisher   string `json:"publisher"`
	Developer   string `json:"developer"`
	ReleaseDate string `json:"release_date"`
	Description string `json:"description"`
}

// OrphanGroup lists files in the game directory that no metadata document
// claims, grouped under the base name they most likely belonged to.
type OrphanGroup struct {
	BaseName string   `json:"base_name"`
	Files    []string `json:"files"`
}
