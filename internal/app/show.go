package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xxxsen/eversd/internal/model"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

type ShowCommand struct {
	libraryFlags
	name   string
	asJSON bool
	out    io.Writer
}

// entryView is the printable form of an entry.
type entryView struct {
	*model.EntryDetails
	Title       string            `json:"title"`
	Platform    string            `json:"platform"`
	Core        string            `json:"core"`
	LaunchType  string            `json:"launch_type"`
	Genre       string            `json:"genre"`
	ReleaseDate string            `json:"release_date"`
	Players     int               `json:"players"`
	Publisher   string            `json:"publisher"`
	Developer   string            `json:"developer"`
	Description string            `json:"description"`
	Mapping     map[string]string `json:"mapping"`
	RomFile     string            `json:"rom_file"`
	RomSize     int64             `json:"rom_size,omitempty"`
}

func newEntryView(d *model.EntryDetails) *entryView {
	m := d.Meta
	v := &entryView{
		EntryDetails: d,
		Title:        m.Title,
		Platform:     m.Platform,
		Core:         m.Core,
		LaunchType:   m.LaunchType,
		Genre:        m.Genre,
		ReleaseDate:  m.ReleaseDate,
		Players:      m.Players,
		Publisher:    m.Publisher,
		Developer:    m.Developer,
		Description:  m.Description,
		Mapping:      m.Mapping,
		RomFile:      m.FileName,
	}
	if d.RomPath != "" {
		if info, err := os.Stat(d.RomPath); err == nil {
			v.RomSize = info.Size()
		}
	}
	return v
}

func NewShowCommand() *ShowCommand { return &ShowCommand{out: os.Stdout} }

func (c *ShowCommand) Name() string { return "show" }

func (c *ShowCommand) Desc() string {
	return "显示单个游戏的元数据与文件路径"
}

func (c *ShowCommand) Init(f *pflag.FlagSet) {
	c.bind(f)
	f.StringVar(&c.name, "name", "", "游戏标识 (base name)")
	f.BoolVar(&c.asJSON, "json", false, "以 JSON 格式输出")
}

func (c *ShowCommand) PreRun(ctx context.Context) error {
	if err := c.check("show"); err != nil {
		return err
	}
	if strings.TrimSpace(c.name) == "" {
		return errors.New("show requires --name")
	}
	return nil
}

func (c *ShowCommand) Run(ctx context.Context) error {
	repo := c.repository(ctx, io.Discard)
	details, err := repo.Details(ctx, c.name)
	if err != nil {
		return err
	}
	view := newEntryView(details)
	if c.asJSON {
		return writeJSON(c.out, view)
	}
	rom := view.RomFile + " (missing)"
	if details.RomPath != "" {
		rom = fmt.Sprintf("%s (%s)", details.RomPath, humanize.Bytes(uint64(view.RomSize)))
	}
	rows := [][]string{
		{"Name", details.BaseName},
		{"Title", view.Title},
		{"Platform", view.Platform},
		{"Core", view.Core},
		{"Launch type", view.LaunchType},
		{"Genre", view.Genre},
		{"Release date", view.ReleaseDate},
		{"Players", strconv.Itoa(view.Players)},
		{"Publisher", view.Publisher},
		{"Developer", view.Developer},
		{"Metadata", details.MetadataPath},
		{"ROM", rom},
		{"Boxart", orDash(details.BoxartPath)},
		{"Banner", orDash(details.BannerPath)},
	}
	for _, slot := range model.MappingSlots {
		if v := view.Mapping[slot]; v != "" && v != model.NullValue {
			rows = append(rows, []string{"Map " + slot, v})
		}
	}
	if err := writeTable(c.out, []string{"Field", "Value"}, rows, nil); err != nil {
		return err
	}
	if view.Description != "" {
		_, err = fmt.Fprintf(c.out, "\n%s\n", view.Description)
	}
	return err
}

func (c *ShowCommand) PostRun(ctx context.Context) error { return nil }

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	RegisterRunner("show", func() IRunner { return NewShowCommand() })
}
