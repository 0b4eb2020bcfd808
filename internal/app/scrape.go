package app

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/xxxsen/eversd/internal/scraper"

	"github.com/spf13/pflag"
)

type ScrapeCommand struct {
	id      string
	asJSON  bool
	out     io.Writer
	fetcher scraper.Fetcher
}

func NewScrapeCommand() *ScrapeCommand { return &ScrapeCommand{out: os.Stdout} }

func (c *ScrapeCommand) Name() string { return "scrape" }

func (c *ScrapeCommand) Desc() string {
	return "从 vimm.net 抓取游戏信息 (标题、平台、类型、发行商、开发商、年份)"
}

func (c *ScrapeCommand) Init(f *pflag.FlagSet) {
	f.StringVar(&c.id, "id", "", "vault 链接或编号，例如 4157")
	f.BoolVar(&c.asJSON, "json", false, "以 JSON 格式输出")
}

func (c *ScrapeCommand) PreRun(ctx context.Context) error {
	if strings.TrimSpace(c.id) == "" {
		return errors.New("scrape requires --id")
	}
	if c.fetcher == nil {
		c.fetcher = newFetcher()
	}
	return nil
}

func (c *ScrapeCommand) Run(ctx context.Context) error {
	info, err := c.fetcher.Fetch(ctx, c.id)
	if err != nil {
		return err
	}
	if c.asJSON {
		return writeJSON(c.out, info)
	}
	rows := [][]string{
		{"Title", info.Title},
		{"Platform", info.Platform},
		{"Genre", info.Genre},
		{"Publisher", info.Publisher},
		{"Developer", info.Developer},
		{"Release date", info.ReleaseDate},
	}
	return writeTable(c.out, []string{"Field", "Value"}, rows, nil)
}

func (c *ScrapeCommand) PostRun(ctx context.Context) error { return nil }

func init() {
	RegisterRunner("scrape", func() IRunner { return NewScrapeCommand() })
}
