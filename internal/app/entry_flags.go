package app

import (
	"context"
	"fmt"

	"github.com/xxxsen/eversd/internal/assetsource"
	"github.com/xxxsen/eversd/internal/scraper"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// entryFieldFlags holds the metadata and asset flags shared by add and edit.
type entryFieldFlags struct {
	flags *pflag.FlagSet

	title       string
	platform    string
	core        string
	launchType  string
	genre       string
	releaseDate string
	players     int
	description string
	publisher   string
	developer   string
	mappings    []string

	rom    string
	boxart string
	banner string
	scrape string

	scraped map[string]bool
}

func (e *entryFieldFlags) bindFields(f *pflag.FlagSet) {
	e.flags = f
	f.StringVar(&e.title, "title", "", "游戏标题")
	f.StringVar(&e.platform, "platform", "", "平台名称")
	f.StringVar(&e.core, "core", "", "模拟器核心文件名，例如 snes9x_libretro.so")
	f.StringVar(&e.launchType, "launch-type", "", "启动类型")
	f.StringVar(&e.genre, "genre", "", "游戏类型")
	f.StringVar(&e.releaseDate, "release-date", "", "发行日期")
	f.IntVar(&e.players, "players", 0, "玩家人数")
	f.StringVar(&e.description, "description", "", "游戏简介")
	f.StringVar(&e.publisher, "publisher", "", "发行商")
	f.StringVar(&e.developer, "developer", "", "开发商")
	f.StringSliceVar(&e.mappings, "map", nil, "按键映射 slot=value，例如 a=b，可重复指定")
	f.StringVar(&e.rom, "rom", "", "ROM 文件路径或 URL")
	f.StringVar(&e.boxart, "boxart", "", "封面图片路径或 URL")
	f.StringVar(&e.banner, "banner", "", "横幅图片路径或 URL")
	f.StringVar(&e.scrape, "scrape", "", "从 vimm.net 抓取元数据 (vault 链接或编号)，只填充未指定的字段")
}

var scrapeFlagNames = map[string]string{
	"title":        "title",
	"platform":     "platform",
	"genre":        "genre",
	"publisher":    "publisher",
	"developer":    "developer",
	"release_date": "release-date",
	"description":  "description",
}

func (e *entryFieldFlags) changed(name string) bool {
	return e.flags != nil && e.flags.Changed(name)
}

// isSet reports whether a field was given on the command line or filled by
// the scraper.
func (e *entryFieldFlags) isSet(name string) bool {
	return e.changed(name) || e.scraped[name]
}

// applyScrape fills fields the user did not set from the configured fetcher.
func (e *entryFieldFlags) applyScrape(ctx context.Context, fetcher scraper.Fetcher) error {
	if e.scrape == "" {
		return nil
	}
	info, err := fetcher.Fetch(ctx, e.scrape)
	if err != nil {
		return fmt.Errorf("scrape %s: %w", e.scrape, err)
	}
	fields := map[string]*string{}
	add := func(key string, dst *string) {
		if !e.changed(scrapeFlagNames[key]) {
			fields[key] = dst
		}
	}
	add("title", &e.title)
	add("platform", &e.platform)
	add("genre", &e.genre)
	add("publisher", &e.publisher)
	add("developer", &e.developer)
	add("release_date", &e.releaseDate)
	add("description", &e.description)
	before := make(map[string]string, len(fields))
	for key, ptr := range fields {
		before[key] = *ptr
	}
	scraper.Merge(info, fields)
	if e.scraped == nil {
		e.scraped = make(map[string]bool)
	}
	for key, ptr := range fields {
		if *ptr != before[key] {
			e.scraped[scrapeFlagNames[key]] = true
		}
	}
	logutil.GetLogger(ctx).Info("metadata scraped",
		zap.String("source", fetcher.Name()),
		zap.String("id", e.scrape),
		zap.String("title", info.Title),
	)
	return nil
}

// resolvedAssets are the local files behind --rom, --boxart and --banner.
type resolvedAssets struct {
	rom, boxart, banner *assetsource.Source
}

func (r *resolvedAssets) path(s *assetsource.Source) string {
	if s == nil {
		return ""
	}
	return s.Path
}

func (r *resolvedAssets) Close() {
	for _, s := range []*assetsource.Source{r.rom, r.boxart, r.banner} {
		_ = s.Close()
	}
}

func (e *entryFieldFlags) resolveAssets(ctx context.Context, resolver *assetsource.Resolver) (*resolvedAssets, error) {
	out := &resolvedAssets{}
	var err error
	if out.rom, err = resolver.Resolve(ctx, e.rom); err != nil {
		return nil, err
	}
	if out.boxart, err = resolver.Resolve(ctx, e.boxart); err != nil {
		out.Close()
		return nil, err
	}
	if out.banner, err = resolver.Resolve(ctx, e.banner); err != nil {
		out.Close()
		return nil, err
	}
	return out, nil
}
