package app

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/xxxsen/eversd/internal/library"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type EditCommand struct {
	libraryFlags
	entryFieldFlags
	name string
	out  io.Writer
}

func NewEditCommand() *EditCommand { return &EditCommand{out: os.Stdout} }

func (c *EditCommand) Name() string { return "edit" }

func (c *EditCommand) Desc() string {
	return "修改已有游戏的元数据，可替换 ROM、封面与横幅，标识保持不变"
}

func (c *EditCommand) Init(f *pflag.FlagSet) {
	c.bind(f)
	c.bindFields(f)
	f.StringVar(&c.name, "name", "", "游戏标识 (base name)")
}

func (c *EditCommand) PreRun(ctx context.Context) error {
	if err := c.check("edit"); err != nil {
		return err
	}
	if strings.TrimSpace(c.name) == "" {
		return errors.New("edit requires --name")
	}
	if _, err := parseMappings(c.mappings); err != nil {
		return err
	}
	return nil
}

func (c *EditCommand) Run(ctx context.Context) error {
	if err := c.applyScrape(ctx, newFetcher()); err != nil {
		return err
	}
	mapping, err := parseMappings(c.mappings)
	if err != nil {
		return err
	}
	assets, err := c.resolveAssets(ctx, newResolver())
	if err != nil {
		return err
	}
	defer assets.Close()

	req := &library.UpdateRequest{
		BaseName:   c.name,
		Mapping:    mapping,
		RomPath:    assets.path(assets.rom),
		BoxartPath: assets.path(assets.boxart),
		BannerPath: assets.path(assets.banner),
	}
	set := func(flag string, v string) *string {
		if c.isSet(flag) {
			return library.String(v)
		}
		return nil
	}
	req.Title = set("title", c.title)
	req.Platform = set("platform", c.platform)
	req.Core = set("core", c.core)
	req.LaunchType = set("launch-type", c.launchType)
	req.Genre = set("genre", c.genre)
	req.ReleaseDate = set("release-date", c.releaseDate)
	req.Description = set("description", c.description)
	req.Publisher = set("publisher", c.publisher)
	req.Developer = set("developer", c.developer)
	if c.changed("players") {
		req.Players = library.Int(c.players)
	}

	lock, err := acquireLibraryLock(ctx, c.root())
	if err != nil {
		return err
	}
	defer lock.Release()

	res, err := c.repository(ctx, c.out).Update(ctx, req)
	if err != nil {
		return err
	}
	printWarnings(c.out, res)
	logutil.GetLogger(ctx).Info("edit finished", zap.String("name", res.BaseName), zap.Bool("partial", res.Partial()))
	return nil
}

func (c *EditCommand) PostRun(ctx context.Context) error { return nil }

func init() {
	RegisterRunner("edit", func() IRunner { return NewEditCommand() })
}
