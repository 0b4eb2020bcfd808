package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xxxsen/eversd/internal/library"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type AddCommand struct {
	libraryFlags
	entryFieldFlags
	overwrite bool
	out       io.Writer
}

func NewAddCommand() *AddCommand { return &AddCommand{out: os.Stdout} }

func (c *AddCommand) Name() string { return "add" }

func (c *AddCommand) Desc() string {
	return "添加游戏：复制 ROM，生成封面/横幅与元数据文件"
}

func (c *AddCommand) Init(f *pflag.FlagSet) {
	c.bind(f)
	c.bindFields(f)
	f.BoolVar(&c.overwrite, "overwrite", false, "同名游戏已存在时覆盖")
}

func (c *AddCommand) PreRun(ctx context.Context) error {
	if err := c.check("add"); err != nil {
		return err
	}
	if strings.TrimSpace(c.rom) == "" {
		return errors.New("add requires --rom")
	}
	if strings.TrimSpace(c.title) == "" && c.scrape == "" {
		return errors.New("add requires --title or --scrape")
	}
	if _, err := parseMappings(c.mappings); err != nil {
		return err
	}
	return nil
}

func (c *AddCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
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

	lock, err := acquireLibraryLock(ctx, c.root())
	if err != nil {
		return err
	}
	defer lock.Release()

	res, err := c.repository(ctx, c.out).Create(ctx, &library.CreateRequest{
		Title:       c.title,
		Platform:    c.platform,
		Core:        c.core,
		LaunchType:  c.launchType,
		Genre:       c.genre,
		ReleaseDate: c.releaseDate,
		Players:     c.players,
		Description: c.description,
		Publisher:   c.publisher,
		Developer:   c.developer,
		Mapping:     mapping,
		RomPath:     assets.path(assets.rom),
		BoxartPath:  assets.path(assets.boxart),
		BannerPath:  assets.path(assets.banner),
		Overwrite:   c.overwrite || Config().Library.Overwrite,
	})
	if err != nil {
		return err
	}
	printWarnings(c.out, res)
	logger.Info("add finished", zap.String("name", res.BaseName), zap.Bool("partial", res.Partial()))
	return nil
}

func (c *AddCommand) PostRun(ctx context.Context) error { return nil }

func printWarnings(w io.Writer, res *library.Result) {
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %v\n", warn)
	}
}

func init() {
	RegisterRunner("add", func() IRunner { return NewAddCommand() })
}
