package app

import (
	"context"
	"io"
	"os"
	"strconv"

	"github.com/xxxsen/eversd/internal/library"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type ListCommand struct {
	libraryFlags
	asJSON bool
	out    io.Writer
}

func NewListCommand() *ListCommand { return &ListCommand{out: os.Stdout} }

func (c *ListCommand) Name() string { return "list" }

func (c *ListCommand) Desc() string {
	return "列出 EverSD 游戏库中的全部游戏，按标题排序"
}

func (c *ListCommand) Init(f *pflag.FlagSet) {
	c.bind(f)
	f.BoolVar(&c.asJSON, "json", false, "以 JSON 格式输出")
}

func (c *ListCommand) PreRun(ctx context.Context) error {
	return c.check("list")
}

func (c *ListCommand) Run(ctx context.Context) error {
	repo := c.repository(ctx, io.Discard)
	list, err := repo.Scan(ctx)
	if err != nil {
		return err
	}
	library.SortByTitle(list)
	logutil.GetLogger(ctx).Debug("library scanned", zap.String("root", c.root()), zap.Int("count", len(list)))

	if c.asJSON {
		return writeJSON(c.out, list)
	}
	rows := make([][]string, 0, len(list))
	for i, item := range list {
		state := "ok"
		if !item.Valid {
			state = "invalid"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), item.Title, item.BaseName, state})
	}
	return writeTable(c.out, []string{"#", "Title", "Name", "State"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
}

func (c *ListCommand) PostRun(ctx context.Context) error { return nil }

func init() {
	RegisterRunner("list", func() IRunner { return NewListCommand() })
}
