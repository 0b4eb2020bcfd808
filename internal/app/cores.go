package app

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

type CoresCommand struct {
	libraryFlags
	out io.Writer
}

func NewCoresCommand() *CoresCommand { return &CoresCommand{out: os.Stdout} }

func (c *CoresCommand) Name() string { return "cores" }

func (c *CoresCommand) Desc() string {
	return "列出 EverSD 根目录下的模拟器核心 (*.so)"
}

func (c *CoresCommand) Init(f *pflag.FlagSet) {
	c.bind(f)
}

func (c *CoresCommand) PreRun(ctx context.Context) error {
	return c.check("cores")
}

func (c *CoresCommand) Run(ctx context.Context) error {
	cores, err := c.repository(ctx, io.Discard).Cores(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(cores))
	for _, name := range cores {
		size := "-"
		if info, err := os.Stat(filepath.Join(c.root(), name)); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		rows = append(rows, []string{name, size})
	}
	return writeTable(c.out, []string{"Core", "Size"}, rows, []columnAlignment{alignLeft, alignRight})
}

func (c *CoresCommand) PostRun(ctx context.Context) error { return nil }

func init() {
	RegisterRunner("cores", func() IRunner { return NewCoresCommand() })
}
