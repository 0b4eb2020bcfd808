package main

import (
	"os"

	"github.com/xxxsen/eversd/internal/cli"

	"github.com/xxxsen/common/logger"
)

func main() {
	logger.Init("", "info", 0, 0, 0, true)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
