package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xxxsen/eversd/internal/library"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// cliReporter prints repository progress to the command output and mirrors
// it into the log.
type cliReporter struct {
	ctx context.Context
	out io.Writer
}

func newCLIReporter(ctx context.Context, out io.Writer) library.Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &cliReporter{ctx: ctx, out: out}
}

func (r *cliReporter) Report(message string) {
	_, _ = fmt.Fprintln(r.out, message)
	logutil.GetLogger(r.ctx).Info("library status", zap.String("message", message))
}

// logReporter only logs. Used by the http server where there is no terminal.
type logReporter struct {
	ctx context.Context
}

func (r logReporter) Report(message string) {
	logutil.GetLogger(r.ctx).Info("library status", zap.String("message", message))
}
