package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const lockFileName = ".eversd.lock"

// libraryLock guards a library root against concurrent writers from other
// eversd processes. It is a no-op unless library.lock is enabled.
type libraryLock struct {
	fl *flock.Flock
}

func acquireLibraryLock(ctx context.Context, root string) (*libraryLock, error) {
	if !Config().Library.Lock {
		return &libraryLock{}, nil
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ensure library root %s: %w", root, err)
	}
	path := filepath.Join(root, lockFileName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("library %s is locked by another eversd process", root)
	}
	logutil.GetLogger(ctx).Debug("library lock acquired", zap.String("path", path))
	return &libraryLock{fl: fl}, nil
}

func (l *libraryLock) Release() {
	if l == nil || l.fl == nil {
		return
	}
	_ = l.fl.Unlock()
}
