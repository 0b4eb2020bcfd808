package app

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	appdb "github.com/xxxsen/eversd/internal/db"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for hash %s: %w", path, err)
	}
	defer f.Close()

	hasher := md5.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("hash file %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// cachedFileMD5 hashes path, reusing the cached value while the file's
// modification time and size are unchanged.
func cachedFileMD5(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat file for hash %s: %w", path, err)
	}
	dao := appdb.FileHashCacheDao
	modTime := info.ModTime().UnixNano()
	if hash, ok, err := dao.Lookup(ctx, path, modTime, info.Size()); err != nil {
		logutil.GetLogger(ctx).Warn("lookup hash cache failed", zap.String("path", path), zap.Error(err))
	} else if ok {
		return hash, nil
	}
	hash, err := fileMD5(path)
	if err != nil {
		return "", err
	}
	if appdb.Default() != nil {
		entry := appdb.HashCacheEntry{Location: path, ModTime: modTime, Size: info.Size(), Hash: hash}
		if err := dao.Upsert(ctx, entry); err != nil {
			logutil.GetLogger(ctx).Warn("update hash cache failed", zap.String("path", path), zap.Error(err))
		}
	}
	return hash, nil
}

// forgetHashes drops cached hashes of removed files.
func forgetHashes(ctx context.Context, paths []string) {
	if appdb.Default() == nil || len(paths) == 0 {
		return
	}
	if err := appdb.FileHashCacheDao.DeleteByLocations(ctx, paths); err != nil {
		logutil.GetLogger(ctx).Warn("clean hash cache failed", zap.Error(err))
	}
}

// parseMappings turns slot=value pairs into a mapping override.
func parseMappings(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		slot, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(slot) == "" {
			return nil, fmt.Errorf("invalid mapping %q, want slot=value", pair)
		}
		out[strings.TrimSpace(slot)] = strings.TrimSpace(value)
	}
	return out, nil
}
