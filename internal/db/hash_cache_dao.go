package db

import (
	"context"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
)

const hashCacheTableName = "file_hash_cache_tab"

// FileHashCacheDao caches content hashes of library files so repeated verify
// runs only hash files that changed.
var FileHashCacheDao = NewFileHashCacheDao(Default)

type FileHashCacheDAO struct {
	dbGetter DatabaseGetter
}

type HashCacheEntry struct {
	Location string
	ModTime  int64
	Size     int64
	Hash     string
}

func NewFileHashCacheDao(getter DatabaseGetter) *FileHashCacheDAO {
	return &FileHashCacheDAO{
		dbGetter: getter,
	}
}

// Lookup returns a cached hash for the location when the file modification
// time and size both match.
func (dao *FileHashCacheDAO) Lookup(ctx context.Context, location string, modTime, size int64) (string, bool, error) {
	db := dao.dbGetter()
	if db == nil {
		return "", false, nil
	}

	where := map[string]interface{}{
		"location": location,
		"_limit":   []uint{0, 1},
	}
	query, args, err := builder.BuildSelect(hashCacheTableName, where, []string{"hash", "file_modtime", "file_size"})
	if err != nil {
		return "", false, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", false, fmt.Errorf("query hash cache: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		var hash string
		var cachedModTime, cachedSize int64
		if err := rows.Scan(&hash, &cachedModTime, &cachedSize); err != nil {
			return "", false, fmt.Errorf("scan hash cache: %w", err)
		}
		if cachedModTime == modTime && cachedSize == size {
			return hash, true, nil
		}
		return "", false, nil
	}
	if err := rows.Err(); err != nil {
		return "", false, err
	}
	return "", false, nil
}

// Upsert stores or updates the cached hash for the provided location.
func (dao *FileHashCacheDAO) Upsert(ctx context.Context, entry HashCacheEntry) error {
	db := dao.dbGetter()
	if db == nil {
		return fmt.Errorf("hash cache dao not initialised")
	}

	payload := []map[string]interface{}{{
		"location":     entry.Location,
		"create_time":  time.Now().Unix(),
		"file_modtime": entry.ModTime,
		"file_size":    entry.Size,
		"hash":         entry.Hash,
	}}
	insertSQL, insertArgs, err := builder.BuildInsert(hashCacheTableName, payload)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, insertSQL, insertArgs...); err != nil {
		if !isUniqueConstraintError(err) {
			return fmt.Errorf("insert hash cache: %w", err)
		}
		updateSQL, updateArgs, err := builder.BuildUpdate(hashCacheTableName,
			map[string]interface{}{"location": entry.Location},
			map[string]interface{}{
				"file_modtime": entry.ModTime,
				"file_size":    entry.Size,
				"hash":         entry.Hash,
			},
		)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, updateSQL, updateArgs...); err != nil {
			return fmt.Errorf("update hash cache: %w", err)
		}
	}
	return nil
}

func (dao *FileHashCacheDAO) ListAll(ctx context.Context) ([]HashCacheEntry, error) {
	db := dao.dbGetter()
	if db == nil {
		return nil, fmt.Errorf("hash cache dao not initialised")
	}
	query, args, err := builder.BuildSelect(hashCacheTableName, nil, []string{"location", "file_modtime", "file_size", "hash"})
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list hash cache: %w", err)
	}
	defer rows.Close()

	var result []HashCacheEntry
	for rows.Next() {
		var entry HashCacheEntry
		if err := rows.Scan(&entry.Location, &entry.ModTime, &entry.Size, &entry.Hash); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteByLocations drops cache rows, used to forget files of deleted entries.
func (dao *FileHashCacheDAO) DeleteByLocations(ctx context.Context, locations []string) error {
	if len(locations) == 0 {
		return nil
	}
	db := dao.dbGetter()
	if db == nil {
		return fmt.Errorf("hash cache dao not initialised")
	}
	where := map[string]interface{}{"location in": locations}
	deleteSQL, args, err := builder.BuildDelete(hashCacheTableName, where)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, deleteSQL, args...); err != nil {
		return fmt.Errorf("delete hash cache entries: %w", err)
	}
	return nil
}
