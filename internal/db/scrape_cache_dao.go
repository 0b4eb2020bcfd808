package db

import (
	"context"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
)

const scrapeCacheTableName = "scrape_cache_tab"

// ScrapeCacheDao keeps fetched metadata pages keyed by source and identifier.
var ScrapeCacheDao = NewScrapeCacheDao(Default)

type ScrapeCacheDAO struct {
	dbGetter DatabaseGetter
	now      func() time.Time
}

func NewScrapeCacheDao(getter DatabaseGetter) *ScrapeCacheDAO {
	return &ScrapeCacheDAO{dbGetter: getter, now: time.Now}
}

// Get returns the cached payload when it is younger than ttl.
func (dao *ScrapeCacheDAO) Get(ctx context.Context, source, key string, ttl time.Duration) (string, bool, error) {
	db := dao.dbGetter()
	if db == nil {
		return "", false, nil
	}
	where := map[string]interface{}{
		"source":    source,
		"cache_key": key,
		"_limit":    []uint{0, 1},
	}
	query, args, err := builder.BuildSelect(scrapeCacheTableName, where, []string{"payload", "update_time"})
	if err != nil {
		return "", false, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", false, fmt.Errorf("query scrape cache: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return "", false, rows.Err()
	}
	var payload string
	var updated int64
	if err := rows.Scan(&payload, &updated); err != nil {
		return "", false, fmt.Errorf("scan scrape cache: %w", err)
	}
	if ttl > 0 && dao.now().Sub(time.Unix(updated, 0)) > ttl {
		return "", false, nil
	}
	return payload, true, nil
}

// Put stores or refreshes a payload.
func (dao *ScrapeCacheDAO) Put(ctx context.Context, source, key, payload string) error {
	db := dao.dbGetter()
	if db == nil {
		return fmt.Errorf("scrape cache dao not initialised")
	}
	now := dao.now().Unix()
	insertSQL, insertArgs, err := builder.BuildInsert(scrapeCacheTableName, []map[string]interface{}{{
		"source":      source,
		"cache_key":   key,
		"payload":     payload,
		"update_time": now,
	}})
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, insertSQL, insertArgs...); err != nil {
		if !isUniqueConstraintError(err) {
			return fmt.Errorf("insert scrape cache: %w", err)
		}
		updateSQL, updateArgs, err := builder.BuildUpdate(scrapeCacheTableName,
			map[string]interface{}{"source": source, "cache_key": key},
			map[string]interface{}{"payload": payload, "update_time": now},
		)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, updateSQL, updateArgs...); err != nil {
			return fmt.Errorf("update scrape cache: %w", err)
		}
	}
	return nil
}

// DeleteExpired removes payloads older than ttl and returns how many rows went.
func (dao *ScrapeCacheDAO) DeleteExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	db := dao.dbGetter()
	if db == nil {
		return 0, fmt.Errorf("scrape cache dao not initialised")
	}
	cutoff := dao.now().Add(-ttl).Unix()
	deleteSQL, args, err := builder.BuildDelete(scrapeCacheTableName, map[string]interface{}{"update_time <": cutoff})
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, deleteSQL, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired scrape cache: %w", err)
	}
	return res.RowsAffected()
}
