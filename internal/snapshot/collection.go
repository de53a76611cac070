// Package snapshot はコレクション単位のキャッシュスナップショットを提供する。
//
// リソース名（"teams"等）ごとに、ストア全件のシリアライズ済み配列を
// 単一のキャッシュキーに固定TTLで保持する。スナップショットは
// 「不在・空・ストアの完全な鏡像」のいずれかであり、部分的な状態は取らない。
// 読み取りはスナップショットを優先し、ストアを参照した場合は毎回
// スナップショットの再構築を試みる。ミューテーション後はRefreshで
// 全件再読み込みによる完全置換を行う。
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/matchday/internal/cache"
	"github.com/hitoshi/matchday/internal/metrics"
	"github.com/hitoshi/matchday/internal/model"
)

// Collection は1リソースのキャッシュバックドリーダー兼ライトスルーインバリデーター。
// listは永続ストアから全件を読むコールバックで、再構築のたびに呼ばれる。
type Collection[T any] struct {
	resource string
	ttl      time.Duration
	store    *cache.Store
	list     func(ctx context.Context) ([]T, error)
	recorder metrics.Recorder
}

// NewCollection はCollectionを生成する。
// recorderがnilの場合はメトリクスを記録しない。
func NewCollection[T any](
	resource string,
	store *cache.Store,
	ttl time.Duration,
	list func(ctx context.Context) ([]T, error),
	recorder metrics.Recorder,
) *Collection[T] {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Collection[T]{
		resource: resource,
		ttl:      ttl,
		store:    store,
		list:     list,
		recorder: recorder,
	}
}

// Resource はリソース名を返す。
func (c *Collection[T]) Resource() string {
	return c.resource
}

// GetAll は全件を返す。
// 非空のスナップショットが存在すればそれを返し、オリジンはcacheになる。
// スナップショットが不在または空の場合はストアから読み、非空であれば
// スナップショットを書き戻す（ベストエフォート）。戻り値の配列は
// 空コレクションでもnilにならない。
func (c *Collection[T]) GetAll(ctx context.Context) ([]T, model.Source, error) {
	records, ok, err := c.cached(ctx)
	if err != nil {
		return nil, "", err
	}
	if ok && len(records) > 0 {
		c.recorder.RecordCacheHit(c.resource)
		return records, model.SourceCache, nil
	}
	c.recorder.RecordCacheMiss(c.resource)

	all, err := c.list(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list %s from store: %w", c.resource, err)
	}
	if all == nil {
		all = []T{}
	}
	if len(all) > 0 {
		c.writeBestEffort(ctx, all)
	}
	return all, model.SourceDB, nil
}

// Find はmatchを満たす1件を返す。見つからない場合は(nil, source, nil)。
//
// 非空のスナップショットが存在する場合はその中だけを線形探索し、
// 見つからなければストアへはフォールバックしない。書き込みのたびに
// スナップショットは完全置換されるため、存在判定についても
// スナップショットを正とする（鮮度より安定性を取るトレードオフ）。
// スナップショットが不在または空の場合はfetchでストアを引き、
// 結果の有無にかかわらずスナップショットの再構築を試みる。
func (c *Collection[T]) Find(
	ctx context.Context,
	match func(T) bool,
	fetch func(ctx context.Context) (*T, error),
) (*T, model.Source, error) {
	records, ok, err := c.cached(ctx)
	if err != nil {
		return nil, "", err
	}
	if ok && len(records) > 0 {
		c.recorder.RecordCacheHit(c.resource)
		for i := range records {
			if match(records[i]) {
				return &records[i], model.SourceCache, nil
			}
		}
		return nil, model.SourceCache, nil
	}
	c.recorder.RecordCacheMiss(c.resource)

	record, err := fetch(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s record from store: %w", c.resource, err)
	}

	// 並行する書き込みを拾えるよう、見つからなかった場合も再構築する。
	c.refreshBestEffort(ctx)

	return record, model.SourceDB, nil
}

// Filter はkeepを満たす全件を返す。
// 非空のスナップショットが存在すればその中をフィルタし（結果が空でも
// オリジンはcache）、不在または空の場合はqueryでストアを引いたうえで
// スナップショットの再構築を試みる。
func (c *Collection[T]) Filter(
	ctx context.Context,
	keep func(T) bool,
	query func(ctx context.Context) ([]T, error),
) ([]T, model.Source, error) {
	records, ok, err := c.cached(ctx)
	if err != nil {
		return nil, "", err
	}
	if ok && len(records) > 0 {
		c.recorder.RecordCacheHit(c.resource)
		kept := []T{}
		for _, r := range records {
			if keep(r) {
				kept = append(kept, r)
			}
		}
		return kept, model.SourceCache, nil
	}
	c.recorder.RecordCacheMiss(c.resource)

	matched, err := query(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query %s from store: %w", c.resource, err)
	}
	if matched == nil {
		matched = []T{}
	}

	c.refreshBestEffort(ctx)

	return matched, model.SourceDB, nil
}

// Refresh はストア全件を読み直し、スナップショットを完全置換する。
// ミューテーション成功後に呼ぶこと。コレクションが空になった場合も
// 空配列のスナップショットを書き、削除済みレコードが残留しないようにする。
// ストアの書き込みが確定した後の整合回復なので、失敗してもミューテーション
// 自体は成功として扱う（呼び出し側はエラーをログに留める）。
func (c *Collection[T]) Refresh(ctx context.Context) error {
	all, err := c.list(ctx)
	if err != nil {
		c.recorder.RecordRefreshFailure(c.resource)
		return fmt.Errorf("failed to list %s for snapshot refresh: %w", c.resource, err)
	}
	if all == nil {
		all = []T{}
	}
	if err := c.write(ctx, all); err != nil {
		c.recorder.RecordRefreshFailure(c.resource)
		return err
	}
	return nil
}

// cached はスナップショットを読み出す。不在の場合はok=false。
func (c *Collection[T]) cached(ctx context.Context) ([]T, bool, error) {
	raw, ok, err := c.store.Get(ctx, c.resource)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s snapshot: %w", c.resource, err)
	}
	if !ok {
		return nil, false, nil
	}

	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s snapshot: %w", c.resource, err)
	}
	return records, true, nil
}

// write はレコード配列をスナップショットとして書き込む。
func (c *Collection[T]) write(ctx context.Context, records []T) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode %s snapshot: %w", c.resource, err)
	}
	if err := c.store.Set(ctx, c.resource, raw, c.ttl); err != nil {
		return fmt.Errorf("failed to write %s snapshot: %w", c.resource, err)
	}
	return nil
}

// writeBestEffort は書き込みエラーをログに留める。読み取りパス用。
func (c *Collection[T]) writeBestEffort(ctx context.Context, records []T) {
	if err := c.write(ctx, records); err != nil {
		c.recorder.RecordRefreshFailure(c.resource)
		slog.Warn("snapshot write failed",
			slog.String("resource", c.resource),
			slog.String("error", err.Error()),
		)
	}
}

// refreshBestEffort は再構築エラーをログに留める。読み取りパス用。
func (c *Collection[T]) refreshBestEffort(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		slog.Warn("snapshot refresh failed",
			slog.String("resource", c.resource),
			slog.String("error", err.Error()),
		)
	}
}
