package tracker

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hitoshi/studylog/internal/identity"
)

// Registry はブラウザコンテキストIDごとのTrackerを保持する。
// 上限を超えると最も使われていないTrackerを破棄し、購読を解除する。
type Registry struct {
	provider identity.Provider
	store    RecordStore
	opts     Options
	cache    *lru.Cache[string, *Tracker]
}

// NewRegistry はRegistryを生成する。
func NewRegistry(size int, provider identity.Provider, store RecordStore, opts Options) (*Registry, error) {
	cache, err := lru.NewWithEvict(size, func(_ string, t *Tracker) {
		t.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker cache: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		provider: provider,
		store:    store,
		opts:     opts,
		cache:    cache,
	}, nil
}

// Get はブラウザコンテキストのTrackerを返す。
// 未作成の場合はsessionIDから認証状態を復元して作成し、
// 作成済みの場合はセッションを再検証する。
func (r *Registry) Get(ctx context.Context, browserID, sessionID string) (*Tracker, error) {
	if t, ok := r.cache.Get(browserID); ok {
		if err := t.Refresh(ctx); err != nil {
			return nil, err
		}
		return t, nil
	}

	t := New(identity.NewClient(r.provider), r.store, r.opts)
	t.Start(ctx)
	if sessionID != "" {
		if err := t.Restore(ctx, sessionID); err != nil {
			t.Close()
			return nil, err
		}
	}
	// 新しいコンテキストには表示中の画面がないため、初期状態による遷移は捨てる
	t.TakeNavigation()

	if prev, ok, _ := r.cache.PeekOrAdd(browserID, t); ok {
		t.Close()
		return prev, nil
	}
	return t, nil
}

// Remove はTrackerを破棄する。
func (r *Registry) Remove(browserID string) {
	r.cache.Remove(browserID)
}

// Len は保持しているTracker数を返す。
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close はすべてのTrackerを破棄する。
func (r *Registry) Close() {
	r.cache.Purge()
}
