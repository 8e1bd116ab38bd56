// Package loader собирает обращения к хранилищу за время одного запроса в
// пакетные выборки. Набор загрузчиков создается заново на каждый запрос.
package loader

import (
	"context"
	"net/http"
	"time"

	"github.com/ButyrinIA/comet/internal/metrics"
	"github.com/ButyrinIA/comet/internal/models"
	"github.com/graph-gophers/dataloader/v7"
)

const DefaultWait = 2 * time.Millisecond

type Store interface {
	GetUsers(ctx context.Context, ids []string) ([]*models.User, error)
	GetPosts(ctx context.Context, ids []string) ([]*models.Post, error)
	GetPostViews(ctx context.Context, keys []models.PostViewKey) ([]*models.PostView, error)
}

type Loaders struct {
	Users     *dataloader.Loader[string, *models.User]
	Posts     *dataloader.Loader[string, *models.Post]
	PostViews *dataloader.Loader[models.PostViewKey, *models.PostView]
}

// New создает набор загрузчиков. Ключи, запрошенные в пределах wait,
// уходят в хранилище одной выборкой; отсутствующие ключи дают nil без ошибки.
func New(store Store, wait time.Duration) *Loaders {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Loaders{
		Users: dataloader.NewBatchedLoader(
			batch("users", store.GetUsers, func(u *models.User) string { return u.ID }),
			dataloader.WithWait[string, *models.User](wait),
		),
		Posts: dataloader.NewBatchedLoader(
			batch("posts", store.GetPosts, func(p *models.Post) string { return p.ID }),
			dataloader.WithWait[string, *models.Post](wait),
		),
		PostViews: dataloader.NewBatchedLoader(
			batch("post_views", store.GetPostViews, (*models.PostView).Key),
			dataloader.WithWait[models.PostViewKey, *models.PostView](wait),
		),
	}
}

// batch превращает выборку "по списку ключей" в BatchFunc, сохраняя порядок ключей
func batch[K comparable, V any](name string, fetch func(context.Context, []K) ([]V, error), key func(V) K) dataloader.BatchFunc[K, V] {
	return func(ctx context.Context, keys []K) []*dataloader.Result[V] {
		metrics.LoaderBatchSize.WithLabelValues(name).Observe(float64(len(keys)))

		results := make([]*dataloader.Result[V], len(keys))
		items, err := fetch(ctx, keys)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result[V]{Error: err}
			}
			return results
		}

		byKey := make(map[K]V, len(items))
		for _, item := range items {
			byKey[key(item)] = item
		}
		for i, k := range keys {
			results[i] = &dataloader.Result[V]{Data: byKey[k]}
		}
		return results
	}
}

type ctxKey struct{}

func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// For возвращает загрузчики запроса, а если их нет - новый набор
func For(ctx context.Context, store Store) *Loaders {
	if l, ok := ctx.Value(ctxKey{}).(*Loaders); ok {
		return l
	}
	return New(store, DefaultWait)
}

// Middleware прикрепляет свежий набор загрузчиков к каждому HTTP-запросу
func Middleware(store Store, wait time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), New(store, wait))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
