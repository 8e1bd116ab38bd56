// Package personalize собирает для зрителя множества исключений и включений,
// которые применяются к каждой ленте.
package personalize

import (
	"context"
	"slices"

	"github.com/ButyrinIA/comet/internal/apperr"
	"github.com/ButyrinIA/comet/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Set map[string]struct{}

func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Slice возвращает элементы в отсортированном порядке
func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// ViewerContext - отношения зрителя, прочитанные один раз на запрос
type ViewerContext struct {
	ViewerID           string
	BlockedAuthorIDs   Set
	HiddenTopicNames   Set
	FollowedTopicNames Set
	HiddenPostIDs      Set
}

func (v ViewerContext) Anonymous() bool {
	return v.ViewerID == ""
}

// Anonymous - контекст без зрителя: все множества пусты
func Anonymous() ViewerContext {
	return ViewerContext{
		BlockedAuthorIDs:   Set{},
		HiddenTopicNames:   Set{},
		FollowedTopicNames: Set{},
		HiddenPostIDs:      Set{},
	}
}

type Lookup interface {
	BlockedUserIDs(ctx context.Context, userID string) ([]string, error)
	HiddenTopicNames(ctx context.Context, userID string) ([]string, error)
	FollowedTopicNames(ctx context.Context, userID string) ([]string, error)
	HiddenPostIDs(ctx context.Context, userID string) ([]string, error)
}

type Builder struct {
	store Lookup
	log   *zap.Logger
}

func NewBuilder(store Lookup, log *zap.Logger) *Builder {
	return &Builder{store: store, log: logger.OrDefault(log)}
}

// Build читает четыре отношения зрителя параллельно. Любая ошибка чтения
// прерывает запрос: лента без фильтров не отдается.
func (b *Builder) Build(ctx context.Context, viewerID string) (ViewerContext, error) {
	if viewerID == "" {
		return Anonymous(), nil
	}

	var blocked, hiddenTopics, followed, hiddenPosts []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		blocked, err = b.store.BlockedUserIDs(gctx, viewerID)
		return err
	})
	g.Go(func() (err error) {
		hiddenTopics, err = b.store.HiddenTopicNames(gctx, viewerID)
		return err
	})
	g.Go(func() (err error) {
		followed, err = b.store.FollowedTopicNames(gctx, viewerID)
		return err
	})
	g.Go(func() (err error) {
		hiddenPosts, err = b.store.HiddenPostIDs(gctx, viewerID)
		return err
	})
	if err := g.Wait(); err != nil {
		b.log.Warn("viewer filter lookup failed", logger.WithUserID(viewerID), zap.Error(err))
		return ViewerContext{}, apperr.Unavailable("viewer filters", err)
	}

	return ViewerContext{
		ViewerID:           viewerID,
		BlockedAuthorIDs:   NewSet(blocked...),
		HiddenTopicNames:   NewSet(hiddenTopics...),
		FollowedTopicNames: NewSet(followed...),
		HiddenPostIDs:      NewSet(hiddenPosts...),
	}, nil
}
