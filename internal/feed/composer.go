// Package feed собирает ленты постов и комментариев: предикат зрителя,
// порядок ранжирования, пагинация и аннотации для зрителя.
package feed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ButyrinIA/comet/internal/apperr"
	"github.com/ButyrinIA/comet/internal/loader"
	"github.com/ButyrinIA/comet/internal/logger"
	"github.com/ButyrinIA/comet/internal/metrics"
	"github.com/ButyrinIA/comet/internal/models"
	"github.com/ButyrinIA/comet/internal/personalize"
	"github.com/ButyrinIA/comet/internal/ranking"
	"github.com/ButyrinIA/comet/internal/storage"
	"go.uber.org/zap"
)

type FeedArgs struct {
	Page     int
	PageSize int
	Sort     models.Sort
	Time     models.Time
	Filter   models.Filter
}

type SearchArgs struct {
	Query    string
	Page     int
	PageSize int
	Sort     models.Sort
	Time     models.Time
}

type Store interface {
	loader.Store
	GetPost(ctx context.Context, id string) (*models.Post, error)
	ListPosts(ctx context.Context, q storage.PostQuery) ([]*models.Post, error)
	ListComments(ctx context.Context, q storage.CommentQuery) ([]*models.Comment, error)
}

type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	Now             func() time.Time
	Logger          *zap.Logger
}

type Composer struct {
	store       Store
	viewers     *personalize.Builder
	defaultSize int
	maxSize     int
	now         func() time.Time
	log         *zap.Logger
}

func NewComposer(store Store, viewers *personalize.Builder, opts Options) *Composer {
	c := &Composer{
		store:       store,
		viewers:     viewers,
		defaultSize: opts.DefaultPageSize,
		maxSize:     opts.MaxPageSize,
		now:         opts.Now,
		log:         logger.OrDefault(opts.Logger),
	}
	if c.defaultSize <= 0 {
		c.defaultSize = 20
	}
	if c.maxSize < c.defaultSize {
		c.maxSize = c.defaultSize
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// HomeFeed - основная лента: без закрепленных и удаленных постов, с фильтрами зрителя
func (c *Composer) HomeFeed(ctx context.Context, viewerID string, args FeedArgs) ([]*models.Post, error) {
	defer c.observe("home", string(args.Sort))()

	skip, take, err := c.paginate(args.Page, args.PageSize)
	if err != nil {
		return nil, err
	}
	vc, err := c.viewers.Build(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	filter, ok := homeFilter(vc, args, now)
	if !ok {
		return []*models.Post{}, nil
	}
	return c.listPosts(ctx, vc, storage.PostQuery{
		Filter: filter,
		Order:  ranking.ForFeed(args.Sort),
		Skip:   skip,
		Take:   take,
		Now:    now,
	})
}

func (c *Composer) SearchPosts(ctx context.Context, viewerID string, args SearchArgs) ([]*models.Post, error) {
	defer c.observe("search", string(args.Sort))()

	args.Query = strings.TrimSpace(args.Query)
	if args.Query == "" {
		return []*models.Post{}, nil
	}
	skip, take, err := c.paginate(args.Page, args.PageSize)
	if err != nil {
		return nil, err
	}
	vc, err := c.viewers.Build(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	return c.listPosts(ctx, vc, storage.PostQuery{
		Filter: searchFilter(vc, args, now),
		Order:  ranking.ForSearch(args.Sort),
		Skip:   skip,
		Take:   take,
		Now:    now,
	})
}

// GlobalStickies возвращает закрепленные посты, новые первыми, без пагинации
func (c *Composer) GlobalStickies(ctx context.Context, viewerID string) ([]*models.Post, error) {
	defer c.observe("stickies", string(models.SortNew))()

	vc, err := c.viewers.Build(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return c.listPosts(ctx, vc, storage.PostQuery{
		Filter: stickyFilter(vc),
		Order:  ranking.ForFeed(models.SortNew),
		Now:    c.now(),
	})
}

// HiddenPosts возвращает посты, скрытые зрителем
func (c *Composer) HiddenPosts(ctx context.Context, viewerID string) ([]*models.Post, error) {
	defer c.observe("hidden", string(models.SortNew))()

	vc, err := c.viewers.Build(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	filter, ok := hiddenFilter(vc)
	if !ok {
		return []*models.Post{}, nil
	}
	return c.listPosts(ctx, vc, storage.PostQuery{
		Filter: filter,
		Order:  ranking.ForFeed(models.SortNew),
		Now:    c.now(),
	})
}

// Post возвращает один пост или nil, если его нет или он удален
func (c *Composer) Post(ctx context.Context, viewerID, postID string) (*models.Post, error) {
	vc, err := c.viewers.Build(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	posts, err := c.listPosts(ctx, vc, storage.PostQuery{
		Filter: storage.PostFilter{IDs: []string{postID}},
		Take:   1,
		Now:    c.now(),
	})
	if err != nil || len(posts) == 0 {
		return nil, err
	}
	return posts[0], nil
}

// PostComments возвращает все комментарии поста плоским списком
func (c *Composer) PostComments(ctx context.Context, viewerID, postID string, sort models.Sort) ([]*models.Comment, error) {
	defer c.observe("comments", string(sort))()

	if _, err := c.store.GetPost(ctx, postID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Validation("postId", "invalid post id")
		}
		return nil, err
	}
	vc, err := c.viewers.Build(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	comments, err := c.store.ListComments(ctx, storage.CommentQuery{
		Filter:   commentFilter(vc, postID),
		Order:    ranking.ForComments(sort),
		ViewerID: vc.ViewerID,
		Now:      c.now(),
	})
	if err != nil {
		return nil, err
	}

	authorIDs := make([]string, len(comments))
	for i, cm := range comments {
		authorIDs[i] = cm.AuthorID
	}
	authors, errs := loader.For(ctx, c.store).Users.LoadMany(ctx, authorIDs)()
	if err := firstError(errs); err != nil {
		return nil, err
	}
	for i, cm := range comments {
		cm.Author = authors[i]
	}
	return comments, nil
}

func (c *Composer) listPosts(ctx context.Context, vc personalize.ViewerContext, q storage.PostQuery) ([]*models.Post, error) {
	q.ViewerID = vc.ViewerID
	posts, err := c.store.ListPosts(ctx, q)
	if err != nil {
		c.log.Debug("list posts failed", logger.WithUserID(vc.ViewerID), zap.Error(err))
		return nil, err
	}
	if err := c.annotate(ctx, vc, posts); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

// annotate дополняет посты автором, отметкой скрытия и числом новых комментариев.
// Авторы и просмотры загружаются через загрузчики запроса одной выборкой.
func (c *Composer) annotate(ctx context.Context, vc personalize.ViewerContext, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	l := loader.For(ctx, c.store)

	authorIDs := make([]string, len(posts))
	for i, p := range posts {
		authorIDs[i] = p.AuthorID
	}
	authorsThunk := l.Users.LoadMany(ctx, authorIDs)

	var views []*models.PostView
	if !vc.Anonymous() {
		keys := make([]models.PostViewKey, len(posts))
		for i, p := range posts {
			keys[i] = models.PostViewKey{PostID: p.ID, UserID: vc.ViewerID}
		}
		var errs []error
		views, errs = l.PostViews.LoadMany(ctx, keys)()
		if err := firstError(errs); err != nil {
			return err
		}
	}

	authors, errs := authorsThunk()
	if err := firstError(errs); err != nil {
		return err
	}

	for i, p := range posts {
		p.Author = authors[i]
		p.IsHidden = vc.HiddenPostIDs.Has(p.ID)
		p.NewCommentCount = -1
		if views != nil && views[i] != nil {
			p.PostView = views[i]
			p.NewCommentCount = p.CommentCount - views[i].LastCommentCount
		}
	}
	return nil
}

func (c *Composer) paginate(page, pageSize int) (skip, take int, err error) {
	if page < 0 {
		return 0, 0, apperr.Validation("page", "page must not be negative")
	}
	switch {
	case pageSize <= 0:
		pageSize = c.defaultSize
	case pageSize > c.maxSize:
		pageSize = c.maxSize
	}
	return page * pageSize, pageSize, nil
}

func (c *Composer) observe(feed, sort string) func() {
	start := time.Now()
	metrics.FeedRequests.WithLabelValues(feed, sort).Inc()
	return func() {
		metrics.FeedDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
	}
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
