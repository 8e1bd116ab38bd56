// Package posting создает и удаляет посты и комментарии, ограничивает частоту
// отправки и записывает просмотры постов.
package posting

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ButyrinIA/comet/internal/apperr"
	"github.com/ButyrinIA/comet/internal/logger"
	"github.com/ButyrinIA/comet/internal/metrics"
	"github.com/ButyrinIA/comet/internal/models"
	"github.com/ButyrinIA/comet/internal/preview"
	"github.com/ButyrinIA/comet/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPostInterval    = 3 * time.Minute
	DefaultCommentInterval = 15 * time.Second

	MaxTitleLength   = 300
	MaxCommentLength = 10000
	MaxTopics        = 10
)

type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	CreatePost(ctx context.Context, post *models.Post) error
	CreateComment(ctx context.Context, comment *models.Comment) error
	SoftDeletePost(ctx context.Context, id string) error
	SoftDeleteComment(ctx context.Context, id string) error
	UpsertPostView(ctx context.Context, view *models.PostView) error
	MarkSubmitted(ctx context.Context, userID string, kind models.SubmissionKind, now time.Time, minInterval time.Duration) (*time.Time, bool, error)
}

// Thumbnailer строит миниатюру и возвращает ее публичный адрес
type Thumbnailer interface {
	Process(ctx context.Context, postID, imageURL string) (string, error)
}

type Options struct {
	PostInterval    time.Duration
	CommentInterval time.Duration
	Now             func() time.Time
	Logger          *zap.Logger
}

type Service struct {
	store   Store
	preview preview.Fetcher
	thumbs  Thumbnailer
	opts    Options
	log     *zap.Logger
}

// NewService создает сервис отправки. thumbs может быть nil: тогда миниатюры не строятся.
func NewService(store Store, fetcher preview.Fetcher, thumbs Thumbnailer, opts Options) *Service {
	if opts.PostInterval == 0 {
		opts.PostInterval = DefaultPostInterval
	}
	if opts.CommentInterval == 0 {
		opts.CommentInterval = DefaultCommentInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:   store,
		preview: fetcher,
		thumbs:  thumbs,
		opts:    opts,
		log:     logger.OrDefault(opts.Logger),
	}
}

// NewID - 128 случайных бит в base64url без паддинга (22 символа)
func NewID() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

type SubmitPostArgs struct {
	Title       string
	Type        models.PostType
	Link        *string
	TextContent *string
	Topics      []string
}

func (s *Service) SubmitPost(ctx context.Context, viewerID string, args SubmitPostArgs) (*models.Post, error) {
	post, err := s.submitPost(ctx, viewerID, args)
	if err != nil {
		reject(models.SubmissionPost, err)
		return nil, err
	}
	return post, nil
}

func (s *Service) submitPost(ctx context.Context, viewerID string, args SubmitPostArgs) (*models.Post, error) {
	if viewerID == "" {
		return nil, apperr.Unauthorized("login required")
	}

	post, err := buildPost(args)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	if err := s.guard(ctx, viewerID, models.SubmissionPost, now); err != nil {
		return nil, err
	}

	post.ID = NewID()
	post.AuthorID = viewerID
	post.CreatedAt = now

	if post.Type == models.PostTypeLink {
		if err := s.attachLinkMeta(ctx, post); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	// автор еще не открывал свой пост
	post.NewCommentCount = -1

	s.log.Info("post submitted", logger.WithPostID(post.ID), logger.WithUserID(viewerID), zap.String("type", string(post.Type)))
	return post, nil
}

func buildPost(args SubmitPostArgs) (*models.Post, error) {
	title := strings.TrimSpace(args.Title)
	if title == "" {
		return nil, apperr.Validation("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, apperr.Validation("title", "title is too long")
	}

	topics := models.NormalizeTopics(args.Topics)
	if len(topics) > MaxTopics {
		return nil, apperr.Validation("topics", "too many topics")
	}

	post := &models.Post{Title: title, Type: args.Type, Topics: topics}

	if args.TextContent != nil {
		if text := strings.TrimSpace(*args.TextContent); text != "" {
			post.TextContent = &text
		}
	}

	switch args.Type {
	case models.PostTypeLink:
		if args.Link == nil || !isHTTPURL(strings.TrimSpace(*args.Link)) {
			return nil, apperr.Validation("link", "link must be an absolute http(s) url")
		}
		link := strings.TrimSpace(*args.Link)
		post.Link = &link
	case models.PostTypeText:
	default:
		return nil, apperr.Validation("type", "unknown post type")
	}
	return post, nil
}

func isHTTPURL(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// attachLinkMeta заполняет домен и миниатюру ссылочного поста
func (s *Service) attachLinkMeta(ctx context.Context, post *models.Post) error {
	link := *post.Link
	domain := preview.Domain(link)

	var image string
	if preview.IsImageURL(link) {
		image = link
	} else {
		if s.preview != nil {
			res := s.preview.Fetch(ctx, link)
			image = res.LeadImageURL
			if res.Domain != "" {
				domain = res.Domain
			}
		}
		if image == "" {
			image, _ = preview.YouTubeThumbnail(link)
		}
	}

	if domain != "" {
		post.Domain = &domain
	}

	if image == "" || s.thumbs == nil {
		return nil
	}
	location, err := s.thumbs.Process(ctx, post.ID, image)
	if err != nil {
		s.log.Warn("thumbnail failed", logger.WithPostID(post.ID), zap.String("image", image), zap.Error(err))
		return apperr.External("thumbnail pipeline", err)
	}
	post.ThumbnailURL = &location
	return nil
}

type SubmitCommentArgs struct {
	PostID          string
	TextContent     string
	ParentCommentID *string
}

func (s *Service) SubmitComment(ctx context.Context, viewerID string, args SubmitCommentArgs) (*models.Comment, error) {
	comment, err := s.submitComment(ctx, viewerID, args)
	if err != nil {
		reject(models.SubmissionComment, err)
		return nil, err
	}
	return comment, nil
}

func (s *Service) submitComment(ctx context.Context, viewerID string, args SubmitCommentArgs) (*models.Comment, error) {
	if viewerID == "" {
		return nil, apperr.Unauthorized("login required")
	}

	text := strings.TrimSpace(args.TextContent)
	if text == "" {
		return nil, apperr.Validation("textContent", "comment cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, apperr.Validation("textContent", "comment is too long")
	}

	post, err := s.livePost(ctx, args.PostID)
	if err != nil {
		return nil, err
	}

	var parentID *string
	if args.ParentCommentID != nil && *args.ParentCommentID != "" {
		parent, err := s.store.GetComment(ctx, *args.ParentCommentID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && parent.PostID != post.ID) {
			return nil, apperr.Validation("parentCommentId", "invalid parent comment id")
		}
		if err != nil {
			return nil, err
		}
		id := parent.ID
		parentID = &id
	}

	now := s.opts.Now()
	if err := s.guard(ctx, viewerID, models.SubmissionComment, now); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:              NewID(),
		PostID:          post.ID,
		ParentCommentID: parentID,
		AuthorID:        viewerID,
		TextContent:     text,
		CreatedAt:       now,
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Validation("postId", "invalid post id")
		}
		return nil, err
	}

	s.log.Info("comment submitted", logger.WithCommentID(comment.ID), logger.WithPostID(post.ID), logger.WithUserID(viewerID))
	return comment, nil
}

// guard атомарно проверяет и сдвигает время последней отправки; админы не ограничены
func (s *Service) guard(ctx context.Context, userID string, kind models.SubmissionKind, now time.Time) error {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Unauthorized("unknown user")
	}
	if err != nil {
		return err
	}

	interval := s.opts.PostInterval
	if kind == models.SubmissionComment {
		interval = s.opts.CommentInterval
	}
	if user.Admin {
		interval = 0
	}

	last, ok, err := s.store.MarkSubmitted(ctx, userID, kind, now, interval)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Unauthorized("unknown user")
	}
	if err != nil {
		return err
	}
	if !ok {
		wait := interval - now.Sub(*last)
		return apperr.RateLimited("please wait before submitting again", wait)
	}
	return nil
}

func (s *Service) DeletePost(ctx context.Context, viewerID, postID string) error {
	if viewerID == "" {
		return apperr.Unauthorized("login required")
	}
	post, err := s.store.GetPost(ctx, postID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Validation("postId", "invalid post id")
	}
	if err != nil {
		return err
	}
	if post.AuthorID != viewerID {
		return apperr.Forbidden("only the author can delete this post")
	}
	if err := s.store.SoftDeletePost(ctx, postID); err != nil {
		return err
	}
	s.log.Info("post deleted", logger.WithPostID(postID), logger.WithUserID(viewerID))
	return nil
}

func (s *Service) DeleteComment(ctx context.Context, viewerID, commentID string) error {
	if viewerID == "" {
		return apperr.Unauthorized("login required")
	}
	comment, err := s.store.GetComment(ctx, commentID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Validation("commentId", "invalid comment id")
	}
	if err != nil {
		return err
	}
	if comment.AuthorID != viewerID {
		return apperr.Forbidden("only the author can delete this comment")
	}
	if err := s.store.SoftDeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.log.Info("comment deleted", logger.WithCommentID(commentID), logger.WithUserID(viewerID))
	return nil
}

// RecordPostView запоминает, сколько комментариев зритель уже видел.
// Для анонима ничего не пишет и возвращает nil.
func (s *Service) RecordPostView(ctx context.Context, viewerID, postID string) (*models.PostView, error) {
	if viewerID == "" {
		return nil, nil
	}
	post, err := s.livePost(ctx, postID)
	if err != nil {
		return nil, err
	}
	view := &models.PostView{
		PostID:           post.ID,
		UserID:           viewerID,
		CreatedAt:        s.opts.Now(),
		LastCommentCount: post.CommentCount,
	}
	if err := s.store.UpsertPostView(ctx, view); err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) livePost(ctx context.Context, postID string) (*models.Post, error) {
	post, err := s.store.GetPost(ctx, postID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && post.Deleted) {
		return nil, apperr.Validation("postId", "invalid post id")
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

func reject(kind models.SubmissionKind, err error) {
	metrics.SubmissionsRejected.WithLabelValues(string(kind), string(apperr.CodeOf(err))).Inc()
}
