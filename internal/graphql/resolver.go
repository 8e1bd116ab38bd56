// Package graphql - тонкий адаптер между схемой GraphQL и сервисами ленты,
// публикации, голосов и пользовательских фильтров.
package graphql

import (
	"context"
	"errors"

	"github.com/ButyrinIA/comet/internal/apperr"
	"github.com/ButyrinIA/comet/internal/feed"
	"github.com/ButyrinIA/comet/internal/loader"
	"github.com/ButyrinIA/comet/internal/logger"
	"github.com/ButyrinIA/comet/internal/models"
	"github.com/ButyrinIA/comet/internal/posting"
	"github.com/ButyrinIA/comet/internal/storage"
	gql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"
)

type FeedService interface {
	HomeFeed(ctx context.Context, viewerID string, args feed.FeedArgs) ([]*models.Post, error)
	SearchPosts(ctx context.Context, viewerID string, args feed.SearchArgs) ([]*models.Post, error)
	GlobalStickies(ctx context.Context, viewerID string) ([]*models.Post, error)
	HiddenPosts(ctx context.Context, viewerID string) ([]*models.Post, error)
	Post(ctx context.Context, viewerID, postID string) (*models.Post, error)
	PostComments(ctx context.Context, viewerID, postID string, sort models.Sort) ([]*models.Comment, error)
}

type PostingService interface {
	SubmitPost(ctx context.Context, viewerID string, args posting.SubmitPostArgs) (*models.Post, error)
	SubmitComment(ctx context.Context, viewerID string, args posting.SubmitCommentArgs) (*models.Comment, error)
	DeletePost(ctx context.Context, viewerID, postID string) error
	DeleteComment(ctx context.Context, viewerID, commentID string) error
	RecordPostView(ctx context.Context, viewerID, postID string) (*models.PostView, error)
}

type EndorseService interface {
	TogglePost(ctx context.Context, viewerID, postID string) (bool, error)
	ToggleComment(ctx context.Context, viewerID, commentID string) (bool, error)
}

type RelationService interface {
	HidePost(ctx context.Context, viewerID, postID string) error
	UnhidePost(ctx context.Context, viewerID, postID string) error
	BlockUser(ctx context.Context, viewerID, userID string) error
	UnblockUser(ctx context.Context, viewerID, userID string) error
	FollowTopic(ctx context.Context, viewerID, topic string) error
	UnfollowTopic(ctx context.Context, viewerID, topic string) error
	HideTopic(ctx context.Context, viewerID, topic string) error
	UnhideTopic(ctx context.Context, viewerID, topic string) error
}

type TitleService interface {
	Title(ctx context.Context, link string) string
}

type UserStore interface {
	loader.Store
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type Services struct {
	Feed      FeedService
	Posting   PostingService
	Endorse   EndorseService
	Relations RelationService
	Titles    TitleService
	Users     UserStore
}

// Resolver - корневой резолвер для Query и Mutation
type Resolver struct {
	svc Services
	log *zap.Logger
}

func NewResolver(svc Services, log *zap.Logger) *Resolver {
	return &Resolver{svc: svc, log: logger.OrDefault(log)}
}

// fail логирует ошибку на границе API и возвращает ее клиенту без изменений
func (r *Resolver) fail(ctx context.Context, op string, err error) error {
	fields := []zap.Field{zap.String("op", op), logger.WithUserID(ViewerFrom(ctx)), zap.Error(err)}
	switch code := apperr.CodeOf(err); code {
	case apperr.CodeInternal, apperr.CodeConsistency, apperr.CodeServiceUnavailable, apperr.CodeExternalDependency:
		r.log.Error("graphql operation failed", append(fields, zap.String("code", string(code)))...)
	default:
		r.log.Debug("graphql operation rejected", append(fields, zap.String("code", string(code)))...)
	}
	return err
}

// аргументы со значением по умолчанию в схеме приходят всегда, поэтому не указатели
type feedArgs struct {
	Page     int32
	PageSize *int32
	Sort     string
	Time     string
	Filter   string
}

func (r *Resolver) HomeFeed(ctx context.Context, args feedArgs) ([]*postResolver, error) {
	fa := feed.FeedArgs{Page: int(args.Page), PageSize: intArg(args.PageSize)}
	var err error
	if fa.Sort, err = sortArg(args.Sort, models.SortHot); err != nil {
		return nil, r.fail(ctx, "homeFeed", err)
	}
	if fa.Time, err = timeArg(args.Time); err != nil {
		return nil, r.fail(ctx, "homeFeed", err)
	}
	fa.Filter = models.FilterAll
	if args.Filter != "" {
		if fa.Filter, err = models.ParseFilter(args.Filter); err != nil {
			return nil, r.fail(ctx, "homeFeed", apperr.Validation("filter", err.Error()))
		}
	}

	posts, err := r.svc.Feed.HomeFeed(ctx, ViewerFrom(ctx), fa)
	if err != nil {
		return nil, r.fail(ctx, "homeFeed", err)
	}
	return r.posts(posts), nil
}

type searchArgs struct {
	Search   string
	Page     int32
	PageSize *int32
	Sort     string
	Time     string
}

func (r *Resolver) SearchPosts(ctx context.Context, args searchArgs) ([]*postResolver, error) {
	sa := feed.SearchArgs{Query: args.Search, Page: int(args.Page), PageSize: intArg(args.PageSize)}
	var err error
	if sa.Sort, err = sortArg(args.Sort, models.SortTop); err != nil {
		return nil, r.fail(ctx, "searchPosts", err)
	}
	if sa.Time, err = timeArg(args.Time); err != nil {
		return nil, r.fail(ctx, "searchPosts", err)
	}

	posts, err := r.svc.Feed.SearchPosts(ctx, ViewerFrom(ctx), sa)
	if err != nil {
		return nil, r.fail(ctx, "searchPosts", err)
	}
	return r.posts(posts), nil
}

func (r *Resolver) GlobalStickies(ctx context.Context) ([]*postResolver, error) {
	posts, err := r.svc.Feed.GlobalStickies(ctx, ViewerFrom(ctx))
	if err != nil {
		return nil, r.fail(ctx, "globalStickies", err)
	}
	return r.posts(posts), nil
}

func (r *Resolver) HiddenPosts(ctx context.Context) ([]*postResolver, error) {
	posts, err := r.svc.Feed.HiddenPosts(ctx, ViewerFrom(ctx))
	if err != nil {
		return nil, r.fail(ctx, "hiddenPosts", err)
	}
	return r.posts(posts), nil
}

func (r *Resolver) Post(ctx context.Context, args struct{ PostID gql.ID }) (*postResolver, error) {
	post, err := r.svc.Feed.Post(ctx, ViewerFrom(ctx), string(args.PostID))
	if err != nil {
		return nil, r.fail(ctx, "post", err)
	}
	if post == nil {
		return nil, nil
	}
	return &postResolver{r: r, p: post}, nil
}

func (r *Resolver) PostComments(ctx context.Context, args struct {
	PostID gql.ID
	Sort   string
}) ([]*commentResolver, error) {
	sort, err := sortArg(args.Sort, models.SortTop)
	if err != nil {
		return nil, r.fail(ctx, "postComments", err)
	}
	comments, err := r.svc.Feed.PostComments(ctx, ViewerFrom(ctx), string(args.PostID), sort)
	if err != nil {
		return nil, r.fail(ctx, "postComments", err)
	}
	result := make([]*commentResolver, len(comments))
	for i, c := range comments {
		result[i] = &commentResolver{r: r, c: c}
	}
	return result, nil
}

func (r *Resolver) CurrentUser(ctx context.Context) (*userResolver, error) {
	viewerID := ViewerFrom(ctx)
	if viewerID == "" {
		return nil, nil
	}
	return r.user(ctx, "currentUser", viewerID)
}

func (r *Resolver) User(ctx context.Context, args struct{ UserID gql.ID }) (*userResolver, error) {
	return r.user(ctx, "user", string(args.UserID))
}

func (r *Resolver) user(ctx context.Context, op, id string) (*userResolver, error) {
	u, err := r.svc.Users.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, r.fail(ctx, op, err)
	}
	return &userResolver{u: u}, nil
}

// GetTitleAtURL возвращает заголовок страницы; при любом сбое пустую строку
func (r *Resolver) GetTitleAtURL(ctx context.Context, args struct{ URL string }) string {
	if r.svc.Titles == nil {
		return ""
	}
	return r.svc.Titles.Title(ctx, args.URL)
}

type submitPostArgs struct {
	Title       string
	Type        string
	Link        *string
	TextContent *string
	Topics      *[]string
}

func (r *Resolver) SubmitPost(ctx context.Context, args submitPostArgs) (*postResolver, error) {
	postType, err := models.ParsePostType(args.Type)
	if err != nil {
		return nil, r.fail(ctx, "submitPost", apperr.Validation("type", err.Error()))
	}
	in := posting.SubmitPostArgs{
		Title:       args.Title,
		Type:        postType,
		Link:        args.Link,
		TextContent: args.TextContent,
	}
	if args.Topics != nil {
		in.Topics = *args.Topics
	}

	post, err := r.svc.Posting.SubmitPost(ctx, ViewerFrom(ctx), in)
	if err != nil {
		return nil, r.fail(ctx, "submitPost", err)
	}
	return &postResolver{r: r, p: post}, nil
}

type postIDArgs struct {
	PostID gql.ID
}

func (r *Resolver) DeletePost(ctx context.Context, args postIDArgs) (bool, error) {
	return r.done(ctx, "deletePost", r.svc.Posting.DeletePost(ctx, ViewerFrom(ctx), string(args.PostID)))
}

func (r *Resolver) TogglePostEndorsement(ctx context.Context, args postIDArgs) (bool, error) {
	active, err := r.svc.Endorse.TogglePost(ctx, ViewerFrom(ctx), string(args.PostID))
	if err != nil {
		return false, r.fail(ctx, "togglePostEndorsement", err)
	}
	return active, nil
}

func (r *Resolver) HidePost(ctx context.Context, args postIDArgs) (bool, error) {
	return r.done(ctx, "hidePost", r.svc.Relations.HidePost(ctx, ViewerFrom(ctx), string(args.PostID)))
}

func (r *Resolver) UnhidePost(ctx context.Context, args postIDArgs) (bool, error) {
	return r.done(ctx, "unhidePost", r.svc.Relations.UnhidePost(ctx, ViewerFrom(ctx), string(args.PostID)))
}

func (r *Resolver) RecordPostView(ctx context.Context, args postIDArgs) (*postViewResolver, error) {
	view, err := r.svc.Posting.RecordPostView(ctx, ViewerFrom(ctx), string(args.PostID))
	if err != nil {
		return nil, r.fail(ctx, "recordPostView", err)
	}
	if view == nil {
		return nil, nil
	}
	return &postViewResolver{v: view}, nil
}

func (r *Resolver) SubmitComment(ctx context.Context, args struct {
	PostID          gql.ID
	TextContent     string
	ParentCommentID *gql.ID
}) (*commentResolver, error) {
	in := posting.SubmitCommentArgs{PostID: string(args.PostID), TextContent: args.TextContent}
	if args.ParentCommentID != nil {
		parent := string(*args.ParentCommentID)
		in.ParentCommentID = &parent
	}
	comment, err := r.svc.Posting.SubmitComment(ctx, ViewerFrom(ctx), in)
	if err != nil {
		return nil, r.fail(ctx, "submitComment", err)
	}
	return &commentResolver{r: r, c: comment}, nil
}

type commentIDArgs struct {
	CommentID gql.ID
}

func (r *Resolver) DeleteComment(ctx context.Context, args commentIDArgs) (bool, error) {
	return r.done(ctx, "deleteComment", r.svc.Posting.DeleteComment(ctx, ViewerFrom(ctx), string(args.CommentID)))
}

func (r *Resolver) ToggleCommentEndorsement(ctx context.Context, args commentIDArgs) (bool, error) {
	active, err := r.svc.Endorse.ToggleComment(ctx, ViewerFrom(ctx), string(args.CommentID))
	if err != nil {
		return false, r.fail(ctx, "toggleCommentEndorsement", err)
	}
	return active, nil
}

type userIDArgs struct {
	UserID gql.ID
}

func (r *Resolver) BlockUser(ctx context.Context, args userIDArgs) (bool, error) {
	return r.done(ctx, "blockUser", r.svc.Relations.BlockUser(ctx, ViewerFrom(ctx), string(args.UserID)))
}

func (r *Resolver) UnblockUser(ctx context.Context, args userIDArgs) (bool, error) {
	return r.done(ctx, "unblockUser", r.svc.Relations.UnblockUser(ctx, ViewerFrom(ctx), string(args.UserID)))
}

type topicArgs struct {
	TopicName string
}

func (r *Resolver) FollowTopic(ctx context.Context, args topicArgs) (bool, error) {
	return r.done(ctx, "followTopic", r.svc.Relations.FollowTopic(ctx, ViewerFrom(ctx), args.TopicName))
}

func (r *Resolver) UnfollowTopic(ctx context.Context, args topicArgs) (bool, error) {
	return r.done(ctx, "unfollowTopic", r.svc.Relations.UnfollowTopic(ctx, ViewerFrom(ctx), args.TopicName))
}

func (r *Resolver) HideTopic(ctx context.Context, args topicArgs) (bool, error) {
	return r.done(ctx, "hideTopic", r.svc.Relations.HideTopic(ctx, ViewerFrom(ctx), args.TopicName))
}

func (r *Resolver) UnhideTopic(ctx context.Context, args topicArgs) (bool, error) {
	return r.done(ctx, "unhideTopic", r.svc.Relations.UnhideTopic(ctx, ViewerFrom(ctx), args.TopicName))
}

func (r *Resolver) done(ctx context.Context, op string, err error) (bool, error) {
	if err != nil {
		return false, r.fail(ctx, op, err)
	}
	return true, nil
}

func (r *Resolver) posts(posts []*models.Post) []*postResolver {
	result := make([]*postResolver, len(posts))
	for i, p := range posts {
		result[i] = &postResolver{r: r, p: p}
	}
	return result
}

func intArg(v *int32) int {
	if v == nil {
		return 0
	}
	return int(*v)
}

func sortArg(v string, def models.Sort) (models.Sort, error) {
	if v == "" {
		return def, nil
	}
	s, err := models.ParseSort(v)
	if err != nil {
		return "", apperr.Validation("sort", err.Error())
	}
	return s, nil
}

func timeArg(v string) (models.Time, error) {
	if v == "" {
		return models.TimeAll, nil
	}
	t, err := models.ParseTime(v)
	if err != nil {
		return "", apperr.Validation("time", err.Error())
	}
	return t, nil
}
