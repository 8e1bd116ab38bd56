package graphql

import (
	"context"
	"time"

	"github.com/ButyrinIA/comet/internal/loader"
	"github.com/ButyrinIA/comet/internal/models"
	gql "github.com/graph-gophers/graphql-go"
)

type postResolver struct {
	r *Resolver
	p *models.Post
}

func (p *postResolver) ID() gql.ID            { return gql.ID(p.p.ID) }
func (p *postResolver) Title() string         { return p.p.Title }
func (p *postResolver) Type() string          { return string(p.p.Type) }
func (p *postResolver) Link() *string         { return p.p.Link }
func (p *postResolver) TextContent() *string  { return p.p.TextContent }
func (p *postResolver) CreatedAt() string     { return p.p.CreatedAt.UTC().Format(time.RFC3339) }
func (p *postResolver) ThumbnailURL() *string { return p.p.ThumbnailURL }
func (p *postResolver) Domain() *string       { return p.p.Domain }
func (p *postResolver) Deleted() bool         { return p.p.Deleted }
func (p *postResolver) Sticky() bool          { return p.p.Sticky }
func (p *postResolver) IsEndorsed() bool      { return p.p.IsEndorsed }
func (p *postResolver) IsHidden() bool        { return p.p.IsHidden }

func (p *postResolver) EndorsementCount() int32 { return int32(p.p.EndorsementCount) }
func (p *postResolver) CommentCount() int32     { return int32(p.p.CommentCount) }

// NewCommentCount равен -1, пока зритель не открывал пост
func (p *postResolver) NewCommentCount() int32 {
	if p.p.PostView == nil {
		return -1
	}
	return int32(p.p.NewCommentCount)
}

func (p *postResolver) PersonalEndorsementCount() int32 {
	return int32(p.p.PersonalEndorsementCount)
}

func (p *postResolver) Topics() []*topicResolver {
	result := make([]*topicResolver, len(p.p.Topics))
	for i, name := range p.p.Topics {
		result[i] = &topicResolver{name: name}
	}
	return result
}

// Author берет автора, подгруженного лентой, иначе идет через загрузчик запроса
func (p *postResolver) Author(ctx context.Context) (*userResolver, error) {
	return p.r.author(ctx, p.p.Author, p.p.AuthorID)
}

func (p *postResolver) PostView() *postViewResolver {
	if p.p.PostView == nil {
		return nil
	}
	return &postViewResolver{v: p.p.PostView}
}

type commentResolver struct {
	r *Resolver
	c *models.Comment
}

func (c *commentResolver) ID() gql.ID          { return gql.ID(c.c.ID) }
func (c *commentResolver) PostID() gql.ID      { return gql.ID(c.c.PostID) }
func (c *commentResolver) TextContent() string { return c.c.TextContent }
func (c *commentResolver) CreatedAt() string   { return c.c.CreatedAt.UTC().Format(time.RFC3339) }
func (c *commentResolver) Deleted() bool       { return c.c.Deleted }
func (c *commentResolver) IsEndorsed() bool    { return c.c.IsEndorsed }

func (c *commentResolver) EndorsementCount() int32 { return int32(c.c.EndorsementCount) }

func (c *commentResolver) PersonalEndorsementCount() int32 {
	return int32(c.c.PersonalEndorsementCount)
}

func (c *commentResolver) ParentCommentID() *gql.ID {
	if c.c.ParentCommentID == nil {
		return nil
	}
	id := gql.ID(*c.c.ParentCommentID)
	return &id
}

func (c *commentResolver) Author(ctx context.Context) (*userResolver, error) {
	return c.r.author(ctx, c.c.Author, c.c.AuthorID)
}

// Post загружает пост комментария через загрузчик запроса
func (c *commentResolver) Post(ctx context.Context) (*postResolver, error) {
	if c.c.PostID == "" || c.r.svc.Users == nil {
		return nil, nil
	}
	post, err := loader.For(ctx, c.r.svc.Users).Posts.Load(ctx, c.c.PostID)()
	if err != nil {
		return nil, c.r.fail(ctx, "comment.post", err)
	}
	if post == nil {
		return nil, nil
	}
	return &postResolver{r: c.r, p: post}, nil
}

func (r *Resolver) author(ctx context.Context, known *models.User, authorID string) (*userResolver, error) {
	if known != nil {
		return &userResolver{u: known}, nil
	}
	if r.svc.Users == nil {
		return nil, nil
	}
	u, err := loader.For(ctx, r.svc.Users).Users.Load(ctx, authorID)()
	if err != nil {
		return nil, r.fail(ctx, "author", err)
	}
	if u == nil {
		return nil, nil
	}
	return &userResolver{u: u}, nil
}

type userResolver struct {
	u *models.User
}

func (u *userResolver) ID() gql.ID              { return gql.ID(u.u.ID) }
func (u *userResolver) Username() string        { return u.u.Username }
func (u *userResolver) Admin() bool             { return u.u.Admin }
func (u *userResolver) EndorsementCount() int32 { return int32(u.u.EndorsementCount) }
func (u *userResolver) CreatedAt() string       { return u.u.CreatedAt.UTC().Format(time.RFC3339) }

type topicResolver struct {
	name string
}

func (t *topicResolver) Name() string { return t.name }

type postViewResolver struct {
	v *models.PostView
}

func (v *postViewResolver) CreatedAt() string       { return v.v.CreatedAt.UTC().Format(time.RFC3339) }
func (v *postViewResolver) LastCommentCount() int32 { return int32(v.v.LastCommentCount) }
