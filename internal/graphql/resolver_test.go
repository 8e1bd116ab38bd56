package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ButyrinIA/comet/internal/apperr"
	"github.com/ButyrinIA/comet/internal/feed"
	"github.com/ButyrinIA/comet/internal/models"
	"github.com/ButyrinIA/comet/internal/posting"
	"github.com/ButyrinIA/comet/internal/storage"
	gql "github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// мок для интерфейса FeedService
type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) HomeFeed(ctx context.Context, viewerID string, args feed.FeedArgs) ([]*models.Post, error) {
	a := m.Called(ctx, viewerID, args)
	posts, _ := a.Get(0).([]*models.Post)
	return posts, a.Error(1)
}

func (m *mockFeed) SearchPosts(ctx context.Context, viewerID string, args feed.SearchArgs) ([]*models.Post, error) {
	a := m.Called(ctx, viewerID, args)
	posts, _ := a.Get(0).([]*models.Post)
	return posts, a.Error(1)
}

func (m *mockFeed) GlobalStickies(ctx context.Context, viewerID string) ([]*models.Post, error) {
	a := m.Called(ctx, viewerID)
	posts, _ := a.Get(0).([]*models.Post)
	return posts, a.Error(1)
}

func (m *mockFeed) HiddenPosts(ctx context.Context, viewerID string) ([]*models.Post, error) {
	a := m.Called(ctx, viewerID)
	posts, _ := a.Get(0).([]*models.Post)
	return posts, a.Error(1)
}

func (m *mockFeed) Post(ctx context.Context, viewerID, postID string) (*models.Post, error) {
	a := m.Called(ctx, viewerID, postID)
	post, _ := a.Get(0).(*models.Post)
	return post, a.Error(1)
}

func (m *mockFeed) PostComments(ctx context.Context, viewerID, postID string, sort models.Sort) ([]*models.Comment, error) {
	a := m.Called(ctx, viewerID, postID, sort)
	comments, _ := a.Get(0).([]*models.Comment)
	return comments, a.Error(1)
}

// мок для интерфейса PostingService
type mockPosting struct {
	mock.Mock
}

func (m *mockPosting) SubmitPost(ctx context.Context, viewerID string, args posting.SubmitPostArgs) (*models.Post, error) {
	a := m.Called(ctx, viewerID, args)
	post, _ := a.Get(0).(*models.Post)
	return post, a.Error(1)
}

func (m *mockPosting) SubmitComment(ctx context.Context, viewerID string, args posting.SubmitCommentArgs) (*models.Comment, error) {
	a := m.Called(ctx, viewerID, args)
	comment, _ := a.Get(0).(*models.Comment)
	return comment, a.Error(1)
}

func (m *mockPosting) DeletePost(ctx context.Context, viewerID, postID string) error {
	return m.Called(ctx, viewerID, postID).Error(0)
}

func (m *mockPosting) DeleteComment(ctx context.Context, viewerID, commentID string) error {
	return m.Called(ctx, viewerID, commentID).Error(0)
}

func (m *mockPosting) RecordPostView(ctx context.Context, viewerID, postID string) (*models.PostView, error) {
	a := m.Called(ctx, viewerID, postID)
	view, _ := a.Get(0).(*models.PostView)
	return view, a.Error(1)
}

// мок для интерфейса EndorseService
type mockEndorse struct {
	mock.Mock
}

func (m *mockEndorse) TogglePost(ctx context.Context, viewerID, postID string) (bool, error) {
	a := m.Called(ctx, viewerID, postID)
	return a.Bool(0), a.Error(1)
}

func (m *mockEndorse) ToggleComment(ctx context.Context, viewerID, commentID string) (bool, error) {
	a := m.Called(ctx, viewerID, commentID)
	return a.Bool(0), a.Error(1)
}

// мок для интерфейса RelationService
type mockRelations struct {
	mock.Mock
}

func (m *mockRelations) HidePost(ctx context.Context, viewerID, postID string) error {
	return m.Called(ctx, viewerID, postID).Error(0)
}

func (m *mockRelations) UnhidePost(ctx context.Context, viewerID, postID string) error {
	return m.Called(ctx, viewerID, postID).Error(0)
}

func (m *mockRelations) BlockUser(ctx context.Context, viewerID, userID string) error {
	return m.Called(ctx, viewerID, userID).Error(0)
}

func (m *mockRelations) UnblockUser(ctx context.Context, viewerID, userID string) error {
	return m.Called(ctx, viewerID, userID).Error(0)
}

func (m *mockRelations) FollowTopic(ctx context.Context, viewerID, topic string) error {
	return m.Called(ctx, viewerID, topic).Error(0)
}

func (m *mockRelations) UnfollowTopic(ctx context.Context, viewerID, topic string) error {
	return m.Called(ctx, viewerID, topic).Error(0)
}

func (m *mockRelations) HideTopic(ctx context.Context, viewerID, topic string) error {
	return m.Called(ctx, viewerID, topic).Error(0)
}

func (m *mockRelations) UnhideTopic(ctx context.Context, viewerID, topic string) error {
	return m.Called(ctx, viewerID, topic).Error(0)
}

// мок для интерфейса TitleService
type mockTitles struct {
	mock.Mock
}

func (m *mockTitles) Title(ctx context.Context, link string) string {
	return m.Called(ctx, link).String(0)
}

// мок для интерфейса UserStore
type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	a := m.Called(ctx, id)
	u, _ := a.Get(0).(*models.User)
	return u, a.Error(1)
}

func (m *mockUsers) GetUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	a := m.Called(ctx, ids)
	users, _ := a.Get(0).([]*models.User)
	return users, a.Error(1)
}

func (m *mockUsers) GetPosts(ctx context.Context, ids []string) ([]*models.Post, error) {
	a := m.Called(ctx, ids)
	posts, _ := a.Get(0).([]*models.Post)
	return posts, a.Error(1)
}

func (m *mockUsers) GetPostViews(ctx context.Context, keys []models.PostViewKey) ([]*models.PostView, error) {
	a := m.Called(ctx, keys)
	views, _ := a.Get(0).([]*models.PostView)
	return views, a.Error(1)
}

type fixture struct {
	feed      *mockFeed
	posting   *mockPosting
	endorse   *mockEndorse
	relations *mockRelations
	titles    *mockTitles
	users     *mockUsers
	schema    *gql.Schema
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		feed:      &mockFeed{},
		posting:   &mockPosting{},
		endorse:   &mockEndorse{},
		relations: &mockRelations{},
		titles:    &mockTitles{},
		users:     &mockUsers{},
	}
	schema, err := NewSchema(NewResolver(Services{
		Feed:      f.feed,
		Posting:   f.posting,
		Endorse:   f.endorse,
		Relations: f.relations,
		Titles:    f.titles,
		Users:     f.users,
	}, nil))
	require.NoError(t, err, "Схема должна соответствовать резолверу")
	f.schema = schema
	return f
}

func (f *fixture) exec(t *testing.T, ctx context.Context, query string) (map[string]interface{}, *gql.Response) {
	t.Helper()
	resp := f.schema.Exec(ctx, query, "", nil)
	var data map[string]interface{}
	if len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, &data))
	}
	return data, resp
}

var createdAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSchemaSDL(t *testing.T) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: Schema})
	require.NoError(t, err)

	operations := []string{
		`{ homeFeed(sort: TOP, time: DAY, filter: FOLLOWING) { id title author { username } topics { name } newCommentCount } }`,
		`{ searchPosts(search: "go") { id } globalStickies { id } hiddenPosts { id } }`,
		`{ post(postId: "p1") { id postView { lastCommentCount } } postComments(postId: "p1", sort: NEW) { id parentCommentId post { title } } }`,
		`{ getTitleAtUrl(url: "https://example.com") }`,
		`{ currentUser { id endorsementCount } user(userId: "u1") { username } }`,
		`mutation { submitPost(title: "t", type: LINK, link: "https://example.com", topics: ["go"]) { id domain thumbnailUrl } }`,
		`mutation { togglePostEndorsement(postId: "p1") toggleCommentEndorsement(commentId: "c1") }`,
		`mutation { hidePost(postId: "p1") unhidePost(postId: "p1") blockUser(userId: "u") followTopic(topicName: "go") }`,
		`mutation { submitComment(postId: "p1", textContent: "hi", parentCommentId: "c1") { id } recordPostView(postId: "p1") { createdAt lastCommentCount } }`,
	}
	for _, op := range operations {
		_, errs := gqlparser.LoadQuery(schema, op)
		assert.Empty(t, errs, op)
	}

	_, errs := gqlparser.LoadQuery(schema, `{ homeFeed(sort: RANDOM) { id } }`)
	assert.NotEmpty(t, errs, "Неизвестное значение enum должно отклоняться")
}

func TestSchemaBindsWithoutServices(t *testing.T) {
	_, err := NewSchema(NewResolver(Services{}, nil))
	require.NoError(t, err, "Аргументы со значением по умолчанию должны связываться с резолвером")
}

func TestHomeFeed(t *testing.T) {
	f := newFixture(t)
	ctx := WithViewer(context.Background(), "viewer")

	link := "https://example.com/a"
	posts := []*models.Post{{
		ID:               "post1",
		Title:            "Тестовый пост",
		Type:             models.PostTypeLink,
		Link:             &link,
		AuthorID:         "alice",
		Author:           &models.User{ID: "alice", Username: "alice"},
		CreatedAt:        createdAt,
		Topics:           []string{"go"},
		EndorsementCount: 3,
		NewCommentCount:  -1,
		IsEndorsed:       true,
	}}
	f.feed.On("HomeFeed", mock.Anything, "viewer", feed.FeedArgs{
		Page: 1, Sort: models.SortTop, Time: models.TimeDay, Filter: models.FilterFollowing,
	}).Return(posts, nil)

	data, resp := f.exec(t, ctx, `{ homeFeed(page: 1, sort: TOP, time: DAY, filter: FOLLOWING) {
		id title type link createdAt endorsementCount newCommentCount isEndorsed
		author { id username } topics { name }
	} }`)
	require.Empty(t, resp.Errors)

	feedItems := data["homeFeed"].([]interface{})
	require.Len(t, feedItems, 1)
	post := feedItems[0].(map[string]interface{})
	assert.Equal(t, "post1", post["id"])
	assert.Equal(t, "LINK", post["type"])
	assert.Equal(t, "2025-06-01T12:00:00Z", post["createdAt"])
	assert.Equal(t, float64(3), post["endorsementCount"])
	assert.Equal(t, float64(-1), post["newCommentCount"])
	assert.Equal(t, true, post["isEndorsed"])
	assert.Equal(t, "alice", post["author"].(map[string]interface{})["username"])
	assert.Equal(t, "go", post["topics"].([]interface{})[0].(map[string]interface{})["name"])
	f.feed.AssertExpectations(t)
	f.users.AssertNotCalled(t, "GetUsers", mock.Anything, mock.Anything)
}

func TestHomeFeedDefaults(t *testing.T) {
	f := newFixture(t)
	f.feed.On("HomeFeed", mock.Anything, "", feed.FeedArgs{
		Sort: models.SortHot, Time: models.TimeAll, Filter: models.FilterAll,
	}).Return([]*models.Post{}, nil)

	data, resp := f.exec(t, context.Background(), `{ homeFeed { id } }`)
	require.Empty(t, resp.Errors)
	assert.Empty(t, data["homeFeed"])
	f.feed.AssertExpectations(t)
}

func TestErrorExtensions(t *testing.T) {
	f := newFixture(t)
	f.feed.On("HomeFeed", mock.Anything, "", mock.Anything).
		Return(nil, apperr.Validation("page", "page must not be negative"))

	_, resp := f.exec(t, context.Background(), `{ homeFeed(page: -1) { id } }`)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "VALIDATION_ERROR", resp.Errors[0].Extensions["code"])
	assert.Equal(t, "page", resp.Errors[0].Extensions["field"])

	t.Run("ограничение частоты", func(t *testing.T) {
		f.posting.On("SubmitPost", mock.Anything, "alice", mock.Anything).
			Return(nil, apperr.RateLimited("", 90*time.Second))

		_, resp := f.exec(t, WithViewer(context.Background(), "alice"),
			`mutation { submitPost(title: "t", type: TEXT) { id } }`)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "RATE_LIMITED", resp.Errors[0].Extensions["code"])
		assert.Equal(t, 90, resp.Errors[0].Extensions["retryAfterSeconds"])
	})
}

func TestPostAuthorThroughLoader(t *testing.T) {
	f := newFixture(t)
	f.feed.On("Post", mock.Anything, "", "post1").
		Return(&models.Post{ID: "post1", Title: "t", Type: models.PostTypeText, AuthorID: "bob", CreatedAt: createdAt}, nil)
	f.users.On("GetUsers", mock.Anything, []string{"bob"}).
		Return([]*models.User{{ID: "bob", Username: "bob"}}, nil).Once()

	data, resp := f.exec(t, context.Background(), `{ post(postId: "post1") { id author { username } postView { lastCommentCount } } }`)
	require.Empty(t, resp.Errors)
	post := data["post"].(map[string]interface{})
	assert.Equal(t, "bob", post["author"].(map[string]interface{})["username"])
	assert.Nil(t, post["postView"])
	f.users.AssertExpectations(t)
}

func TestMissingPostIsNull(t *testing.T) {
	f := newFixture(t)
	f.feed.On("Post", mock.Anything, "", "missing").Return(nil, nil)

	data, resp := f.exec(t, context.Background(), `{ post(postId: "missing") { id } }`)
	require.Empty(t, resp.Errors)
	assert.Nil(t, data["post"])
}

func TestPostComments(t *testing.T) {
	f := newFixture(t)
	parent := "c1"
	f.feed.On("PostComments", mock.Anything, "viewer", "post1", models.SortNew).Return([]*models.Comment{
		{ID: "c2", PostID: "post1", ParentCommentID: &parent, TextContent: "Ответ", CreatedAt: createdAt,
			Author: &models.User{ID: "bob", Username: "bob"}},
	}, nil)

	data, resp := f.exec(t, WithViewer(context.Background(), "viewer"),
		`{ postComments(postId: "post1", sort: NEW) { id postId parentCommentId textContent author { username } } }`)
	require.Empty(t, resp.Errors)
	comment := data["postComments"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "c1", comment["parentCommentId"])
	assert.Equal(t, "Ответ", comment["textContent"])
	f.feed.AssertExpectations(t)
}

func TestCommentPostThroughLoader(t *testing.T) {
	f := newFixture(t)
	f.feed.On("PostComments", mock.Anything, "viewer", "post1", models.SortTop).Return([]*models.Comment{
		{ID: "c1", PostID: "post1", TextContent: "Первый", CreatedAt: createdAt, Author: &models.User{ID: "bob", Username: "bob"}},
		{ID: "c2", PostID: "post1", TextContent: "Второй", CreatedAt: createdAt, Author: &models.User{ID: "bob", Username: "bob"}},
	}, nil)
	f.users.On("GetPosts", mock.Anything, []string{"post1"}).
		Return([]*models.Post{{ID: "post1", Title: "Обсуждение", Type: models.PostTypeText, AuthorID: "alice", CreatedAt: createdAt, CommentCount: 2}}, nil).Once()

	data, resp := f.exec(t, WithViewer(context.Background(), "viewer"),
		`{ postComments(postId: "post1") { id post { id title commentCount newCommentCount } } }`)
	require.Empty(t, resp.Errors)
	comments := data["postComments"].([]interface{})
	require.Len(t, comments, 2)
	for _, c := range comments {
		post := c.(map[string]interface{})["post"].(map[string]interface{})
		assert.Equal(t, "Обсуждение", post["title"])
		assert.Equal(t, float64(2), post["commentCount"])
		assert.Equal(t, float64(-1), post["newCommentCount"], "Пост без просмотра")
	}
	f.users.AssertExpectations(t)
}

func TestGetTitleAtURL(t *testing.T) {
	f := newFixture(t)
	f.titles.On("Title", mock.Anything, "https://example.com/a").Return("Пример")
	f.titles.On("Title", mock.Anything, "https://example.com/down").Return("")

	data, resp := f.exec(t, context.Background(), `{
		ok: getTitleAtUrl(url: "https://example.com/a")
		down: getTitleAtUrl(url: "https://example.com/down")
	}`)
	require.Empty(t, resp.Errors)
	assert.Equal(t, "Пример", data["ok"])
	assert.Equal(t, "", data["down"], "При сбое возвращается пустая строка")
	f.titles.AssertExpectations(t)
}

func TestUsers(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetUser", mock.Anything, "alice").Return(&models.User{ID: "alice", Username: "alice", EndorsementCount: 7, CreatedAt: createdAt}, nil)
	f.users.On("GetUser", mock.Anything, "ghost").Return(nil, storage.ErrNotFound)

	data, resp := f.exec(t, context.Background(), `{ currentUser { id } user(userId: "ghost") { id } }`)
	require.Empty(t, resp.Errors)
	assert.Nil(t, data["currentUser"], "Аноним не имеет текущего пользователя")
	assert.Nil(t, data["user"])

	data, resp = f.exec(t, WithViewer(context.Background(), "alice"), `{ currentUser { username endorsementCount } }`)
	require.Empty(t, resp.Errors)
	assert.Equal(t, float64(7), data["currentUser"].(map[string]interface{})["endorsementCount"])
}

func TestMutations(t *testing.T) {
	f := newFixture(t)
	ctx := WithViewer(context.Background(), "alice")

	t.Run("submitPost", func(t *testing.T) {
		link := "https://www.example.com/a"
		f.posting.On("SubmitPost", mock.Anything, "alice", posting.SubmitPostArgs{
			Title: "Новый пост", Type: models.PostTypeLink, Link: &link, Topics: []string{"Go", "news"},
		}).Return(&models.Post{ID: "p9", Title: "Новый пост", Type: models.PostTypeLink, AuthorID: "alice",
			Author: &models.User{ID: "alice", Username: "alice"}, CreatedAt: createdAt}, nil)

		data, resp := f.exec(t, ctx, `mutation { submitPost(title: "Новый пост", type: LINK, link: "https://www.example.com/a", topics: ["Go", "news"]) { id title newCommentCount } }`)
		require.Empty(t, resp.Errors)
		post := data["submitPost"].(map[string]interface{})
		assert.Equal(t, "p9", post["id"])
		assert.Equal(t, float64(-1), post["newCommentCount"], "Свежий пост еще никто не открывал")
	})

	t.Run("голоса", func(t *testing.T) {
		f.endorse.On("TogglePost", mock.Anything, "alice", "p1").Return(true, nil)
		f.endorse.On("ToggleComment", mock.Anything, "alice", "c1").Return(false, nil)

		data, resp := f.exec(t, ctx, `mutation { togglePostEndorsement(postId: "p1") toggleCommentEndorsement(commentId: "c1") }`)
		require.Empty(t, resp.Errors)
		assert.Equal(t, true, data["togglePostEndorsement"])
		assert.Equal(t, false, data["toggleCommentEndorsement"])
	})

	t.Run("фильтры", func(t *testing.T) {
		f.relations.On("HidePost", mock.Anything, "alice", "p1").Return(nil)
		f.relations.On("BlockUser", mock.Anything, "alice", "bob").Return(nil)
		f.relations.On("FollowTopic", mock.Anything, "alice", "Go Lang").Return(nil)
		f.relations.On("UnhideTopic", mock.Anything, "alice", "news").Return(nil)

		data, resp := f.exec(t, ctx, `mutation {
			hidePost(postId: "p1")
			blockUser(userId: "bob")
			followTopic(topicName: "Go Lang")
			unhideTopic(topicName: "news")
		}`)
		require.Empty(t, resp.Errors)
		for _, field := range []string{"hidePost", "blockUser", "followTopic", "unhideTopic"} {
			assert.Equal(t, true, data[field], field)
		}
		f.relations.AssertExpectations(t)
	})

	t.Run("комментарий", func(t *testing.T) {
		parent := "c1"
		f.posting.On("SubmitComment", mock.Anything, "alice", posting.SubmitCommentArgs{
			PostID: "p1", TextContent: "Тестовый комментарий", ParentCommentID: &parent,
		}).Return(&models.Comment{ID: "c5", PostID: "p1", TextContent: "Тестовый комментарий", AuthorID: "alice", CreatedAt: createdAt}, nil)
		f.posting.On("RecordPostView", mock.Anything, "alice", "p1").
			Return(&models.PostView{PostID: "p1", UserID: "alice", CreatedAt: createdAt, LastCommentCount: 4}, nil)

		data, resp := f.exec(t, ctx, `mutation {
			submitComment(postId: "p1", textContent: "Тестовый комментарий", parentCommentId: "c1") { id postId }
			recordPostView(postId: "p1") { createdAt lastCommentCount }
		}`)
		require.Empty(t, resp.Errors)
		assert.Equal(t, "c5", data["submitComment"].(map[string]interface{})["id"])
		view := data["recordPostView"].(map[string]interface{})
		assert.Equal(t, "2025-06-01T12:00:00Z", view["createdAt"])
		assert.Equal(t, float64(4), view["lastCommentCount"])
	})

	t.Run("просмотр анонима", func(t *testing.T) {
		f.posting.On("RecordPostView", mock.Anything, "", "p1").Return(nil, nil)

		data, resp := f.exec(t, context.Background(), `mutation { recordPostView(postId: "p1") { lastCommentCount } }`)
		require.Empty(t, resp.Errors)
		assert.Nil(t, data["recordPostView"])
	})

	t.Run("удаление чужого поста", func(t *testing.T) {
		f.posting.On("DeletePost", mock.Anything, "alice", "p2").Return(apperr.Forbidden("only the author can delete this post"))

		_, resp := f.exec(t, ctx, `mutation { deletePost(postId: "p2") }`)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "FORBIDDEN", resp.Errors[0].Extensions["code"])
	})

	t.Run("внутренняя ошибка", func(t *testing.T) {
		f.posting.On("DeleteComment", mock.Anything, "alice", "c9").Return(errors.New("ошибка хранилища"))

		_, resp := f.exec(t, ctx, `mutation { deleteComment(commentId: "c9") }`)
		require.Len(t, resp.Errors, 1)
		assert.Contains(t, resp.Errors[0].Message, "ошибка хранилища")
	})
}

func TestViewerContext(t *testing.T) {
	assert.Equal(t, "", ViewerFrom(context.Background()))
	assert.Equal(t, "alice", ViewerFrom(WithViewer(context.Background(), "alice")))
}
