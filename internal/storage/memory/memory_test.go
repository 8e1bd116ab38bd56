package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ButyrinIA/comet/internal/models"
	"github.com/ButyrinIA/comet/internal/ranking"
	"github.com/ButyrinIA/comet/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPost(author string, createdAt time.Time, topics ...string) *models.Post {
	text := "Содержимое"
	return &models.Post{
		ID:          uuid.New().String(),
		Title:       "Тестовый пост",
		Type:        models.PostTypeText,
		TextContent: &text,
		AuthorID:    author,
		CreatedAt:   createdAt,
		Topics:      topics,
	}
}

func ids(posts []*models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("CreatePost and GetPost", func(t *testing.T) {
		store := New()
		post := newPost("user1", now, "go")

		err := store.CreatePost(ctx, post)
		assert.NoError(t, err, "Ошибка при создании поста")

		retrieved, err := store.GetPost(ctx, post.ID)
		assert.NoError(t, err, "Ошибка при получении поста")
		assert.Equal(t, post, retrieved, "Полученный пост не совпадает с созданным")

		retrieved.Topics[0] = "changed"
		again, _ := store.GetPost(ctx, post.ID)
		assert.Equal(t, "go", again.Topics[0], "Хранилище должно отдавать копии")
	})

	t.Run("GetPost Not Found", func(t *testing.T) {
		store := New()

		_, err := store.GetPost(ctx, "non-existent-id")
		assert.ErrorIs(t, err, storage.ErrNotFound, "Ожидалась ошибка для несуществующего поста")
	})

	t.Run("ListPosts filters and pages", func(t *testing.T) {
		store := New()
		old := newPost("user1", now.Add(-2*time.Hour), "go")
		fresh := newPost("user2", now.Add(-1*time.Hour), "rust")
		sticky := newPost("user1", now, "go")
		sticky.Sticky = true
		deleted := newPost("user1", now, "go")
		deleted.Deleted = true
		for _, p := range []*models.Post{old, fresh, sticky, deleted} {
			require.NoError(t, store.CreatePost(ctx, p))
		}

		notSticky := false
		q := storage.PostQuery{
			Filter: storage.PostFilter{Sticky: &notSticky},
			Order:  ranking.ForFeed(models.SortNew),
			Take:   1,
		}
		page, err := store.ListPosts(ctx, q)
		assert.NoError(t, err, "Ошибка при получении списка постов")
		assert.Equal(t, []string{fresh.ID}, ids(page), "Ожидался более новый пост")

		q.Skip = 1
		page, err = store.ListPosts(ctx, q)
		assert.NoError(t, err)
		assert.Equal(t, []string{old.ID}, ids(page), "Ожидался более старый пост")

		q.Skip, q.Take = 0, 0
		q.Filter.ExcludeAuthors = []string{"user2"}
		page, _ = store.ListPosts(ctx, q)
		assert.Equal(t, []string{old.ID}, ids(page), "Посты заблокированного автора не должны попадать в выборку")

		q.Filter.ExcludeAuthors = nil
		q.Filter.NoTopics = []string{"go"}
		page, _ = store.ListPosts(ctx, q)
		assert.Equal(t, []string{fresh.ID}, ids(page), "Скрытые темы должны исключаться")

		q.Filter.NoTopics = nil
		q.Filter.AnyTopics = []string{"go"}
		page, _ = store.ListPosts(ctx, q)
		assert.Equal(t, []string{old.ID}, ids(page), "Ожидались только посты подписанных тем")

		cut := now.Add(-90 * time.Minute)
		q.Filter.AnyTopics = nil
		q.Filter.CreatedAfter = &cut
		page, _ = store.ListPosts(ctx, q)
		assert.Equal(t, []string{fresh.ID}, ids(page), "Окно времени не применилось")
	})

	t.Run("ListPosts search", func(t *testing.T) {
		store := New()
		inTitle := newPost("user1", now.Add(-time.Hour))
		inTitle.Title = "Golang generics"
		inText := newPost("user1", now)
		body := "all about golang"
		inText.TextContent = &body
		miss := newPost("user1", now)
		for _, p := range []*models.Post{inTitle, inText, miss} {
			require.NoError(t, store.CreatePost(ctx, p))
		}

		page, err := store.ListPosts(ctx, storage.PostQuery{
			Filter: storage.PostFilter{Search: "golang"},
			Order:  ranking.ForSearch(models.SortNew),
		})
		assert.NoError(t, err)
		assert.Equal(t, []string{inTitle.ID, inText.ID}, ids(page), "Совпадение в заголовке важнее совпадения в тексте")
	})

	t.Run("CreateComment increments commentCount", func(t *testing.T) {
		store := New()
		post := newPost("user1", now)
		require.NoError(t, store.CreatePost(ctx, post))

		comment := &models.Comment{ID: uuid.New().String(), PostID: post.ID, AuthorID: "user1", TextContent: "Тестовый комментарий", CreatedAt: now}
		reply := &models.Comment{ID: uuid.New().String(), PostID: post.ID, ParentCommentID: &comment.ID, AuthorID: "user2", TextContent: "Ответ", CreatedAt: now.Add(time.Minute)}
		assert.NoError(t, store.CreateComment(ctx, comment), "Ошибка при создании комментария")
		assert.NoError(t, store.CreateComment(ctx, reply))

		p, _ := store.GetPost(ctx, post.ID)
		assert.Equal(t, 2, p.CommentCount, "Счетчик комментариев не увеличился")

		comments, err := store.ListComments(ctx, storage.CommentQuery{
			Filter: storage.CommentFilter{PostID: post.ID, ExcludeAuthors: []string{"user1"}},
			Order:  ranking.ForComments(models.SortNew),
		})
		assert.NoError(t, err, "Ошибка при получении комментариев")
		require.Len(t, comments, 1, "Ожидался один комментарий")
		assert.Equal(t, reply.ID, comments[0].ID, "Полученный комментарий не совпадает")

		err = store.CreateComment(ctx, &models.Comment{ID: "x", PostID: "missing"})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ToggleEndorsement parity", func(t *testing.T) {
		store := New()
		require.NoError(t, store.CreateUser(ctx, &models.User{ID: "author"}))
		post := newPost("author", now)
		require.NoError(t, store.CreatePost(ctx, post))

		for i := 1; i <= 5; i++ {
			active, err := store.ToggleEndorsement(ctx, models.SubjectPost, post.ID, "author", "voter")
			require.NoError(t, err)
			assert.Equal(t, i%2 == 1, active, "Голос должен переключаться")
		}

		p, _ := store.GetPost(ctx, post.ID)
		u, _ := store.GetUser(ctx, "author")
		n, _ := store.CountActiveEndorsements(ctx, models.SubjectPost, post.ID)
		assert.Equal(t, 1, p.EndorsementCount)
		assert.Equal(t, 1, u.EndorsementCount)
		assert.Equal(t, n, p.EndorsementCount, "Счетчик расходится с числом активных голосов")

		page, _ := store.ListPosts(ctx, storage.PostQuery{Filter: storage.PostFilter{IDs: []string{post.ID}}, ViewerID: "voter"})
		require.Len(t, page, 1)
		assert.True(t, page[0].IsEndorsed)
		assert.Equal(t, 1, page[0].PersonalEndorsementCount)
	})

	t.Run("ToggleEndorsement rejects negative counter", func(t *testing.T) {
		store := New()
		post := newPost("author", now)
		require.NoError(t, store.CreatePost(ctx, post))
		_, err := store.ToggleEndorsement(ctx, models.SubjectPost, post.ID, "author", "voter")
		require.NoError(t, err)

		// счетчик испорчен извне
		store.posts[post.ID].EndorsementCount = 0
		_, err = store.ToggleEndorsement(ctx, models.SubjectPost, post.ID, "author", "voter")
		assert.ErrorIs(t, err, storage.ErrNegativeCounter)
		n, _ := store.CountActiveEndorsements(ctx, models.SubjectPost, post.ID)
		assert.Equal(t, 1, n, "Голос не должен измениться после отката")
	})

	t.Run("ToggleEndorsement concurrent", func(t *testing.T) {
		store := New()
		post := newPost("author", now)
		require.NoError(t, store.CreatePost(ctx, post))

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(voter string) {
				defer wg.Done()
				_, _ = store.ToggleEndorsement(ctx, models.SubjectPost, post.ID, "author", voter)
			}(uuid.New().String())
		}
		wg.Wait()

		p, _ := store.GetPost(ctx, post.ID)
		assert.Equal(t, 50, p.EndorsementCount)
	})

	t.Run("Relations", func(t *testing.T) {
		store := New()
		require.NoError(t, store.CreateUser(ctx, &models.User{ID: "u2"}))
		post := newPost("u2", now)
		require.NoError(t, store.CreatePost(ctx, post))

		assert.NoError(t, store.SetUserBlocked(ctx, "u1", "u2", true))
		assert.NoError(t, store.SetTopicFollowed(ctx, "u1", "go", true))
		assert.NoError(t, store.SetTopicHidden(ctx, "u1", "php", true))
		assert.NoError(t, store.SetPostHidden(ctx, "u1", post.ID, true))

		blocked, _ := store.BlockedUserIDs(ctx, "u1")
		followed, _ := store.FollowedTopicNames(ctx, "u1")
		hiddenTopics, _ := store.HiddenTopicNames(ctx, "u1")
		hiddenPosts, _ := store.HiddenPostIDs(ctx, "u1")
		assert.Equal(t, []string{"u2"}, blocked)
		assert.Equal(t, []string{"go"}, followed)
		assert.Equal(t, []string{"php"}, hiddenTopics)
		assert.Equal(t, []string{post.ID}, hiddenPosts)

		assert.NoError(t, store.SetPostHidden(ctx, "u1", post.ID, false))
		hiddenPosts, _ = store.HiddenPostIDs(ctx, "u1")
		assert.Empty(t, hiddenPosts)

		assert.ErrorIs(t, store.SetPostHidden(ctx, "u1", "missing", true), storage.ErrNotFound)
	})

	t.Run("MarkSubmitted", func(t *testing.T) {
		store := New()
		require.NoError(t, store.CreateUser(ctx, &models.User{ID: "u1"}))

		last, ok, err := store.MarkSubmitted(ctx, "u1", models.SubmissionComment, now, 15*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Nil(t, last)

		last, ok, _ = store.MarkSubmitted(ctx, "u1", models.SubmissionComment, now.Add(5*time.Second), 15*time.Second)
		assert.False(t, ok, "Повторная отправка раньше интервала должна отклоняться")
		require.NotNil(t, last)
		assert.True(t, last.Equal(now))

		_, ok, _ = store.MarkSubmitted(ctx, "u1", models.SubmissionPost, now.Add(5*time.Second), 3*time.Minute)
		assert.True(t, ok, "Интервалы постов и комментариев независимы")

		_, ok, _ = store.MarkSubmitted(ctx, "u1", models.SubmissionComment, now.Add(16*time.Second), 15*time.Second)
		assert.True(t, ok)
	})

	t.Run("PostViews", func(t *testing.T) {
		store := New()
		v := &models.PostView{PostID: "p1", UserID: "u1", CreatedAt: now, LastCommentCount: 3}
		require.NoError(t, store.UpsertPostView(ctx, v))
		v.LastCommentCount = 5
		require.NoError(t, store.UpsertPostView(ctx, v))

		views, err := store.GetPostViews(ctx, []models.PostViewKey{{PostID: "p1", UserID: "u1"}, {PostID: "p2", UserID: "u1"}})
		assert.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, 5, views[0].LastCommentCount)
	})

	t.Run("Close", func(t *testing.T) {
		store := New()
		post := newPost("user1", now)
		assert.NoError(t, store.CreatePost(ctx, post))

		err := store.Close()
		assert.NoError(t, err, "Ошибка при закрытии хранилища")

		_, err = store.GetPost(ctx, post.ID)
		assert.Error(t, err, "Ожидалась ошибка после очистки хранилища")
	})
}
