package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ButyrinIA/comet/internal/models"
	"github.com/ButyrinIA/comet/internal/ranking"
)

// ErrNotFound возвращается, когда запись с указанным ключом отсутствует
var ErrNotFound = errors.New("not found")

// ErrNegativeCounter - счетчик голосов ушел бы ниже нуля, транзакция отменена
var ErrNegativeCounter = errors.New("endorsement counter would become negative")

// PostFilter - предикат выборки постов. Пустые срезы не ограничивают выборку.
type PostFilter struct {
	IDs            []string
	IncludeDeleted bool
	Sticky         *bool
	ExcludeAuthors []string
	ExcludePostIDs []string
	// AnyTopics: у поста есть хотя бы одна из тем
	AnyTopics []string
	// NoTopics: у поста нет ни одной из тем
	NoTopics     []string
	CreatedAfter *time.Time
	// Search включает ранги релевантности и оставляет только совпавшие посты
	Search string
}

type PostQuery struct {
	Filter PostFilter
	Order  ranking.Order
	Skip   int
	// Take == 0 - без ограничения
	Take int
	// ViewerID заполняет IsEndorsed и PersonalEndorsementCount
	ViewerID string
	Now      time.Time
}

type CommentFilter struct {
	PostID         string
	IncludeDeleted bool
	ExcludeAuthors []string
}

type CommentQuery struct {
	Filter   CommentFilter
	Order    ranking.Order
	Skip     int
	Take     int
	ViewerID string
	Now      time.Time
}

type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	// GetUsers возвращает найденных пользователей в произвольном порядке
	GetUsers(ctx context.Context, ids []string) ([]*models.User, error)

	// CreatePost пишет пост, его темы и массив тем в одной транзакции
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)
	GetPosts(ctx context.Context, ids []string) ([]*models.Post, error)
	ListPosts(ctx context.Context, q PostQuery) ([]*models.Post, error)
	SoftDeletePost(ctx context.Context, id string) error

	// CreateComment увеличивает commentCount поста в той же транзакции
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	ListComments(ctx context.Context, q CommentQuery) ([]*models.Comment, error)
	SoftDeleteComment(ctx context.Context, id string) error

	BlockedUserIDs(ctx context.Context, userID string) ([]string, error)
	HiddenTopicNames(ctx context.Context, userID string) ([]string, error)
	FollowedTopicNames(ctx context.Context, userID string) ([]string, error)
	HiddenPostIDs(ctx context.Context, userID string) ([]string, error)

	SetPostHidden(ctx context.Context, userID, postID string, hidden bool) error
	SetUserBlocked(ctx context.Context, userID, blockedID string, blocked bool) error
	SetTopicFollowed(ctx context.Context, userID, topic string, followed bool) error
	SetTopicHidden(ctx context.Context, userID, topic string, hidden bool) error

	// ToggleEndorsement переключает голос и счетчики объекта и автора атомарно.
	// Возвращает новое состояние голоса.
	ToggleEndorsement(ctx context.Context, kind models.SubjectKind, subjectID, authorID, voterID string) (bool, error)
	CountActiveEndorsements(ctx context.Context, kind models.SubjectKind, subjectID string) (int, error)

	GetPostViews(ctx context.Context, keys []models.PostViewKey) ([]*models.PostView, error)
	UpsertPostView(ctx context.Context, view *models.PostView) error

	// MarkSubmitted атомарно проверяет интервал с последней отправки и, если он
	// выдержан (или minInterval == 0), записывает now. Возвращает предыдущее
	// время отправки и признак успеха.
	MarkSubmitted(ctx context.Context, userID string, kind models.SubmissionKind, now time.Time, minInterval time.Duration) (*time.Time, bool, error)

	Close() error
}
