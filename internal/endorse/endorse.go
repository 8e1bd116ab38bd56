// Package endorse переключает голоса за посты и комментарии.
//
// Строка голоса и оба счетчика (объекта и автора) меняются одной операцией
// хранилища; пересчет по строкам голосов выполняется только в Verify.
package endorse

import (
	"context"
	"errors"
	"strconv"

	"github.com/ButyrinIA/comet/internal/apperr"
	"github.com/ButyrinIA/comet/internal/logger"
	"github.com/ButyrinIA/comet/internal/metrics"
	"github.com/ButyrinIA/comet/internal/models"
	"github.com/ButyrinIA/comet/internal/storage"
	"go.uber.org/zap"
)

type Store interface {
	GetPost(ctx context.Context, id string) (*models.Post, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	ToggleEndorsement(ctx context.Context, kind models.SubjectKind, subjectID, authorID, voterID string) (bool, error)
	CountActiveEndorsements(ctx context.Context, kind models.SubjectKind, subjectID string) (int, error)
}

type Engine struct {
	store Store
	log   *zap.Logger
}

func NewEngine(store Store, log *zap.Logger) *Engine {
	return &Engine{store: store, log: logger.OrDefault(log)}
}

// TogglePost переключает голос зрителя за пост и возвращает новое состояние
func (e *Engine) TogglePost(ctx context.Context, viewerID, postID string) (bool, error) {
	if viewerID == "" {
		return false, apperr.Unauthorized("login required")
	}
	post, err := e.store.GetPost(ctx, postID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && post.Deleted) {
		return false, apperr.Validation("postId", "invalid post id")
	}
	if err != nil {
		return false, err
	}
	if post.AuthorID == viewerID {
		return false, apperr.Validation("postId", "cannot endorse your own post")
	}
	return e.toggle(ctx, models.SubjectPost, postID, post.AuthorID, viewerID)
}

func (e *Engine) ToggleComment(ctx context.Context, viewerID, commentID string) (bool, error) {
	if viewerID == "" {
		return false, apperr.Unauthorized("login required")
	}
	comment, err := e.store.GetComment(ctx, commentID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && comment.Deleted) {
		return false, apperr.Validation("commentId", "invalid comment id")
	}
	if err != nil {
		return false, err
	}
	if comment.AuthorID == viewerID {
		return false, apperr.Validation("commentId", "cannot endorse your own comment")
	}
	return e.toggle(ctx, models.SubjectComment, commentID, comment.AuthorID, viewerID)
}

func (e *Engine) toggle(ctx context.Context, kind models.SubjectKind, subjectID, authorID, viewerID string) (bool, error) {
	active, err := e.store.ToggleEndorsement(ctx, kind, subjectID, authorID, viewerID)
	if errors.Is(err, storage.ErrNegativeCounter) {
		e.log.Error("endorsement counter drift",
			zap.String("subject", string(kind)), zap.String("subject_id", subjectID), logger.WithUserID(viewerID))
		ce := apperr.Consistency("endorsement counter would become negative")
		ce.Err = err
		return false, ce
	}
	if err != nil {
		return false, err
	}

	metrics.EndorsementToggles.WithLabelValues(string(kind), strconv.FormatBool(active)).Inc()
	e.log.Debug("endorsement toggled",
		zap.String("subject", string(kind)), zap.String("subject_id", subjectID),
		logger.WithUserID(viewerID), zap.Bool("active", active))
	return active, nil
}

// Audit сравнивает денормализованный счетчик с числом активных голосов
type Audit struct {
	Kind      models.SubjectKind
	SubjectID string
	Stored    int
	Active    int
}

func (a Audit) Consistent() bool {
	return a.Stored == a.Active
}

// Verify - путь аудита: пересчитывает активные голоса и сравнивает со счетчиком
func (e *Engine) Verify(ctx context.Context, kind models.SubjectKind, subjectID string) (Audit, error) {
	a := Audit{Kind: kind, SubjectID: subjectID}
	switch kind {
	case models.SubjectPost:
		p, err := e.store.GetPost(ctx, subjectID)
		if err != nil {
			return a, err
		}
		a.Stored = p.EndorsementCount
	case models.SubjectComment:
		c, err := e.store.GetComment(ctx, subjectID)
		if err != nil {
			return a, err
		}
		a.Stored = c.EndorsementCount
	default:
		return a, apperr.Validation("kind", "unknown subject kind")
	}

	n, err := e.store.CountActiveEndorsements(ctx, kind, subjectID)
	if err != nil {
		return a, err
	}
	a.Active = n
	if !a.Consistent() {
		e.log.Warn("endorsement counter mismatch",
			zap.String("subject", string(kind)), zap.String("subject_id", subjectID),
			zap.Int("stored", a.Stored), zap.Int("active", a.Active))
	}
	return a, nil
}
