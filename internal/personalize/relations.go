package personalize

import (
	"context"
	"errors"

	"github.com/ButyrinIA/comet/internal/apperr"
	"github.com/ButyrinIA/comet/internal/logger"
	"github.com/ButyrinIA/comet/internal/models"
	"github.com/ButyrinIA/comet/internal/storage"
	"go.uber.org/zap"
)

type RelationStore interface {
	SetPostHidden(ctx context.Context, userID, postID string, hidden bool) error
	SetUserBlocked(ctx context.Context, userID, blockedID string, blocked bool) error
	SetTopicFollowed(ctx context.Context, userID, topic string, followed bool) error
	SetTopicHidden(ctx context.Context, userID, topic string, hidden bool) error
}

// Relations изменяет отношения зрителя: скрытые посты и темы, подписки, блокировки
type Relations struct {
	store RelationStore
	log   *zap.Logger
}

func NewRelations(store RelationStore, log *zap.Logger) *Relations {
	return &Relations{store: store, log: logger.OrDefault(log)}
}

func (r *Relations) HidePost(ctx context.Context, viewerID, postID string) error {
	return r.setPostHidden(ctx, viewerID, postID, true)
}

func (r *Relations) UnhidePost(ctx context.Context, viewerID, postID string) error {
	return r.setPostHidden(ctx, viewerID, postID, false)
}

func (r *Relations) setPostHidden(ctx context.Context, viewerID, postID string, hidden bool) error {
	if viewerID == "" {
		return apperr.Unauthorized("login required")
	}
	err := r.store.SetPostHidden(ctx, viewerID, postID, hidden)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Validation("postId", "invalid post id")
	}
	if err != nil {
		return err
	}
	r.log.Debug("post visibility changed", logger.WithUserID(viewerID), logger.WithPostID(postID), zap.Bool("hidden", hidden))
	return nil
}

func (r *Relations) BlockUser(ctx context.Context, viewerID, userID string) error {
	if viewerID == userID && viewerID != "" {
		return apperr.Validation("userId", "cannot block yourself")
	}
	return r.setUserBlocked(ctx, viewerID, userID, true)
}

func (r *Relations) UnblockUser(ctx context.Context, viewerID, userID string) error {
	return r.setUserBlocked(ctx, viewerID, userID, false)
}

func (r *Relations) setUserBlocked(ctx context.Context, viewerID, userID string, blocked bool) error {
	if viewerID == "" {
		return apperr.Unauthorized("login required")
	}
	err := r.store.SetUserBlocked(ctx, viewerID, userID, blocked)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Validation("userId", "invalid user id")
	}
	return err
}

func (r *Relations) FollowTopic(ctx context.Context, viewerID, topic string) error {
	return r.setTopic(ctx, viewerID, topic, r.store.SetTopicFollowed, true)
}

func (r *Relations) UnfollowTopic(ctx context.Context, viewerID, topic string) error {
	return r.setTopic(ctx, viewerID, topic, r.store.SetTopicFollowed, false)
}

func (r *Relations) HideTopic(ctx context.Context, viewerID, topic string) error {
	return r.setTopic(ctx, viewerID, topic, r.store.SetTopicHidden, true)
}

func (r *Relations) UnhideTopic(ctx context.Context, viewerID, topic string) error {
	return r.setTopic(ctx, viewerID, topic, r.store.SetTopicHidden, false)
}

func (r *Relations) setTopic(ctx context.Context, viewerID, topic string,
	set func(ctx context.Context, userID, topic string, on bool) error, on bool) error {
	if viewerID == "" {
		return apperr.Unauthorized("login required")
	}
	name := models.NormalizeTopic(topic)
	if name == "" {
		return apperr.Validation("topic", "topic name is required")
	}
	return set(ctx, viewerID, name, on)
}
