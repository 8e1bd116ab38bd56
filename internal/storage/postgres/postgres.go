package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ButyrinIA/comet/internal/models"
	"github.com/ButyrinIA/comet/internal/ranking"
	"github.com/ButyrinIA/comet/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	postColumns = `id, title, type, link, text_content, author_id, created_at, topics,
		endorsement_count, comment_count, thumbnail_url, domain, deleted, sticky`
	commentColumns = `id, post_id, parent_comment_id, author_id, text_content, created_at,
		endorsement_count, deleted`
	userColumns = `id, username, admin, endorsement_count, last_posted_at, last_commented_at, created_at`

	fkViolation = "23503"
)

var rankColumns = map[ranking.Key]string{
	ranking.KeyTitleRank: "title_rank",
	ranking.KeyTextRank:  "text_rank",
	ranking.KeyLinkRank:  "link_rank",
}

type PostgresStorage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func (s *PostgresStorage) CreateUser(ctx context.Context, user *models.User) error {
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, admin, endorsement_count, last_posted_at, last_commented_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Username, user.Admin, user.EndorsementCount, user.LastPostedAt, user.LastCommentedAt, createdAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return u, err
}

func (s *PostgresStorage) GetUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStorage) CreatePost(ctx context.Context, post *models.Post) error {
	topics := post.Topics
	if topics == nil {
		topics = []string{}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO posts (id, title, type, link, text_content, author_id, created_at, topics,
				endorsement_count, comment_count, thumbnail_url, domain, deleted, sticky)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			post.ID, post.Title, string(post.Type), post.Link, post.TextContent, post.AuthorID, post.CreatedAt, topics,
			post.EndorsementCount, post.CommentCount, post.ThumbnailURL, post.Domain, post.Deleted, post.Sticky)
		if err != nil {
			return fmt.Errorf("failed to insert post: %w", err)
		}
		if len(topics) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `INSERT INTO topics (name) SELECT unnest($1::text[]) ON CONFLICT DO NOTHING`, topics); err != nil {
			return fmt.Errorf("failed to insert topics: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO post_topics (post_id, topic_name) SELECT $1, unnest($2::text[])`, post.ID, topics); err != nil {
			return fmt.Errorf("failed to link post topics: %w", err)
		}
		return nil
	})
}

func (s *PostgresStorage) GetPost(ctx context.Context, id string) (*models.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return p, err
}

func (s *PostgresStorage) GetPosts(ctx context.Context, ids []string) ([]*models.Post, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *PostgresStorage) ListPosts(ctx context.Context, q storage.PostQuery) ([]*models.Post, error) {
	sql, args := buildPostQuery(q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var (
			p                    models.Post
			postType             string
			titleR, textR, linkR float64
		)
		if err := rows.Scan(&p.ID, &p.Title, &postType, &p.Link, &p.TextContent, &p.AuthorID, &p.CreatedAt, &p.Topics,
			&p.EndorsementCount, &p.CommentCount, &p.ThumbnailURL, &p.Domain, &p.Deleted, &p.Sticky,
			&p.IsEndorsed, &titleR, &textR, &linkR); err != nil {
			return nil, err
		}
		p.Type = models.PostType(postType)
		if p.IsEndorsed {
			p.PersonalEndorsementCount = 1
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

// buildPostQuery переводит предикат и порядок ранжирования в SQL
func buildPostQuery(q storage.PostQuery) (string, []any) {
	b := &builder{}
	f := q.Filter

	endorsed := "FALSE"
	if q.ViewerID != "" {
		endorsed = `EXISTS (SELECT 1 FROM endorsements e
			WHERE e.kind = 'post' AND e.subject_id = posts.id AND e.user_id = ` + b.arg(q.ViewerID) + ` AND e.active)`
	}

	ranks := "0::float8, 0::float8, 0::float8"
	if f.Search != "" {
		tsq := "websearch_to_tsquery('simple', " + b.arg(f.Search) + ")"
		title := "to_tsvector('simple', title)"
		text := "to_tsvector('simple', coalesce(text_content, ''))"
		link := "to_tsvector('simple', coalesce(link, ''))"
		ranks = fmt.Sprintf("ts_rank_cd(%s, %s) AS title_rank, ts_rank_cd(%s, %s) AS text_rank, ts_rank_cd(%s, %s) AS link_rank",
			title, tsq, text, tsq, link, tsq)
		b.where(fmt.Sprintf("(%s @@ %s OR %s @@ %s OR %s @@ %s)", title, tsq, text, tsq, link, tsq))
	}

	if len(f.IDs) > 0 {
		b.where("id = ANY(" + b.arg(f.IDs) + ")")
	}
	if !f.IncludeDeleted {
		b.where("NOT deleted")
	}
	if f.Sticky != nil {
		b.where("sticky = " + b.arg(*f.Sticky))
	}
	if len(f.ExcludeAuthors) > 0 {
		b.where("NOT (author_id = ANY(" + b.arg(f.ExcludeAuthors) + "))")
	}
	if len(f.ExcludePostIDs) > 0 {
		b.where("NOT (id = ANY(" + b.arg(f.ExcludePostIDs) + "))")
	}
	if len(f.AnyTopics) > 0 {
		b.where("topics && " + b.arg(f.AnyTopics) + "::text[]")
	}
	if len(f.NoTopics) > 0 {
		b.where("NOT (topics && " + b.arg(f.NoTopics) + "::text[])")
	}
	if f.CreatedAfter != nil {
		b.where("created_at > " + b.arg(*f.CreatedAfter))
	}

	sql := "SELECT " + postColumns + ", " + endorsed + ", " + ranks + " FROM posts" + b.whereClause()
	sql += orderBy(q.Order, b, q.Now, f.Search != "")
	sql += b.page(q.Skip, q.Take)
	return sql, b.args
}

func (s *PostgresStorage) SoftDeletePost(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE posts SET deleted = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) CreateComment(ctx context.Context, comment *models.Comment) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE posts SET comment_count = comment_count + 1 WHERE id = $1`, comment.PostID)
		if err != nil {
			return fmt.Errorf("failed to update comment count: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("post %s: %w", comment.PostID, storage.ErrNotFound)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO comments (id, post_id, parent_comment_id, author_id, text_content, created_at, endorsement_count, deleted)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			comment.ID, comment.PostID, comment.ParentCommentID, comment.AuthorID, comment.TextContent, comment.CreatedAt,
			comment.EndorsementCount, comment.Deleted)
		if err != nil {
			return fmt.Errorf("failed to insert comment: %w", err)
		}
		return nil
	})
}

func (s *PostgresStorage) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	err := s.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id).
		Scan(&c.ID, &c.PostID, &c.ParentCommentID, &c.AuthorID, &c.TextContent, &c.CreatedAt, &c.EndorsementCount, &c.Deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStorage) ListComments(ctx context.Context, q storage.CommentQuery) ([]*models.Comment, error) {
	b := &builder{}
	endorsed := "FALSE"
	if q.ViewerID != "" {
		endorsed = `EXISTS (SELECT 1 FROM endorsements e
			WHERE e.kind = 'comment' AND e.subject_id = comments.id AND e.user_id = ` + b.arg(q.ViewerID) + ` AND e.active)`
	}
	b.where("post_id = " + b.arg(q.Filter.PostID))
	if !q.Filter.IncludeDeleted {
		b.where("NOT deleted")
	}
	if len(q.Filter.ExcludeAuthors) > 0 {
		b.where("NOT (author_id = ANY(" + b.arg(q.Filter.ExcludeAuthors) + "))")
	}
	sql := "SELECT " + commentColumns + ", " + endorsed + " FROM comments" + b.whereClause() +
		orderBy(q.Order, b, q.Now, false) + b.page(q.Skip, q.Take)

	rows, err := s.pool.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.ParentCommentID, &c.AuthorID, &c.TextContent, &c.CreatedAt,
			&c.EndorsementCount, &c.Deleted, &c.IsEndorsed); err != nil {
			return nil, err
		}
		if c.IsEndorsed {
			c.PersonalEndorsementCount = 1
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

func (s *PostgresStorage) SoftDeleteComment(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE comments SET deleted = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) BlockedUserIDs(ctx context.Context, userID string) ([]string, error) {
	return s.listStrings(ctx, `SELECT blocked_id FROM user_blocks WHERE user_id = $1 ORDER BY blocked_id`, userID)
}

func (s *PostgresStorage) HiddenTopicNames(ctx context.Context, userID string) ([]string, error) {
	return s.listStrings(ctx, `SELECT topic_name FROM user_hidden_topics WHERE user_id = $1 ORDER BY topic_name`, userID)
}

func (s *PostgresStorage) FollowedTopicNames(ctx context.Context, userID string) ([]string, error) {
	return s.listStrings(ctx, `SELECT topic_name FROM user_followed_topics WHERE user_id = $1 ORDER BY topic_name`, userID)
}

func (s *PostgresStorage) HiddenPostIDs(ctx context.Context, userID string) ([]string, error) {
	return s.listStrings(ctx, `SELECT post_id FROM user_hidden_posts WHERE user_id = $1 ORDER BY post_id`, userID)
}

func (s *PostgresStorage) listStrings(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *PostgresStorage) SetPostHidden(ctx context.Context, userID, postID string, hidden bool) error {
	if !hidden {
		_, err := s.pool.Exec(ctx, `DELETE FROM user_hidden_posts WHERE user_id = $1 AND post_id = $2`, userID, postID)
		return err
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO user_hidden_posts (user_id, post_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, postID)
	if isFKViolation(err) {
		return fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}
	return err
}

func (s *PostgresStorage) SetUserBlocked(ctx context.Context, userID, blockedID string, blocked bool) error {
	if !blocked {
		_, err := s.pool.Exec(ctx, `DELETE FROM user_blocks WHERE user_id = $1 AND blocked_id = $2`, userID, blockedID)
		return err
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO user_blocks (user_id, blocked_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, blockedID)
	if isFKViolation(err) {
		return fmt.Errorf("user %s: %w", blockedID, storage.ErrNotFound)
	}
	return err
}

func (s *PostgresStorage) SetTopicFollowed(ctx context.Context, userID, topic string, followed bool) error {
	return s.setTopicRelation(ctx, "user_followed_topics", userID, topic, followed)
}

func (s *PostgresStorage) SetTopicHidden(ctx context.Context, userID, topic string, hidden bool) error {
	return s.setTopicRelation(ctx, "user_hidden_topics", userID, topic, hidden)
}

// table - одна из констант выше, не пользовательский ввод
func (s *PostgresStorage) setTopicRelation(ctx context.Context, table, userID, topic string, on bool) error {
	if !on {
		_, err := s.pool.Exec(ctx, `DELETE FROM `+table+` WHERE user_id = $1 AND topic_name = $2`, userID, topic)
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO topics (name) VALUES ($1) ON CONFLICT DO NOTHING`, topic); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO `+table+` (user_id, topic_name) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, topic)
		return err
	})
}

func (s *PostgresStorage) ToggleEndorsement(ctx context.Context, kind models.SubjectKind, subjectID, authorID, voterID string) (bool, error) {
	var table string
	switch kind {
	case models.SubjectPost:
		table = "posts"
	case models.SubjectComment:
		table = "comments"
	default:
		return false, fmt.Errorf("unknown subject kind %q", kind)
	}

	var active bool
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO endorsements (kind, subject_id, user_id, active, created_at)
			VALUES ($1, $2, $3, TRUE, now())
			ON CONFLICT (kind, subject_id, user_id) DO UPDATE SET active = NOT endorsements.active
			RETURNING active`,
			string(kind), subjectID, voterID).Scan(&active)
		if err != nil {
			return fmt.Errorf("failed to flip endorsement: %w", err)
		}

		delta := -1
		if active {
			delta = 1
		}

		var count int
		err = tx.QueryRow(ctx, `UPDATE `+table+` SET endorsement_count = endorsement_count + $1 WHERE id = $2 RETURNING endorsement_count`,
			delta, subjectID).Scan(&count)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s %s: %w", kind, subjectID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to update %s counter: %w", kind, err)
		}
		if count < 0 {
			return fmt.Errorf("%s %s: %w", kind, subjectID, storage.ErrNegativeCounter)
		}

		err = tx.QueryRow(ctx, `UPDATE users SET endorsement_count = endorsement_count + $1 WHERE id = $2 RETURNING endorsement_count`,
			delta, authorID).Scan(&count)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// автор без строки в users: счетчик пользователя не ведется
		case err != nil:
			return fmt.Errorf("failed to update author counter: %w", err)
		case count < 0:
			return fmt.Errorf("user %s: %w", authorID, storage.ErrNegativeCounter)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return active, nil
}

func (s *PostgresStorage) CountActiveEndorsements(ctx context.Context, kind models.SubjectKind, subjectID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM endorsements WHERE kind = $1 AND subject_id = $2 AND active`,
		string(kind), subjectID).Scan(&n)
	return n, err
}

func (s *PostgresStorage) GetPostViews(ctx context.Context, keys []models.PostViewKey) ([]*models.PostView, error) {
	postIDs := make([]string, len(keys))
	userIDs := make([]string, len(keys))
	for i, k := range keys {
		postIDs[i], userIDs[i] = k.PostID, k.UserID
	}

	rows, err := s.pool.Query(ctx, `
		SELECT v.post_id, v.user_id, v.created_at, v.last_comment_count
		FROM post_views v
		JOIN unnest($1::text[], $2::text[]) AS k(post_id, user_id)
			ON v.post_id = k.post_id AND v.user_id = k.user_id`, postIDs, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load post views: %w", err)
	}
	defer rows.Close()

	var views []*models.PostView
	for rows.Next() {
		var v models.PostView
		if err := rows.Scan(&v.PostID, &v.UserID, &v.CreatedAt, &v.LastCommentCount); err != nil {
			return nil, err
		}
		views = append(views, &v)
	}
	return views, rows.Err()
}

func (s *PostgresStorage) UpsertPostView(ctx context.Context, view *models.PostView) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO post_views (post_id, user_id, created_at, last_comment_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (post_id, user_id) DO UPDATE
			SET created_at = EXCLUDED.created_at, last_comment_count = EXCLUDED.last_comment_count`,
		view.PostID, view.UserID, view.CreatedAt, view.LastCommentCount)
	return err
}

func (s *PostgresStorage) MarkSubmitted(ctx context.Context, userID string, kind models.SubmissionKind, now time.Time, minInterval time.Duration) (*time.Time, bool, error) {
	column := "last_posted_at"
	if kind == models.SubmissionComment {
		column = "last_commented_at"
	}

	var (
		last    *time.Time
		claimed bool
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT `+column+` FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&last)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if minInterval > 0 && last != nil && now.Sub(*last) < minInterval {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET `+column+` = $1 WHERE id = $2`, now, userID); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return last, claimed, nil
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

// builder собирает WHERE и нумерует параметры
type builder struct {
	conds []string
	args  []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) where(cond string) {
	b.conds = append(b.conds, cond)
}

func (b *builder) whereClause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func (b *builder) page(skip, take int) string {
	var sb strings.Builder
	if take > 0 {
		sb.WriteString(" LIMIT " + b.arg(take))
	}
	if skip > 0 {
		sb.WriteString(" OFFSET " + b.arg(skip))
	}
	return sb.String()
}

// orderBy переводит ranking.Order в ORDER BY с теми же ключами, что и ranking.Compare
func orderBy(o ranking.Order, b *builder, now time.Time, search bool) string {
	if len(o) == 0 {
		o = ranking.ForFeed(models.SortNew)
	}
	if now.IsZero() {
		now = time.Now()
	}

	parts := make([]string, 0, len(o))
	for _, k := range o {
		switch k {
		case ranking.KeyCreatedAt:
			parts = append(parts, "created_at DESC")
		case ranking.KeyID:
			parts = append(parts, "id DESC")
		case ranking.KeyEndorsements:
			parts = append(parts, "endorsement_count DESC")
		case ranking.KeyHot:
			parts = append(parts, fmt.Sprintf(
				"CAST(endorsement_count AS float8) / power(greatest(%s::float8 - floor(extract(epoch FROM created_at)) + %d, 1) / %g, 1.0 / 3.0) DESC",
				b.arg(float64(now.Unix())), ranking.HotOffsetSeconds, ranking.HotDivisor))
		case ranking.KeyTitleRank, ranking.KeyTextRank, ranking.KeyLinkRank:
			if search {
				parts = append(parts, rankColumns[k]+" DESC")
			}
		}
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func scanPost(row pgx.Row) (*models.Post, error) {
	var (
		p        models.Post
		postType string
	)
	err := row.Scan(&p.ID, &p.Title, &postType, &p.Link, &p.TextContent, &p.AuthorID, &p.CreatedAt, &p.Topics,
		&p.EndorsementCount, &p.CommentCount, &p.ThumbnailURL, &p.Domain, &p.Deleted, &p.Sticky)
	if err != nil {
		return nil, err
	}
	p.Type = models.PostType(postType)
	return &p, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Admin, &u.EndorsementCount, &u.LastPostedAt, &u.LastCommentedAt, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isFKViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == fkViolation
}
