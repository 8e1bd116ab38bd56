package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ButyrinIA/comet/internal/models"
	"github.com/ButyrinIA/comet/internal/ranking"
	"github.com/ButyrinIA/comet/internal/storage"
)

type endorsementKey struct {
	kind      models.SubjectKind
	subjectID string
	userID    string
}

type set map[string]struct{}

// relations хранит отношения пользователя: userID -> множество значений
type relations map[string]set

func (r relations) put(userID, value string, on bool) {
	if !on {
		delete(r[userID], value)
		return
	}
	if r[userID] == nil {
		r[userID] = make(set)
	}
	r[userID][value] = struct{}{}
}

func (r relations) list(userID string) []string {
	out := make([]string, 0, len(r[userID]))
	for v := range r[userID] {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// MemoryStorage - хранилище в памяти процесса. Все записи идут под одной
// блокировкой, поэтому составные операции атомарны так же, как транзакции Postgres.
type MemoryStorage struct {
	mu sync.RWMutex

	users        map[string]*models.User
	posts        map[string]*models.Post
	comments     map[string]*models.Comment
	endorsements map[endorsementKey]*models.Endorsement
	views        map[models.PostViewKey]*models.PostView
	topics       set

	blockedUsers   relations
	hiddenTopics   relations
	followedTopics relations
	hiddenPosts    relations
}

func New() *MemoryStorage {
	s := &MemoryStorage{}
	s.reset()
	return s
}

func (s *MemoryStorage) reset() {
	s.users = make(map[string]*models.User)
	s.posts = make(map[string]*models.Post)
	s.comments = make(map[string]*models.Comment)
	s.endorsements = make(map[endorsementKey]*models.Endorsement)
	s.views = make(map[models.PostViewKey]*models.PostView)
	s.topics = make(set)
	s.blockedUsers = make(relations)
	s.hiddenTopics = make(relations)
	s.followedTopics = make(relations)
	s.hiddenPosts = make(relations)
}

func (s *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	u := *user
	s.users[u.ID] = &u
	return nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.users[id]
	if !exists {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (s *MemoryStorage) GetUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			c := *u
			result = append(result, &c)
		}
	}
	return result, nil
}

func (s *MemoryStorage) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[post.ID]; exists {
		return fmt.Errorf("post %s already exists", post.ID)
	}
	s.posts[post.ID] = clonePost(post)
	for _, t := range post.Topics {
		s.topics[t] = struct{}{}
	}
	return nil
}

func (s *MemoryStorage) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, exists := s.posts[id]
	if !exists {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return clonePost(post), nil
}

func (s *MemoryStorage) GetPosts(ctx context.Context, ids []string) ([]*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			result = append(result, clonePost(p))
		}
	}
	return result, nil
}

func (s *MemoryStorage) ListPosts(ctx context.Context, q storage.PostQuery) ([]*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := q.Filter
	ids := toSet(f.IDs)
	excludeAuthors := toSet(f.ExcludeAuthors)
	excludePosts := toSet(f.ExcludePostIDs)
	anyTopics := toSet(f.AnyTopics)
	noTopics := toSet(f.NoTopics)
	terms := searchTerms(f.Search)

	type scored struct {
		post *models.Post
		cand ranking.Candidate
	}
	var matched []scored
	for _, p := range s.posts {
		switch {
		case len(ids) > 0 && !has(ids, p.ID),
			!f.IncludeDeleted && p.Deleted,
			f.Sticky != nil && p.Sticky != *f.Sticky,
			has(excludeAuthors, p.AuthorID),
			has(excludePosts, p.ID),
			len(anyTopics) > 0 && !intersects(p.Topics, anyTopics),
			intersects(p.Topics, noTopics),
			f.CreatedAfter != nil && !p.CreatedAt.After(*f.CreatedAfter):
			continue
		}

		c := ranking.Candidate{ID: p.ID, CreatedAt: p.CreatedAt, Endorsements: p.EndorsementCount}
		if f.Search != "" {
			c.TitleRank = termRank(p.Title, terms)
			c.TextRank = termRank(deref(p.TextContent), terms)
			c.LinkRank = termRank(deref(p.Link), terms)
			if c.TitleRank+c.TextRank+c.LinkRank == 0 {
				continue
			}
		}
		matched = append(matched, scored{post: p, cand: c})
	}

	ranking.Sort(matched, orderOrNew(q.Order), nowOr(q.Now), func(sc scored) ranking.Candidate { return sc.cand })
	matched = page(matched, q.Skip, q.Take)

	result := make([]*models.Post, len(matched))
	for i, sc := range matched {
		p := clonePost(sc.post)
		if q.ViewerID != "" {
			p.IsEndorsed = s.isEndorsed(models.SubjectPost, p.ID, q.ViewerID)
			if p.IsEndorsed {
				p.PersonalEndorsementCount = 1
			}
		}
		result[i] = p
	}
	return result, nil
}

func (s *MemoryStorage) SoftDeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	p.Deleted = true
	return nil
}

func (s *MemoryStorage) CreateComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[comment.PostID]
	if !ok {
		return fmt.Errorf("post %s: %w", comment.PostID, storage.ErrNotFound)
	}
	if _, exists := s.comments[comment.ID]; exists {
		return fmt.Errorf("comment %s already exists", comment.ID)
	}
	c := *comment
	s.comments[c.ID] = &c
	post.CommentCount++
	return nil
}

func (s *MemoryStorage) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	cc := *c
	return &cc, nil
}

func (s *MemoryStorage) ListComments(ctx context.Context, q storage.CommentQuery) ([]*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	excludeAuthors := toSet(q.Filter.ExcludeAuthors)
	var matched []*models.Comment
	for _, c := range s.comments {
		if c.PostID != q.Filter.PostID || (!q.Filter.IncludeDeleted && c.Deleted) || has(excludeAuthors, c.AuthorID) {
			continue
		}
		matched = append(matched, c)
	}

	ranking.Sort(matched, orderOrNew(q.Order), nowOr(q.Now), func(c *models.Comment) ranking.Candidate {
		return ranking.Candidate{ID: c.ID, CreatedAt: c.CreatedAt, Endorsements: c.EndorsementCount}
	})
	matched = page(matched, q.Skip, q.Take)

	result := make([]*models.Comment, len(matched))
	for i, c := range matched {
		cc := *c
		if q.ViewerID != "" && s.isEndorsed(models.SubjectComment, cc.ID, q.ViewerID) {
			cc.IsEndorsed = true
			cc.PersonalEndorsementCount = 1
		}
		result[i] = &cc
	}
	return result, nil
}

func (s *MemoryStorage) SoftDeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	c.Deleted = true
	return nil
}

func (s *MemoryStorage) BlockedUserIDs(ctx context.Context, userID string) ([]string, error) {
	return s.listRelation(ctx, s.blockedUsers, userID)
}

func (s *MemoryStorage) HiddenTopicNames(ctx context.Context, userID string) ([]string, error) {
	return s.listRelation(ctx, s.hiddenTopics, userID)
}

func (s *MemoryStorage) FollowedTopicNames(ctx context.Context, userID string) ([]string, error) {
	return s.listRelation(ctx, s.followedTopics, userID)
}

func (s *MemoryStorage) HiddenPostIDs(ctx context.Context, userID string) ([]string, error) {
	return s.listRelation(ctx, s.hiddenPosts, userID)
}

func (s *MemoryStorage) listRelation(ctx context.Context, r relations, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return r.list(userID), nil
}

func (s *MemoryStorage) SetPostHidden(ctx context.Context, userID, postID string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok && hidden {
		return fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}
	s.hiddenPosts.put(userID, postID, hidden)
	return nil
}

func (s *MemoryStorage) SetUserBlocked(ctx context.Context, userID, blockedID string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[blockedID]; !ok && blocked {
		return fmt.Errorf("user %s: %w", blockedID, storage.ErrNotFound)
	}
	s.blockedUsers.put(userID, blockedID, blocked)
	return nil
}

func (s *MemoryStorage) SetTopicFollowed(ctx context.Context, userID, topic string, followed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.topics[topic] = struct{}{}
	s.followedTopics.put(userID, topic, followed)
	return nil
}

func (s *MemoryStorage) SetTopicHidden(ctx context.Context, userID, topic string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.topics[topic] = struct{}{}
	s.hiddenTopics.put(userID, topic, hidden)
	return nil
}

func (s *MemoryStorage) ToggleEndorsement(ctx context.Context, kind models.SubjectKind, subjectID, authorID, voterID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var counter *int
	switch kind {
	case models.SubjectPost:
		p, ok := s.posts[subjectID]
		if !ok {
			return false, fmt.Errorf("post %s: %w", subjectID, storage.ErrNotFound)
		}
		counter = &p.EndorsementCount
	case models.SubjectComment:
		c, ok := s.comments[subjectID]
		if !ok {
			return false, fmt.Errorf("comment %s: %w", subjectID, storage.ErrNotFound)
		}
		counter = &c.EndorsementCount
	default:
		return false, fmt.Errorf("unknown subject kind %q", kind)
	}

	key := endorsementKey{kind: kind, subjectID: subjectID, userID: voterID}
	active := true
	if e, ok := s.endorsements[key]; ok {
		active = !e.Active
	}
	delta := -1
	if active {
		delta = 1
	}

	// сначала проверяем оба счетчика, затем применяем
	author := s.users[authorID]
	if *counter+delta < 0 || (author != nil && author.EndorsementCount+delta < 0) {
		return false, fmt.Errorf("%s %s: %w", kind, subjectID, storage.ErrNegativeCounter)
	}

	if e, ok := s.endorsements[key]; ok {
		e.Active = active
	} else {
		s.endorsements[key] = &models.Endorsement{Kind: kind, SubjectID: subjectID, UserID: voterID, Active: true, CreatedAt: time.Now()}
	}
	*counter += delta
	if author != nil {
		author.EndorsementCount += delta
	}
	return active, nil
}

func (s *MemoryStorage) CountActiveEndorsements(ctx context.Context, kind models.SubjectKind, subjectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k, e := range s.endorsements {
		if k.kind == kind && k.subjectID == subjectID && e.Active {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStorage) isEndorsed(kind models.SubjectKind, subjectID, userID string) bool {
	e, ok := s.endorsements[endorsementKey{kind: kind, subjectID: subjectID, userID: userID}]
	return ok && e.Active
}

func (s *MemoryStorage) GetPostViews(ctx context.Context, keys []models.PostViewKey) ([]*models.PostView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.PostView, 0, len(keys))
	for _, k := range keys {
		if v, ok := s.views[k]; ok {
			vv := *v
			result = append(result, &vv)
		}
	}
	return result, nil
}

func (s *MemoryStorage) UpsertPostView(ctx context.Context, view *models.PostView) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := *view
	s.views[v.Key()] = &v
	return nil
}

func (s *MemoryStorage) MarkSubmitted(ctx context.Context, userID string, kind models.SubmissionKind, now time.Time, minInterval time.Duration) (*time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, false, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}

	var last *time.Time
	if prev := u.LastSubmittedAt(kind); prev != nil {
		t := *prev
		last = &t
	}
	if minInterval > 0 && last != nil && now.Sub(*last) < minInterval {
		return last, false, nil
	}

	at := now
	if kind == models.SubmissionComment {
		u.LastCommentedAt = &at
	} else {
		u.LastPostedAt = &at
	}
	return last, true, nil
}

// Close очищает хранилище
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	return nil
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Topics = slices.Clone(p.Topics)
	return &c
}

func toSet(values []string) set {
	if len(values) == 0 {
		return nil
	}
	s := make(set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func has(s set, v string) bool {
	_, ok := s[v]
	return ok
}

func intersects(values []string, s set) bool {
	for _, v := range values {
		if has(s, v) {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func searchTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// termRank - число слов запроса, найденных в поле
func termRank(field string, terms []string) float64 {
	if field == "" {
		return 0
	}
	field = strings.ToLower(field)
	var n float64
	for _, t := range terms {
		if strings.Contains(field, t) {
			n++
		}
	}
	return n
}

func orderOrNew(o ranking.Order) ranking.Order {
	if len(o) == 0 {
		return ranking.ForFeed(models.SortNew)
	}
	return o
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func page[T any](items []T, skip, take int) []T {
	skip = max(skip, 0)
	if skip >= len(items) {
		return nil
	}
	items = items[skip:]
	if take > 0 && take < len(items) {
		items = items[:take]
	}
	return items
}
