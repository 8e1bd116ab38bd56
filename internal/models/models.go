package models

import "time"

type PostType string

const (
	PostTypeLink PostType = "LINK"
	PostTypeText PostType = "TEXT"
)

type Post struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Type             PostType  `json:"type"`
	Link             *string   `json:"link"`
	TextContent      *string   `json:"textContent"`
	AuthorID         string    `json:"authorId"`
	CreatedAt        time.Time `json:"createdAt"`
	Topics           []string  `json:"topics"`
	EndorsementCount int       `json:"endorsementCount"`
	CommentCount     int       `json:"commentCount"`
	ThumbnailURL     *string   `json:"thumbnailUrl"`
	Domain           *string   `json:"domain"`
	Deleted          bool      `json:"deleted"`
	Sticky           bool      `json:"sticky"`

	// Поля ниже зависят от зрителя и не хранятся.
	PersonalEndorsementCount int       `json:"personalEndorsementCount"`
	IsEndorsed               bool      `json:"isEndorsed"`
	IsHidden                 bool      `json:"isHidden"`
	NewCommentCount          int       `json:"newCommentCount"`
	Author                   *User     `json:"-"`
	PostView                 *PostView `json:"-"`
}

type Comment struct {
	ID               string    `json:"id"`
	PostID           string    `json:"postId"`
	ParentCommentID  *string   `json:"parentCommentId"`
	AuthorID         string    `json:"authorId"`
	TextContent      string    `json:"textContent"`
	CreatedAt        time.Time `json:"createdAt"`
	EndorsementCount int       `json:"endorsementCount"`
	Deleted          bool      `json:"deleted"`

	PersonalEndorsementCount int   `json:"personalEndorsementCount"`
	IsEndorsed               bool  `json:"isEndorsed"`
	Author                   *User `json:"-"`
}

// SubjectKind - тип объекта, за который голосуют
type SubjectKind string

const (
	SubjectPost    SubjectKind = "post"
	SubjectComment SubjectKind = "comment"
)

// Endorsement - голос пользователя; одна строка на пару (объект, пользователь)
type Endorsement struct {
	Kind      SubjectKind `json:"kind"`
	SubjectID string      `json:"subjectId"`
	UserID    string      `json:"userId"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"createdAt"`
}

type PostViewKey struct {
	PostID string
	UserID string
}

type PostView struct {
	PostID           string    `json:"postId"`
	UserID           string    `json:"userId"`
	CreatedAt        time.Time `json:"createdAt"`
	LastCommentCount int       `json:"lastCommentCount"`
}

func (v *PostView) Key() PostViewKey {
	return PostViewKey{PostID: v.PostID, UserID: v.UserID}
}

type Topic struct {
	Name string `json:"name"`
}

type User struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Admin            bool       `json:"admin"`
	EndorsementCount int        `json:"endorsementCount"`
	LastPostedAt     *time.Time `json:"lastPostedAt"`
	LastCommentedAt  *time.Time `json:"lastCommentedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// SubmissionKind различает ограничения частоты для постов и комментариев
type SubmissionKind string

const (
	SubmissionPost    SubmissionKind = "post"
	SubmissionComment SubmissionKind = "comment"
)

// LastSubmittedAt возвращает время последней отправки указанного вида
func (u *User) LastSubmittedAt(kind SubmissionKind) *time.Time {
	if kind == SubmissionComment {
		return u.LastCommentedAt
	}
	return u.LastPostedAt
}
