// Package ranking задает порядок выдачи постов и комментариев.
//
// Порядок описывается списком ключей, каждый сравнивается по убыванию.
// Один и тот же список исполняется в памяти (Compare) и переводится в
// ORDER BY хранилищем Postgres, поэтому обе реализации сортируют одинаково.
package ranking

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/ButyrinIA/comet/internal/models"
)

type Key int

const (
	KeyCreatedAt Key = iota
	KeyID
	KeyHot
	KeyEndorsements
	KeyTitleRank
	KeyTextRank
	KeyLinkRank
)

func (k Key) String() string {
	switch k {
	case KeyCreatedAt:
		return "createdAt"
	case KeyID:
		return "id"
	case KeyHot:
		return "hot"
	case KeyEndorsements:
		return "endorsements"
	case KeyTitleRank:
		return "titleRank"
	case KeyTextRank:
		return "textRank"
	case KeyLinkRank:
		return "linkRank"
	}
	return "unknown"
}

// Order - ключи сортировки, все по убыванию
type Order []Key

// Константы hot-ранга подобраны эмпирически, менять нельзя.
const (
	HotOffsetSeconds = 100000
	HotDivisor       = 6.0
	HotExponent      = 1.0 / 3.0
)

// HotScore = endorsements / ((now - createdAt + 100000) / 6) ^ (1/3), в секундах эпохи
func HotScore(endorsements int, createdAt, now time.Time) float64 {
	age := float64(now.Unix() - createdAt.Unix() + HotOffsetSeconds)
	if age < 1 {
		// пост "из будущего" дальше смещения
		age = 1
	}
	return float64(endorsements) / math.Pow(age/HotDivisor, HotExponent)
}

// ForFeed - порядок домашней ленты
func ForFeed(sort models.Sort) Order {
	switch sort {
	case models.SortNew:
		return Order{KeyCreatedAt, KeyID}
	case models.SortTop:
		return Order{KeyEndorsements, KeyCreatedAt, KeyID}
	default:
		return Order{KeyHot, KeyCreatedAt, KeyID}
	}
}

// ForSearch - релевантность заголовка, текста и ссылки, затем (для TOP) голоса
func ForSearch(sort models.Sort) Order {
	o := Order{KeyTitleRank, KeyTextRank, KeyLinkRank}
	if sort == models.SortTop {
		o = append(o, KeyEndorsements)
	}
	return append(o, KeyCreatedAt, KeyID)
}

func ForComments(sort models.Sort) Order {
	if sort == models.SortTop {
		return Order{KeyEndorsements, KeyCreatedAt, KeyID}
	}
	return Order{KeyCreatedAt, KeyID}
}

// Cutoff возвращает нижнюю границу createdAt для окна TOP.
// Месяц и год считаются календарно, как INTERVAL в Postgres.
func Cutoff(window models.Time, now time.Time) (time.Time, bool) {
	switch window {
	case models.TimeHour:
		return now.Add(-time.Hour), true
	case models.TimeDay:
		return now.Add(-24 * time.Hour), true
	case models.TimeWeek:
		return now.Add(-7 * 24 * time.Hour), true
	case models.TimeMonth:
		return now.AddDate(0, -1, 0), true
	case models.TimeYear:
		return now.AddDate(-1, 0, 0), true
	}
	return time.Time{}, false
}

// WindowFor применяет окно только к сортировке TOP
func WindowFor(sort models.Sort, window models.Time, now time.Time) (time.Time, bool) {
	if sort != models.SortTop {
		return time.Time{}, false
	}
	return Cutoff(window, now)
}

// Candidate - то, что нужно ранжированию от поста или комментария
type Candidate struct {
	ID           string
	CreatedAt    time.Time
	Endorsements int
	TitleRank    float64
	TextRank     float64
	LinkRank     float64
}

// Compare возвращает отрицательное число, если a должен идти раньше b
func Compare(o Order, a, b Candidate, now time.Time) int {
	for _, k := range o {
		var c int
		switch k {
		case KeyCreatedAt:
			c = b.CreatedAt.Compare(a.CreatedAt)
		case KeyID:
			c = strings.Compare(b.ID, a.ID)
		case KeyHot:
			c = compareFloat(HotScore(b.Endorsements, b.CreatedAt, now), HotScore(a.Endorsements, a.CreatedAt, now))
		case KeyEndorsements:
			c = b.Endorsements - a.Endorsements
		case KeyTitleRank:
			c = compareFloat(b.TitleRank, a.TitleRank)
		case KeyTextRank:
			c = compareFloat(b.TextRank, a.TextRank)
		case KeyLinkRank:
			c = compareFloat(b.LinkRank, a.LinkRank)
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// Sort упорядочивает items по o, candidate извлекает ключи из элемента
func Sort[T any](items []T, o Order, now time.Time, candidate func(T) Candidate) {
	slices.SortStableFunc(items, func(a, b T) int {
		return Compare(o, candidate(a), candidate(b), now)
	})
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
