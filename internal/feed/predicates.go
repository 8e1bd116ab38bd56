package feed

import (
	"time"

	"github.com/ButyrinIA/comet/internal/models"
	"github.com/ButyrinIA/comet/internal/personalize"
	"github.com/ButyrinIA/comet/internal/ranking"
	"github.com/ButyrinIA/comet/internal/storage"
)

// Функции ниже чистые: по контексту зрителя и аргументам собирают предикат
// выборки. Второй результат false означает, что выборка заведомо пуста.

func excludeForViewer(f storage.PostFilter, vc personalize.ViewerContext) storage.PostFilter {
	f.ExcludeAuthors = vc.BlockedAuthorIDs.Slice()
	f.NoTopics = vc.HiddenTopicNames.Slice()
	f.ExcludePostIDs = vc.HiddenPostIDs.Slice()
	return f
}

func homeFilter(vc personalize.ViewerContext, args FeedArgs, now time.Time) (storage.PostFilter, bool) {
	notSticky := false
	f := storage.PostFilter{Sticky: &notSticky}

	if args.Filter == models.FilterFollowing {
		if len(vc.FollowedTopicNames) == 0 {
			return f, false
		}
		f.AnyTopics = vc.FollowedTopicNames.Slice()
	}
	if cut, ok := ranking.WindowFor(args.Sort, args.Time, now); ok {
		f.CreatedAfter = &cut
	}
	return excludeForViewer(f, vc), true
}

func searchFilter(vc personalize.ViewerContext, args SearchArgs, now time.Time) storage.PostFilter {
	f := storage.PostFilter{Search: args.Query}
	if cut, ok := ranking.WindowFor(args.Sort, args.Time, now); ok {
		f.CreatedAfter = &cut
	}
	return excludeForViewer(f, vc)
}

func stickyFilter(vc personalize.ViewerContext) storage.PostFilter {
	sticky := true
	return excludeForViewer(storage.PostFilter{Sticky: &sticky}, vc)
}

func hiddenFilter(vc personalize.ViewerContext) (storage.PostFilter, bool) {
	if vc.Anonymous() || len(vc.HiddenPostIDs) == 0 {
		return storage.PostFilter{}, false
	}
	return storage.PostFilter{IDs: vc.HiddenPostIDs.Slice()}, true
}

func commentFilter(vc personalize.ViewerContext, postID string) storage.CommentFilter {
	return storage.CommentFilter{
		PostID:         postID,
		ExcludeAuthors: vc.BlockedAuthorIDs.Slice(),
	}
}
