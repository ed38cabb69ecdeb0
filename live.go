package blocktree

import (
	"context"

	"github.com/surrealdb/blocktree/pkg/live"
)

// Listen follows the server's change feed and refetches every loaded page it
// reports as changed. url overrides Config.LiveURL. onRefetch, when non-nil,
// is called after each successful refetch. Listen blocks until ctx is done or
// the feed fails.
func (s *Session) Listen(ctx context.Context, url string, onRefetch func(pageID string)) error {
	if url == "" {
		url = s.cfg.LiveURL
	}
	if url == "" {
		return ErrNoLiveURL
	}

	s.log.Info().Str("url", url).Msg("listening for page changes")
	return live.Listen(ctx, url, func(ev live.Event) {
		if ev.Name != live.EventPageChanged || !s.tree.HasPage(ev.PageID) {
			return
		}
		if err := s.FetchBlocksForPage(ctx, ev.PageID); err != nil {
			s.log.Error().Err(err).Str("page", ev.PageID).Msg("refetch after change notification")
			return
		}
		if onRefetch != nil {
			onRefetch(ev.PageID)
		}
	}, live.WithLogger(s.log))
}
