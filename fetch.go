package blocktree

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/blocktree/pkg/client"
	"github.com/surrealdb/blocktree/pkg/epoch"
	"github.com/surrealdb/blocktree/pkg/models"
	"github.com/surrealdb/blocktree/pkg/position"
	"github.com/surrealdb/blocktree/pkg/store"
)

// FetchBlocksForPage loads a page from the server and replaces its indices
// wholesale. Every call takes a new fetch token for the page; a response whose
// token has been superseded by a later call is dropped without effect or error.
//
// A page the server returns empty gets one default block, created on the
// server before it is shown.
func (s *Session) FetchBlocksForPage(ctx context.Context, pageID string) error {
	token := s.fetches.Next(pageID)
	start := time.Now()

	blocks, err := s.loadPage(ctx, pageID, token)
	if err != nil {
		s.metrics.ObserveFetch("error", time.Since(start).Seconds())
		if !s.fetches.IsCurrent(token) {
			s.discardStale("fetch", pageID, token)
			return nil
		}
		return &NetworkError{Op: "fetch", Err: err}
	}
	if blocks == nil {
		s.metrics.ObserveFetch("stale", time.Since(start).Seconds())
		s.discardStale("fetch", pageID, token)
		return nil
	}

	var repaired []string
	applied := false
	err = s.tree.Update(func(m *store.Mutator) error {
		if !s.fetches.IsCurrent(token) {
			return nil
		}
		repaired = m.ReplacePage(pageID, blocks)
		applied = true
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		s.metrics.ObserveFetch("stale", time.Since(start).Seconds())
		s.discardStale("fetch", pageID, token)
		return nil
	}

	s.metrics.ObserveFetch("applied", time.Since(start).Seconds())
	if len(repaired) > 0 {
		s.log.Warn().Str("page", pageID).Strs("blocks", repaired).Msg("attached blocks with missing or cyclic parents to the page root")
	}
	s.log.Debug().Str("page", pageID).Int("blocks", len(blocks)).Uint64("token", token.Generation).Msg("page loaded")
	return nil
}

// loadPage returns the normalized blocks of a page. A nil slice with a nil
// error means the token went stale before a default block was created.
func (s *Session) loadPage(ctx context.Context, pageID string, token epoch.Token) ([]models.Block, error) {
	raws, err := s.client.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	blocks, err := client.NormalizeAll(raws, pageID)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		return blocks, nil
	}

	if !s.fetches.IsCurrent(token) {
		return nil, nil
	}
	b, err := s.createDefaultBlock(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("create default block: %w", err)
	}
	return []models.Block{b}, nil
}

func (s *Session) createDefaultBlock(ctx context.Context, pageID string) (models.Block, error) {
	req, err := client.NewCreateBlockRequest(models.Block{
		PageID:   pageID,
		Kind:     models.DefaultKind,
		Type:     s.cfg.DefaultBlockType,
		Content:  models.NewContent(s.cfg.DefaultBlockType),
		Position: position.Between("", ""),
	})
	if err != nil {
		return models.Block{}, err
	}

	raw, err := s.client.CreateBlock(ctx, pageID, req)
	if err != nil {
		return models.Block{}, err
	}
	s.log.Info().Str("page", pageID).Str("block", raw.ID.String()).Msg("created default block for empty page")
	return client.Normalize(raw, pageID)
}

func (s *Session) discardStale(scope, key string, token epoch.Token) {
	s.metrics.Stale(scope)
	s.log.Debug().Str("scope", scope).Str("key", key).Uint64("token", token.Generation).Msg("discarded stale response")
}
