package blocktree

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/surrealdb/blocktree/pkg/client"
	"github.com/surrealdb/blocktree/pkg/codec"
	"github.com/surrealdb/blocktree/pkg/epoch"
	"github.com/surrealdb/blocktree/pkg/history"
	"github.com/surrealdb/blocktree/pkg/metrics"
	"github.com/surrealdb/blocktree/pkg/models"
	"github.com/surrealdb/blocktree/pkg/store"
)

var _ client.Persistence = (*client.Client)(nil)

// Session owns the block tree of one document session and every action that
// changes it.
type Session struct {
	cfg     Config
	tree    *store.Tree
	history *history.Manager
	client  client.Persistence
	ids     models.TempIDs
	log     zerolog.Logger
	metrics *metrics.Metrics

	// fetches is keyed by page id, patches by block id.
	fetches epoch.Registry
	patches epoch.Registry
}

// NewSession creates a session that persists through p.
func NewSession(cfg Config, p client.Persistence) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DefaultBlockType == "" {
		cfg.DefaultBlockType = models.BlockTypeParagraph
	}

	m, err := metrics.New(cfg.Registerer)
	if err != nil {
		return nil, err
	}

	return &Session{
		cfg:     cfg,
		tree:    store.New(),
		history: history.NewManager(cfg.MaxUndoDepth),
		client:  p,
		ids:     models.TempIDs{Prefix: cfg.TempIDPrefix},
		log:     cfg.Logger.With().Str("component", "blocktree").Logger(),
		metrics: m,
	}, nil
}

// Open creates a session backed by the HTTP client for cfg.BaseURL.
func Open(cfg Config) (*Session, error) {
	cd, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	opts := []client.Option{client.WithCodec(cd), client.WithLogger(cfg.Logger)}
	if cfg.Timeout > 0 {
		opts = append(opts, client.WithTimeout(cfg.Timeout))
	}
	c, err := client.New(cfg.BaseURL, opts...)
	if err != nil {
		return nil, err
	}
	return NewSession(cfg, c)
}

// Tree returns the read model. Writes must go through the session's actions.
func (s *Session) Tree() *store.Tree {
	return s.tree
}

// History returns the block-tree undo stacks.
func (s *Session) History() *history.Manager {
	return s.history
}

// Metrics returns the session's collectors.
func (s *Session) Metrics() *metrics.Metrics {
	return s.metrics
}

// IsTemporary reports whether id has not been confirmed by the server yet.
func (s *Session) IsTemporary(id string) bool {
	return s.ids.Is(id)
}

// Result describes how an action ended.
type Result struct {
	Action string
	State  models.MutationState
	// BlockID is the block the action created or acted on, by its final id.
	BlockID string
	// IDs maps temporary ids to the server ids they were renamed to.
	IDs map[string]string
	// TopLevelIDs are the ids of the top-level blocks a batch created, in order.
	TopLevelIDs []string
}

type mutation struct {
	s      *Session
	result Result
	start  time.Time
}

func (s *Session) begin(action string) *mutation {
	return &mutation{s: s, result: Result{Action: action, State: models.StateClean}, start: time.Now()}
}

func (m *mutation) transition(next models.MutationState) {
	if err := m.result.State.ValidateTransitionTo(next); err != nil {
		m.s.log.Error().Err(err).Str("action", m.result.Action).Msg("mutation state")
		return
	}
	m.result.State = next
}

func (m *mutation) optimistic() {
	m.transition(models.StateOptimistic)
}

// end moves the mutation to its final state and records it.
func (m *mutation) end(state models.MutationState) Result {
	m.transition(state)
	m.s.metrics.Mutation(m.result.Action, m.result.State.String())
	m.s.log.Debug().
		Str("action", m.result.Action).
		Str("state", m.result.State.String()).
		Str("block", m.result.BlockID).
		Dur("took", time.Since(m.start)).
		Msg("mutation finished")
	return m.result
}

// fail ends a mutation whose server request failed. The page has already been
// rolled back or refetched.
func (m *mutation) fail(state models.MutationState, err error) (Result, error) {
	return m.end(state), &NetworkError{Op: m.result.Action, Err: err}
}

// abort ends a mutation whose request failed before anything changed locally.
// The state stays Clean.
func (m *mutation) abort(err error) (Result, error) {
	m.s.metrics.Mutation(m.result.Action, m.result.State.String())
	m.s.log.Debug().Err(err).Str("action", m.result.Action).Str("block", m.result.BlockID).Msg("mutation aborted")
	return m.result, &NetworkError{Op: m.result.Action, Err: err}
}

// resync refetches a page after a failed structural request, also when ctx has
// been cancelled.
func (s *Session) resync(ctx context.Context, pageID, reason string) {
	s.metrics.Resync(reason)
	s.log.Warn().Str("page", pageID).Str("reason", reason).Msg("resyncing page")

	if err := s.FetchBlocksForPage(context.WithoutCancel(ctx), pageID); err != nil {
		s.log.Error().Err(err).Str("page", pageID).Msg("resync failed")
	}
}
