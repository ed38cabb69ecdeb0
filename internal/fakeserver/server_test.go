package fakeserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/blocktree/pkg/client"
	"github.com/surrealdb/blocktree/pkg/codec"
)

func newClient(t *testing.T, server *Server, opts ...client.Option) *client.Client {
	t.Helper()
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	c, err := client.New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestServerStartStop(t *testing.T) {
	server := NewServer()
	require.NoError(t, server.Start("127.0.0.1:0"))
	assert.NotEmpty(t, server.Address())
	require.NoError(t, server.Stop())
}

func TestCreatePatchDelete(t *testing.T) {
	ctx := context.Background()
	server := NewServer()
	c := newClient(t, server)

	a, err := c.CreateBlock(ctx, "p1", client.CreateBlockRequest{Type: "paragraph", Position: "V"})
	require.NoError(t, err)
	b, err := c.CreateBlock(ctx, "p1", client.CreateBlockRequest{ParentBlock: a.ID, Type: "paragraph"})
	require.NoError(t, err)
	assert.NotEmpty(t, b.Position)

	require.NoError(t, c.PatchBlock(ctx, b.ID.String(), map[string]any{"type": "heading", "content": map[string]any{"text": "t"}}))
	got, ok := server.Block(b.ID.String())
	require.True(t, ok)
	assert.Equal(t, "heading", got.Type)
	assert.Equal(t, int64(2), got.Version)

	err = c.PatchBlock(ctx, a.ID.String(), client.MoveFields(b.ID.String(), "V"))
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	require.NoError(t, c.DeleteBlock(ctx, a.ID.String()))
	assert.Equal(t, []string{b.ID.String()}, server.Children("p1", ""))

	blocks, err := c.GetPage(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, client.WireID(""), blocks[0].ParentBlock)
}

func TestBatchAssignsIDs(t *testing.T) {
	server := NewServer()
	c := newClient(t, server, client.WithCodec(codec.CBOR()))

	resp, err := c.BatchCreate(context.Background(), "p1", client.BatchRequest{Blocks: []client.BatchBlock{
		{TempID: "tmp-a", Type: "paragraph", Position: "V", Children: []client.BatchBlock{
			{TempID: "tmp-a1", Type: "paragraph", Position: "V"},
		}},
		{TempID: "tmp-b", Type: "paragraph", Position: "k"},
	}})
	require.NoError(t, err)
	assert.Len(t, resp.IDs, 3)
	assert.Len(t, resp.TopLevelIDs, 2)
	require.Len(t, resp.Map, 3)

	assert.Equal(t, []string{resp.Map["tmp-a"].String(), resp.Map["tmp-b"].String()}, server.Children("p1", ""))
	assert.Equal(t, []string{resp.Map["tmp-a1"].String()}, server.Children("p1", resp.Map["tmp-a"].String()))
}

func TestDuplicateAndTransfer(t *testing.T) {
	ctx := context.Background()
	server := NewServer()
	server.Seed("p1",
		client.RawBlock{ID: "a", Type: "paragraph", Position: "V"},
		client.RawBlock{ID: "a1", ParentBlock: "a", Type: "paragraph", Position: "V"},
		client.RawBlock{ID: "b", Type: "paragraph", Position: "k"},
	)
	c := newClient(t, server)

	copies, err := c.DuplicateSubtree(ctx, "a")
	require.NoError(t, err)
	require.Len(t, copies, 2)
	roots := server.Children("p1", "")
	assert.Equal(t, []string{"a", copies[0].ID.String(), "b"}, roots)
	assert.Equal(t, copies[0].ID, copies[1].ParentBlock)

	moved, err := c.TransferSubtree(ctx, "p1", client.TransferRequest{RootID: "a", ToPageID: "p2"})
	require.NoError(t, err)
	assert.Len(t, moved, 2)
	assert.Len(t, server.Blocks("p2"), 2)
	assert.Equal(t, []string{"a"}, server.Children("p2", ""))
	assert.Len(t, server.Blocks("p1"), 3)
}

func TestStubsAndFailures(t *testing.T) {
	ctx := context.Background()
	server := NewServer()
	c := newClient(t, server)

	server.AddStubResponse(StubResponse{
		Matcher: MatchRoute(http.MethodDelete, "/blocks/{id}"),
		Times:   1,
		Failures: []FailureConfig{
			{Type: FailureStatus, Probability: 1, Status: http.StatusServiceUnavailable, Message: "down"},
		},
	})
	server.AddStubResponse(SimpleStubResponse(http.MethodGet, "/pages/{id}", map[string]any{
		"blocks": []any{map[string]any{"id": 5, "type": "paragraph", "position": "V"}},
	}))

	err := c.DeleteBlock(ctx, "x")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "down", apiErr.Message)

	err = c.DeleteBlock(ctx, "x")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	blocks, err := c.GetPage(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, client.WireID("5"), blocks[0].ID)

	assert.Equal(t, 2, server.CountRequests(http.MethodDelete, "/blocks/{id}"))
	assert.Len(t, server.Requests()[0].RequestID, 16)

	server.ClearStubs()
	server.SetGlobalFailures([]FailureConfig{{Type: FailureInvalidResponse, Probability: 1}})
	_, err = c.GetPage(ctx, "p1")
	assert.ErrorIs(t, err, client.ErrInvalidResponse)

	server.SetGlobalFailures([]FailureConfig{{Type: FailureDropConnection, Probability: 1}})
	_, err = c.GetPage(ctx, "p1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, client.ErrInvalidResponse)
}

func TestWaitHoldsResponse(t *testing.T) {
	server := NewServer()
	c := newClient(t, server)
	gate := make(chan struct{})
	server.AddStubResponse(StubResponse{Matcher: MatchRoute(http.MethodGet, "/pages/{id}"), Wait: gate, Times: 1})

	done := make(chan error, 1)
	go func() {
		_, err := c.GetPage(context.Background(), "p1")
		done <- err
	}()

	require.Eventually(t, func() bool { return server.CountRequests(http.MethodGet, "") == 1 }, time.Second, 5*time.Millisecond)
	select {
	case <-done:
		t.Fatal("response was not held")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("response was not released")
	}
}
