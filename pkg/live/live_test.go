package live_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/blocktree/internal/fakeserver"
	"github.com/surrealdb/blocktree/pkg/live"
)

func TestParseEvent(t *testing.T) {
	ev, err := live.ParseEvent([]byte(`{"event":"page_changed","page_id":"p1"}`))
	require.NoError(t, err)
	assert.Equal(t, live.Event{Name: live.EventPageChanged, PageID: "p1"}, ev)

	ev, err = live.ParseEvent([]byte(`{"event":"page_changed","page_id":42}`))
	require.NoError(t, err)
	assert.Equal(t, "42", ev.PageID)

	for _, bad := range []string{`{}`, `{"event":"x"}`, `{"event":"x","page_id":{}}`, `nope`} {
		_, err := live.ParseEvent([]byte(bad))
		assert.ErrorIs(t, err, live.ErrInvalidEvent, bad)
	}
}

func TestListen(t *testing.T) {
	server := fakeserver.NewServer()
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live"

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan live.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- live.Listen(ctx, url, func(ev live.Event) { events <- ev })
	}()

	require.Eventually(t, func() bool { return server.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	server.Broadcast([]byte(`garbage`))
	assert.Equal(t, 1, server.Notify("p1"))

	select {
	case ev := <-events:
		assert.Equal(t, "p1", ev.PageID)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListenDialError(t *testing.T) {
	err := live.Listen(context.Background(), "ws://127.0.0.1:1/live", func(live.Event) {})
	assert.Error(t, err)
}
