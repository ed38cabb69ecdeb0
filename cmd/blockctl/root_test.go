package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/blocktree/internal/fakeserver"
	"github.com/surrealdb/blocktree/pkg/client"
)

func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--base-url", url, "--env-file", t.TempDir() + "/none.env"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	server := fakeserver.NewServer()
	server.Seed("p1",
		client.RawBlock{ID: "a", Type: "paragraph", Content: map[string]any{"text": "first"}, Position: "V"},
		client.RawBlock{ID: "b", Type: "paragraph", Content: map[string]any{"text": "second"}, Position: "k"},
	)
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	out, err := run(t, srv.URL, "-p", "p1", "tree")
	require.NoError(t, err)
	assert.Equal(t, "- [a] paragraph first\n- [b] paragraph second\n", out)

	out, err = run(t, srv.URL, "-p", "p1", "indent", "b")
	require.NoError(t, err)
	assert.Contains(t, out, "indent b: Committed")
	assert.Contains(t, out, "  - [b] paragraph second")
	assert.Equal(t, []string{"b"}, server.Children("p1", "a"))

	_, err = run(t, srv.URL, "-p", "p1", "update", "b", `{"type": "todo", "content": {"text": "done", "checked": true}}`)
	require.NoError(t, err)
	b, _ := server.Block("b")
	assert.Equal(t, "todo", b.Type)
	assert.Equal(t, true, b.Content["checked"])

	out, err = run(t, srv.URL, "-p", "p1", "add", "--after", "a", "x", "y")
	require.NoError(t, err)
	assert.Contains(t, out, "batch")
	assert.Len(t, server.Children("p1", ""), 3)
}

func TestCommandErrors(t *testing.T) {
	srv := httptest.NewServer(fakeserver.NewServer().Handler())
	defer srv.Close()

	_, err := run(t, srv.URL, "tree")
	assert.Error(t, err)

	_, err = run(t, srv.URL, "-p", "p1", "update", "b", "{")
	assert.Error(t, err)

	_, err = run(t, srv.URL, "-p", "p1", "outdent", "missing")
	assert.Error(t, err)
}
