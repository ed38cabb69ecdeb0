package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/blocktree/pkg/codec"
)

type recorded struct {
	method      string
	path        string
	contentType string
	requestID   string
	body        []byte
}

func newTestServer(t *testing.T, routes func(r *mux.Router, rec *recorded)) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rec.method = req.Method
			rec.path = req.URL.Path
			rec.contentType = req.Header.Get("Content-Type")
			rec.requestID = req.Header.Get(HeaderRequestID)
			rec.body, _ = io.ReadAll(req.Body)
			next.ServeHTTP(w, req)
		})
	})
	routes(r, rec)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	return c, rec
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrNoBaseURL)
}

func TestGetPage(t *testing.T) {
	c, rec := newTestServer(t, func(r *mux.Router, _ *recorded) {
		r.HandleFunc("/pages/{id}", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"blocks": []any{
				map[string]any{"id": 1, "page": mux.Vars(req)["id"], "parent_block": nil, "type": "paragraph", "content": map[string]any{"text": "a"}, "position": "V"},
			}})
		}).Methods(http.MethodGet)
	})

	blocks, err := c.GetPage(context.Background(), "p 1")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, WireID("1"), blocks[0].ID)
	assert.Equal(t, WireID("p 1"), blocks[0].Page)
	assert.Equal(t, "/pages/p 1", rec.path)
	assert.Len(t, rec.requestID, 16)
}

func TestGetPageRejectsBadEnvelope(t *testing.T) {
	c, _ := newTestServer(t, func(r *mux.Router, _ *recorded) {
		r.HandleFunc("/pages/{id}", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"blocks": "nope"})
		})
	})

	_, err := c.GetPage(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestAPIError(t *testing.T) {
	c, _ := newTestServer(t, func(r *mux.Router, _ *recorded) {
		r.HandleFunc("/blocks/{id}", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "block not found"})
		})
	})

	err := c.DeleteBlock(context.Background(), "b1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.NotFound())
	assert.Equal(t, "block not found", apiErr.Message)
	assert.Equal(t, http.MethodDelete, apiErr.Method)
	assert.Contains(t, err.Error(), "status=404")
}

func TestPatchBlockSendsFields(t *testing.T) {
	c, rec := newTestServer(t, func(r *mux.Router, _ *recorded) {
		r.HandleFunc("/blocks/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}).Methods(http.MethodPatch)
	})

	require.NoError(t, c.PatchBlock(context.Background(), "b1", MoveFields("", "k")))
	assert.Equal(t, http.MethodPatch, rec.method)
	assert.Equal(t, codec.ContentTypeJSON, rec.contentType)
	assert.JSONEq(t, `{"parent_block":null,"position":"k"}`, string(rec.body))
}

func TestBatchCreate(t *testing.T) {
	c, rec := newTestServer(t, func(r *mux.Router, _ *recorded) {
		r.HandleFunc("/pages/{id}/blocks/batch", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"ids":         []any{10, 11},
				"topLevelIds": []any{10},
				"map":         map[string]any{"tmp-a": 10, "tmp-b": "11"},
			})
		}).Methods(http.MethodPost)
	})

	resp, err := c.BatchCreate(context.Background(), "p1", BatchRequest{
		AfterBlockID: "x",
		Blocks: []BatchBlock{{
			TempID: "tmp-a", Type: "paragraph", Position: "V",
			Children: []BatchBlock{{TempID: "tmp-b", Type: "paragraph", Position: "V"}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []WireID{"10", "11"}, resp.IDs)
	assert.Equal(t, []WireID{"10"}, resp.TopLevelIDs)
	assert.Equal(t, map[string]WireID{"tmp-a": "10", "tmp-b": "11"}, resp.Map)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(rec.body, &sent))
	assert.Nil(t, sent["parent_block"])
	assert.Equal(t, "x", sent["after_block_id"])
}

func TestCBORCodec(t *testing.T) {
	cb := codec.CBOR()
	c, rec := newTestServer(t, func(r *mux.Router, _ *recorded) {
		r.HandleFunc("/pages/{id}/blocks", func(w http.ResponseWriter, _ *http.Request) {
			data, _ := cb.Marshal(RawBlock{ID: "srv-1", Page: "p1", Type: "paragraph", Position: "V"})
			w.Header().Set("Content-Type", codec.ContentTypeCBOR)
			_, _ = w.Write(data)
		}).Methods(http.MethodPost)
	})
	c.codec = cb

	got, err := c.CreateBlock(context.Background(), "p1", CreateBlockRequest{Type: "paragraph", Position: "V"})
	require.NoError(t, err)
	assert.Equal(t, WireID("srv-1"), got.ID)
	assert.Equal(t, codec.ContentTypeCBOR, rec.contentType)

	var sent CreateBlockRequest
	require.NoError(t, cb.Unmarshal(rec.body, &sent))
	assert.Equal(t, "V", sent.Position)
}
