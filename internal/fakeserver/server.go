// Package fakeserver provides an in-memory block server for tests.
//
// It serves the block REST endpoints over HTTP with gorilla/mux, keeps pages in
// memory and pushes page_changed notifications to websocket subscribers over
// gws. Responses use the codec named by the request's Accept header.
//
// To inject failures, register stub responses that match a method and route
// template, along with failure configurations that say how the request fails
// (delays, error statuses, garbage bodies, dropped connections). A stub may also
// hold its response until a test releases it, which makes out-of-order
// completions reproducible.
package fakeserver

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/lxzan/gws"

	"github.com/surrealdb/blocktree/pkg/client"
	"github.com/surrealdb/blocktree/pkg/codec"
)

// FailureType is the kind of failure injected into a request.
type FailureType string

const (
	FailureNone FailureType = "none"
	// FailureRequestDelay sleeps before the request is handled.
	FailureRequestDelay FailureType = "request_delay"
	// FailureStatus answers with FailureConfig.Status and an error body.
	FailureStatus FailureType = "status"
	// FailureInvalidResponse answers 200 with random bytes.
	FailureInvalidResponse FailureType = "invalid_response"
	// FailureDropConnection closes the connection without answering.
	FailureDropConnection FailureType = "drop_connection"
)

// FailureConfig says how and how often to fail.
type FailureConfig struct {
	Type        FailureType
	Probability float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Status      int
	Message     string
}

// RequestMatcher selects requests by HTTP method and mux route template, such
// as "/blocks/{id}". Empty fields match anything.
type RequestMatcher struct {
	Method  string
	Route   string
	Matcher func(r *http.Request) bool
}

// StubResponse overrides how matching requests are answered.
//
// With Status >= 400 the stub answers with an error. With Body set it answers
// 200 with Body. Otherwise the request falls through to the in-memory handlers
// after Wait and Failures have been applied. Times limits how many requests the
// stub matches; zero means unlimited.
type StubResponse struct {
	Matcher  RequestMatcher
	Status   int
	Message  string
	Body     any
	Wait     <-chan struct{}
	Times    int
	Failures []FailureConfig

	used int
}

// Request is a request the server received.
type Request struct {
	Method    string
	Route     string
	Path      string
	RequestID string
}

// Server is the fake block server.
type Server struct {
	mu             sync.RWMutex
	router         *mux.Router
	httpServer     *http.Server
	listener       net.Listener
	upgrader       *gws.Upgrader
	stubResponses  []*StubResponse
	globalFailures []FailureConfig
	requests       []Request

	pages       map[string]map[string]*client.RawBlock
	subscribers map[*gws.Conn]bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates an empty server. Use Start to listen on a port or Handler
// to mount it in an httptest.Server.
func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		pages:       map[string]map[string]*client.RawBlock{},
		subscribers: map[*gws.Conn]bool{},
		ctx:         ctx,
		cancel:      cancel,
	}
	s.upgrader = gws.NewUpgrader(&liveHandler{server: s}, &gws.ServerOption{})

	r := mux.NewRouter()
	r.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.recordAndStub)
	api.HandleFunc("/pages/{id}", s.handleGetPage).Methods(http.MethodGet)
	api.HandleFunc("/pages/{id}/blocks", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/pages/{id}/blocks/batch", s.handleBatch).Methods(http.MethodPost)
	api.HandleFunc("/pages/{id}/transfer-subtree", s.handleTransfer).Methods(http.MethodPost)
	api.HandleFunc("/blocks/{id}", s.handlePatch).Methods(http.MethodPatch)
	api.HandleFunc("/blocks/{id}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/blocks/{id}/duplicate-subtree", s.handleDuplicate).Methods(http.MethodPost)
	s.router = r

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr. Use "127.0.0.1:0" to bind to a random port.
func (s *Server) Start(addr string) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.httpServer = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
		}
	}()
	return nil
}

// Stop closes the listener and every websocket subscriber.
func (s *Server) Stop() error {
	s.cancel()
	s.mu.Lock()
	for conn := range s.subscribers {
		conn.WriteClose(1001, []byte("server stopping"))
	}
	s.mu.Unlock()
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// Address returns the address the server listens on after Start.
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// AddStubResponse registers a stub. Stubs are matched in the order they were
// added.
func (s *Server) AddStubResponse(stub StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubResponses = append(s.stubResponses, &stub)
}

// ClearStubs removes every stub.
func (s *Server) ClearStubs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubResponses = nil
}

// SetGlobalFailures sets failures that apply to every API request before any
// stub-specific ones.
func (s *Server) SetGlobalFailures(failures []FailureConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalFailures = failures
}

// Requests returns the API requests received so far.
func (s *Server) Requests() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountRequests returns how many requests matched method and route.
func (s *Server) CountRequests(method, route string) int {
	n := 0
	for _, r := range s.Requests() {
		if (method == "" || r.Method == method) && (route == "" || r.Route == route) {
			n++
		}
	}
	return n
}

func (s *Server) recordAndStub(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := ""
		if cur := mux.CurrentRoute(r); cur != nil {
			route, _ = cur.GetPathTemplate()
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:    r.Method,
			Route:     route,
			Path:      r.URL.Path,
			RequestID: r.Header.Get(client.HeaderRequestID),
		})
		globalFailures := s.globalFailures
		var matched *StubResponse
		for _, stub := range s.stubResponses {
			if stub.matches(r, route) {
				stub.used++
				matched = stub
				break
			}
		}
		s.mu.Unlock()

		for _, failure := range globalFailures {
			if shouldTriggerFailure(failure.Probability) && !s.applyFailure(w, r, failure) {
				return
			}
		}

		if matched != nil {
			if matched.Wait != nil {
				select {
				case <-matched.Wait:
				case <-r.Context().Done():
					return
				case <-s.ctx.Done():
					return
				}
			}
			for _, failure := range matched.Failures {
				if shouldTriggerFailure(failure.Probability) && !s.applyFailure(w, r, failure) {
					return
				}
			}
			switch {
			case matched.Status >= 400:
				s.writeError(w, r, matched.Status, matched.Message)
				return
			case matched.Body != nil:
				s.write(w, r, http.StatusOK, matched.Body)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (stub *StubResponse) matches(r *http.Request, route string) bool {
	if stub.Times > 0 && stub.used >= stub.Times {
		return false
	}
	if stub.Matcher.Method != "" && stub.Matcher.Method != r.Method {
		return false
	}
	if stub.Matcher.Route != "" && stub.Matcher.Route != route {
		return false
	}
	return stub.Matcher.Matcher == nil || stub.Matcher.Matcher(r)
}

// applyFailure injects failure and reports whether the request should still
// be handled.
func (s *Server) applyFailure(w http.ResponseWriter, r *http.Request, failure FailureConfig) bool {
	switch failure.Type {
	case FailureRequestDelay:
		select {
		case <-time.After(randomDuration(failure.MinDelay, failure.MaxDelay)):
		case <-r.Context().Done():
			return false
		}
		return true

	case FailureStatus:
		status := failure.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		msg := failure.Message
		if msg == "" {
			msg = "failure injection"
		}
		s.writeError(w, r, status, msg)
		return false

	case FailureInvalidResponse:
		data := make([]byte, 64)
		if _, err := rand.Read(data); err != nil {
			log.Printf("Error generating invalid response: %v", err)
		}
		w.Header().Set("Content-Type", responseCodec(r).ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return false

	case FailureDropConnection:
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return false
			}
		}
		panic(http.ErrAbortHandler)
	}

	return true
}

func responseCodec(r *http.Request) codec.Codec {
	return codec.ForContentType(r.Header.Get("Accept"), codec.JSON())
}

func requestCodec(r *http.Request) codec.Codec {
	return codec.ForContentType(r.Header.Get("Content-Type"), codec.JSON())
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, status int, v any) {
	c := responseCodec(r)
	data, err := c.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", c.ContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.write(w, r, status, map[string]any{"error": message})
}

func shouldTriggerFailure(probability float64) bool {
	if probability <= 0 {
		return false
	}
	if probability >= 1 {
		return true
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(1<<53))
	return float64(n.Int64())/float64(1<<53) < probability
}

func randomDuration(dMin, dMax time.Duration) time.Duration {
	if dMin >= dMax {
		return dMin
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(dMax-dMin)))
	return dMin + time.Duration(n.Int64())
}

// MatchRoute matches a method and mux route template.
func MatchRoute(method, route string) RequestMatcher {
	return RequestMatcher{Method: method, Route: route}
}

// ErrorStubResponse answers matching requests with status and message.
func ErrorStubResponse(method, route string, status int, message string) StubResponse {
	return StubResponse{Matcher: MatchRoute(method, route), Status: status, Message: message}
}

// SimpleStubResponse answers matching requests with body.
func SimpleStubResponse(method, route string, body any) StubResponse {
	return StubResponse{Matcher: MatchRoute(method, route), Body: body}
}
