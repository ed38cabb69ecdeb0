package fakeserver

import (
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/lxzan/gws"
)

// Notification is the message pushed to live subscribers.
type Notification struct {
	Event  string `json:"event"`
	PageID string `json:"page_id"`
}

const EventPageChanged = "page_changed"

type liveHandler struct {
	server *Server
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		log.Printf("Upgrade error: %v", err)
		return
	}
	go socket.ReadLoop()
}

// Notify pushes a page_changed event to every subscriber and returns how many
// subscribers it reached.
func (s *Server) Notify(pageID string) int {
	data, err := json.Marshal(Notification{Event: EventPageChanged, PageID: pageID})
	if err != nil {
		return 0
	}
	return s.Broadcast(data)
}

// Broadcast pushes a raw text frame to every subscriber.
func (s *Server) Broadcast(data []byte) int {
	s.mu.RLock()
	conns := make([]*gws.Conn, 0, len(s.subscribers))
	for conn := range s.subscribers {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	sent := 0
	for _, conn := range conns {
		if err := conn.WriteMessage(gws.OpcodeText, data); err != nil {
			log.Printf("Error writing notification: %v", err)
			continue
		}
		sent++
	}
	return sent
}

// Subscribers returns the number of open live connections.
func (s *Server) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

func (h *liveHandler) OnOpen(socket *gws.Conn) {
	h.server.mu.Lock()
	h.server.subscribers[socket] = true
	h.server.mu.Unlock()
	_ = socket.SetDeadline(time.Time{})
}

func (h *liveHandler) OnClose(socket *gws.Conn, err error) {
	h.server.mu.Lock()
	delete(h.server.subscribers, socket)
	h.server.mu.Unlock()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		var closeErr *gws.CloseError
		if !errors.As(err, &closeErr) {
			log.Printf("Live connection closed: %v", err)
		}
	}
}

func (h *liveHandler) OnPing(socket *gws.Conn, payload []byte) {
	if err := socket.WritePong(payload); err != nil {
		log.Printf("Error writing Pong: %v", err)
	}
}

func (h *liveHandler) OnPong(socket *gws.Conn, payload []byte) {
}

// OnMessage ignores client frames; the feed is server to client only.
func (h *liveHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
}
