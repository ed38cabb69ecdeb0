// Package live subscribes to the block server's change feed.
//
// The feed is a websocket of small JSON text frames such as
//
//	{"event":"page_changed","page_id":"p1"}
//
// A session uses it to refetch pages another writer changed.
package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buger/jsonparser"
	gorilla "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// CloseMessageCode is sent when the listener shuts down.
	CloseMessageCode = 1000

	EventPageChanged = "page_changed"

	writeWait = 5 * time.Second
)

var ErrInvalidEvent = errors.New("invalid live event")

// Event is one change notification.
type Event struct {
	Name   string
	PageID string
}

type Option func(l *listener)

func WithLogger(log zerolog.Logger) Option {
	return func(l *listener) { l.log = log }
}

func WithDialer(d *gorilla.Dialer) Option {
	return func(l *listener) { l.dialer = d }
}

type listener struct {
	dialer *gorilla.Dialer
	log    zerolog.Logger
}

// Listen connects to url and calls fn for every event until ctx is done or the
// connection fails. Malformed frames are logged and skipped. A cancelled
// context ends the listener with a nil error.
func Listen(ctx context.Context, url string, fn func(Event), opts ...Option) error {
	l := &listener{dialer: gorilla.DefaultDialer, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(l)
	}

	conn, _, err := l.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				gorilla.CloseMessage,
				gorilla.FormatCloseMessage(CloseMessageCode, ""),
				time.Now().Add(writeWait),
			)
			conn.Close()
		case <-stop:
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read live feed: %w", err)
		}

		ev, err := ParseEvent(data)
		if err != nil {
			l.log.Warn().Err(err).Bytes("frame", data).Msg("skipping live frame")
			continue
		}
		fn(ev)
	}
}

// ParseEvent decodes one feed frame.
func ParseEvent(data []byte) (Event, error) {
	name, err := jsonparser.GetString(data, "event")
	if err != nil {
		return Event{}, fmt.Errorf("%w: event: %v", ErrInvalidEvent, err)
	}

	value, dataType, _, err := jsonparser.Get(data, "page_id")
	if err != nil {
		return Event{}, fmt.Errorf("%w: page_id: %v", ErrInvalidEvent, err)
	}

	var pageID string
	switch dataType {
	case jsonparser.String:
		pageID, err = jsonparser.ParseString(value)
		if err != nil {
			return Event{}, fmt.Errorf("%w: page_id: %v", ErrInvalidEvent, err)
		}
	case jsonparser.Number:
		pageID = string(value)
	default:
		return Event{}, fmt.Errorf("%w: page_id is %s", ErrInvalidEvent, dataType)
	}

	return Event{Name: name, PageID: pageID}, nil
}
