package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19remote/internal/app/notification"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 4096

	// SnapshotEvent names the notification sent when a stream opens.
	SnapshotEvent = "snapshot"
)

// wsStream delivers notifications over a websocket connection.
type wsStream struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Send implements notification.Stream.
func (s *wsStream) Send(n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return errors.Wrap(err, "failed to set write deadline")
	}
	if err := s.conn.WriteJSON(n); err != nil {
		return errors.Wrap(err, "failed to write notification")
	}
	return nil
}

func (s *wsStream) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// WebSocketHandler pushes the session snapshot on connect and after every
// committed command.
func (h *Handler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	key, err := sessionKeyVar(r)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Debug().Msgf("websocket upgrade failed: key=%s err=%v", key, err)
		return
	}
	defer conn.Close()

	// A push racing the initial snapshot may land first; the ordered
	// stream then drops whichever of the two is older.
	stream := &wsStream{conn: conn}
	notifications := h.manager.Notifications()
	subID := notifications.Subscribe(key, notification.NewOrdered(stream))
	defer notifications.Unsubscribe(subID)
	zlog.Info().Msgf("websocket opened: key=%s subscription=%s", key, subID)

	st, rev, err := h.manager.Processor().Revision(r.Context(), key)
	if err != nil {
		zlog.Debug().Msgf("initial snapshot failed: key=%s err=%v", key, err)
		return
	}
	if err := notifications.Send(subID, &notification.Notification{
		SequenceNo: rev,
		Event:      SnapshotEvent,
		SessionKey: key,
		State:      st,
	}); err != nil {
		zlog.Debug().Msgf("initial snapshot send failed: key=%s err=%v", key, err)
		return
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := stream.ping(); err != nil {
					return
				}
			}
		}
	}()

	// The client never sends data; reading keeps control frames flowing
	// and detects the close.
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zlog.Debug().Msgf("websocket read error: key=%s err=%v", key, err)
			}
			break
		}
	}
	zlog.Info().Msgf("websocket closed: key=%s subscription=%s", key, subID)
}
