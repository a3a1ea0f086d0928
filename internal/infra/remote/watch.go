package remote

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"github.com/osa030/19remote/internal/app/notification"
	"github.com/osa030/19remote/internal/domain/fault"
	"github.com/osa030/19remote/internal/domain/session"
)

const handshakeTimeout = 10 * time.Second

// Watch subscribes to pushed state changes of a session and calls fn for
// each one until ctx is done or the server closes the stream. A notification
// whose sequence number is not newer than one already passed to fn is
// skipped.
func (c *Client) Watch(ctx context.Context, key session.Key, fn func(*notification.Notification)) error {
	wsURL, err := c.websocketURL("/api/ws/" + url.PathEscape(key.String()))
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	header := http.Header{}
	header.Set("User-Agent", userAgent)

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return statusError(resp)
			}
		}
		return fault.Unavailable(err, "failed to open watch stream")
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	ordered := notification.NewOrdered(notification.StreamFunc(func(n *notification.Notification) error {
		fn(n)
		return nil
	}))
	for {
		var n notification.Notification
		if err := conn.ReadJSON(&n); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "watch stream closed")
		}
		_ = ordered.Send(&n)
	}
}

func (c *Client) websocketURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", errors.Wrap(err, "invalid server url")
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fault.InvalidArgumentf("unsupported server url scheme %q", u.Scheme)
	}
	return u.String(), nil
}
