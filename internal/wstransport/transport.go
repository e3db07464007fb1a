// Package wstransport implements the session.Transport contract over a
// real WebSocket connection, using github.com/gorilla/websocket for
// framing and github.com/cenkalti/backoff for connection retries -- the
// concern the session core deliberately never owns (spec §5: "No
// retries are attempted inside the core").
package wstransport

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/tamawiki/collab/internal/session"
)

// Transport adapts a gorilla/websocket connection to session.Transport.
// Send serializes and writes synchronously; a background read pump
// decodes inbound frames onto the Messages channel until the
// connection closes or an unrecoverable decode error occurs.
type Transport struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	messages chan session.ServerMessage
}

// Dial connects to url with exponential-backoff retries (matching the
// reconnect concern sumanthd032-CollabText/agent pulls in
// cenkalti/backoff for) and returns a ready Transport.
func Dial(url string, maxElapsed time.Duration) (*Transport, error) {
	var conn *websocket.Conn

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxElapsed

	operation := func() error {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			log.Printf("wstransport: dial %s failed, retrying: %v", url, err)

			return err
		}

		conn = c

		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	return newTransport(conn), nil
}

func newTransport(conn *websocket.Conn) *Transport {
	t := &Transport{
		conn:     conn,
		messages: make(chan session.ServerMessage, 32),
	}

	go t.readPump()

	return t
}

// Send implements session.Transport.
func (t *Transport) Send(msg session.ClientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Messages implements session.Transport.
func (t *Transport) Messages() <-chan session.ServerMessage {
	return t.messages
}

// Close closes the underlying connection.
func (t *Transport) Close() error {
	return t.conn.Close()
}

func (t *Transport) readPump() {
	defer close(t.messages)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := session.UnmarshalServerMessage(data)
		if err != nil {
			log.Printf("wstransport: dropping unreadable frame: %v", err)

			return
		}

		t.messages <- msg
	}
}
