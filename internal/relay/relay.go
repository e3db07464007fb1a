// Package relay is a minimal reference sequencer for ot.Event: the
// out-of-scope "server-side ordering component" spec.md §1 and §9
// name but deliberately do not specify. It exists only to exercise
// internal/session and internal/wstransport end-to-end; it is not a
// specification of how a production wiki backend must sequence
// events.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tamawiki/collab/internal/ot"
	"github.com/tamawiki/collab/internal/relaystore"
	"github.com/tamawiki/collab/internal/session"
)

// Config configures a Relay, following the XxxConfig constructor
// pattern api.ServerConfig uses in the teacher.
type Config struct {
	Store relaystore.Store
}

// Relay sequences events for any number of documents, each identified
// by an opaque doc ID in the request path.
type Relay struct {
	store relaystore.Store

	mu    sync.RWMutex
	rooms map[string]*room
}

// New creates a Relay backed by cfg.Store.
func New(cfg Config) *Relay {
	return &Relay{
		store: cfg.Store,
		rooms: make(map[string]*room),
	}
}

// room holds the authoritative document state and the set of
// connected participants for one document. Guarded by mu because the
// relay, unlike a client session, genuinely is shared across
// goroutines -- one per connected websocket.
type room struct {
	docID string

	mu    sync.Mutex
	model *ot.Model

	nextParticipant ot.ParticipantId
	conns           map[ot.ParticipantId]*connection
}

type connection struct {
	id     uuid.UUID
	send   chan session.ServerMessage
	closed chan struct{}
}

func (rl *Relay) roomFor(ctx context.Context, docID string) (*room, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rm, ok := rl.rooms[docID]; ok {
		return rm, nil
	}

	if err := rl.store.CreateDocument(ctx, docID); err != nil && !errors.Is(err, relaystore.ErrDocumentExists) {
		return nil, err
	}

	model := ot.NewModel()
	model.LoadDocument(0, ot.Document{})

	rm := &room{docID: docID, model: model, conns: make(map[ot.ParticipantId]*connection)}
	rl.rooms[docID] = rm

	return rm, nil
}

// Upgrader is the websocket.Upgrader HandleWebSocket uses for every
// connection; it accepts requests from any origin.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// HandleWebSocket upgrades r and drives one participant's connection
// to docID until it disconnects.
func (rl *Relay) HandleWebSocket(w http.ResponseWriter, r *http.Request, docID string) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("relay: upgrade failed: %v", err)

		return
	}
	defer conn.Close()

	rm, err := rl.roomFor(r.Context(), docID)
	if err != nil {
		log.Printf("relay: room %s unavailable: %v", docID, err)

		return
	}

	c := &connection{id: uuid.New(), send: make(chan session.ServerMessage, 32), closed: make(chan struct{})}

	participantID := rm.join(c)
	defer rm.leave(participantID)

	go c.writePump(conn)

	if err := c.deliver(session.Connected{ID: participantID}); err != nil {
		return
	}

	rl.readLoop(conn, rm, participantID)
}

func (rl *Relay) readLoop(conn *websocket.Conn, rm *room, participantID ot.ParticipantId) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := session.UnmarshalClientMessage(data)
		if err != nil {
			log.Printf("relay: dropping unreadable frame from %d: %v", participantID, err)

			continue
		}

		edit, ok := msg.(session.ClientEdit)
		if !ok {
			continue
		}

		event, err := rm.sequence(participantID, edit)
		if err != nil {
			log.Printf("relay: rejecting edit from %d: %v", participantID, err)

			continue
		}

		eventJSON, err := ot.MarshalEvent(event.Event)
		if err != nil {
			log.Printf("relay: marshal event for log: %v", err)

			continue
		}

		logged := relaystore.LoggedEvent{Seq: event.Seq, ClientSeq: event.ClientSeq, EventJSON: eventJSON}
		if err := rl.store.AppendEvent(context.Background(), rm.docID, logged); err != nil {
			log.Printf("relay: append event to log: %v", err)
		}
	}
}

// join registers c, assigns it a fresh ParticipantId, admits it to
// the room's authoritative roster, and tells every already-connected
// participant about the new arrival via a sequenced Join event.
func (rm *room) join(c *connection) ot.ParticipantId {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.nextParticipant++
	id := rm.nextParticipant

	seq := rm.model.Seq() + 1
	_ = rm.model.ApplyEvent(seq, ot.Join{ID: id})

	rm.broadcastLocked(session.ServerEvent{Seq: seq, Event: ot.Join{ID: id}})

	rm.conns[id] = c

	return id
}

func (rm *room) leave(id ot.ParticipantId) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	delete(rm.conns, id)

	seq := rm.model.Seq() + 1
	if err := rm.model.ApplyEvent(seq, ot.Leave{ID: id}); err != nil {
		return
	}

	rm.broadcastLocked(session.ServerEvent{Seq: seq, Event: ot.Leave{ID: id}})
}

// broadcastLocked fans msg out to every currently connected
// participant. Callers must already hold rm.mu.
func (rm *room) broadcastLocked(msg session.ServerMessage) {
	for _, c := range rm.conns {
		select {
		case c.send <- msg:
		default:
			log.Printf("relay: dropping slow participant's outbound queue")
		}
	}
}

// sequence validates edit against the room's authoritative model,
// assigns it the next seq, applies it, and fans the resulting event
// out to every connected participant.
func (rm *room) sequence(author ot.ParticipantId, edit session.ClientEdit) (session.ServerEvent, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	ev := ot.Edit{Author: author, Operations: edit.Operations}

	if err := rm.model.CanApply(ev); err != nil {
		return session.ServerEvent{}, err
	}

	seq := rm.model.Seq() + 1
	if err := rm.model.ApplyEvent(seq, ev); err != nil {
		return session.ServerEvent{}, err
	}

	out := session.ServerEvent{Seq: seq, ClientSeq: edit.ClientSeq, Event: ev}

	rm.broadcastLocked(out)

	return out, nil
}

func (c *connection) deliver(msg session.ServerMessage) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.closed:
		return errors.New("relay: connection closed")
	}
}

func (c *connection) writePump(conn *websocket.Conn) {
	for msg := range c.send {
		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("relay: marshal outbound message: %v", err)

			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			close(c.closed)

			return
		}
	}
}
