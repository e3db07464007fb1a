package session

import "github.com/tamawiki/collab/internal/ot"

// Config configures a new Session. Following the teacher repo's
// XxxConfig convention (collab.SessionConfig, api.ServerConfig), zero
// values are filled in by New where sensible.
type Config struct {
	// Seq is the server sequence number the initial Document was
	// loaded at.
	Seq uint64

	// Transport is the duplex channel outbound ClientEdits are sent
	// over and inbound ServerMessages arrive from.
	Transport Transport

	// Scheduler defers the flush triggered by the first Write in a
	// burst. Defaults to NewChannelScheduler() if nil.
	Scheduler Scheduler

	// OnMessage is called synchronously, once per Receive, with the
	// (possibly transformed) ServerMessage -- spec §6's
	// "session.message(ServerMessage), after transformation".
	OnMessage func(ServerMessage)

	// OnFlush is called synchronously from flush whenever a
	// non-empty ClientEdit is sent -- spec §6's "content.change
	// (parentSeq, operations[]), after normalization".
	OnFlush func(parentSeq uint64, operations []ot.Operation)
}

// Session is the client session state machine of spec §4.5: it owns
// the outbox of not-yet-flushed local operations, the list of
// sent-but-unacknowledged ClientEdits, and the last-acknowledged
// server sequence number. It is not safe for concurrent use -- like
// the cooperative single-threaded host it models, every method must
// be called from the same logical task (spec §5).
type Session struct {
	seq           uint64
	clientSeq     uint64
	participantID *ot.ParticipantId

	sent   []ClientEdit
	outbox []ot.Operation

	hasLastOperation bool
	lastOperation    ot.Operation

	transport Transport
	scheduler Scheduler
	onMessage func(ServerMessage)
	onFlush   func(uint64, []ot.Operation)
}

// New creates a Session in the Ready state, before Connected has been
// received.
func New(cfg Config) *Session {
	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = NewChannelScheduler()
	}

	return &Session{
		seq:       cfg.Seq,
		transport: cfg.Transport,
		scheduler: scheduler,
		onMessage: cfg.OnMessage,
		onFlush:   cfg.OnFlush,
	}
}

// Seq returns the last server sequence number observed.
func (s *Session) Seq() uint64 {
	return s.seq
}

// ClientSeq returns the last client sequence number assigned.
func (s *Session) ClientSeq() uint64 {
	return s.clientSeq
}

// ParticipantID returns the local participant id and whether
// Connected has been received yet.
func (s *Session) ParticipantID() (ot.ParticipantId, bool) {
	if s.participantID == nil {
		return 0, false
	}

	return *s.participantID, true
}

// Sent returns a copy of the unacknowledged ClientEdit buffer, for
// inspection by callers (e.g. tests, or a UI "syncing..." indicator).
// The Session itself never exposes the underlying slice by reference.
func (s *Session) Sent() []ClientEdit {
	out := make([]ClientEdit, len(s.sent))
	copy(out, s.sent)

	return out
}

// Receive processes one inbound ServerMessage: bookkeeping, pruning
// and transformation happen before OnMessage is invoked with the
// result, so a content layer driven from OnMessage always applies
// operations already rewritten against the local unacknowledged
// buffer (spec §4.5, §5).
func (s *Session) Receive(msg ServerMessage) error {
	switch m := msg.(type) {
	case Connected:
		if s.participantID != nil {
			return ErrAlreadyConnected
		}

		id := m.ID
		s.participantID = &id
	case ServerEvent:
		m = s.receiveServerEvent(m)
		msg = m
	}

	if s.onMessage != nil {
		s.onMessage(msg)
	}

	return nil
}

// receiveServerEvent implements the ServerEvent handling of spec
// §4.5: advance seq, prune acknowledged ClientEdits, then transform
// the incoming event through every operation still outstanding.
func (s *Session) receiveServerEvent(m ServerEvent) ServerEvent {
	s.seq = m.Seq

	pruned := s.sent[:0]

	for _, edit := range s.sent {
		if edit.ClientSeq > m.ClientSeq {
			pruned = append(pruned, edit)
		}
	}

	s.sent = pruned

	if s.participantID != nil {
		event := m.Event
		for _, edit := range s.sent {
			concurrent := ot.Edit{Author: *s.participantID, Operations: edit.Operations}
			event = event.Transform(concurrent)
		}

		m.Event = event
	}

	s.hasLastOperation = false

	return m
}

// Write queues locally authored operations for the next flush. If the
// outbox was empty, a flush is scheduled for the next tick so a burst
// of writes within the same tick coalesces into a single ClientEdit
// (spec §4.5).
func (s *Session) Write(ops []ot.Operation) {
	if len(ops) == 0 {
		return
	}

	wasEmpty := len(s.outbox) == 0
	s.outbox = append(s.outbox, ops...)

	if wasEmpty {
		s.scheduler.Defer(s.flush)
	}
}

// flush builds the next ClientEdit from the outbox, per the
// normalization rules of spec §4.4, and sends it. It is a no-op if
// nothing survives normalization.
func (s *Session) flush() {
	if len(s.outbox) == 0 {
		return
	}

	outbox := s.outbox
	s.outbox = nil

	prepared := make([]ot.Operation, 0, len(outbox))
	last := s.lastOperation
	hasLast := s.hasLastOperation

	for i, op := range outbox {
		isLastInOutbox := i == len(outbox)-1

		keep := ot.IsContentChanging(op)
		if !keep && isLastInOutbox {
			keep = !hasLast || op.CursorPositionAfter() != last.CursorPositionAfter()
		}

		if keep {
			prepared = append(prepared, op)
			last = op
			hasLast = true
		}
	}

	if len(prepared) == 0 {
		return
	}

	s.clientSeq++
	edit := ClientEdit{ParentSeq: s.seq, ClientSeq: s.clientSeq, Operations: prepared}

	_ = s.transport.Send(edit)

	s.sent = append(s.sent, edit)
	s.lastOperation = last
	s.hasLastOperation = hasLast

	if s.onFlush != nil {
		s.onFlush(edit.ParentSeq, edit.Operations)
	}
}

// Run drives the session to completion: it services inbound
// transport messages and deferred flush callbacks on a single
// goroutine until the transport closes. Local writes must be
// delivered via localEdits so every mutation to the Session happens
// on this one goroutine, honoring the single-threaded-cooperative
// model of spec §5. Run returns ErrTransportClosed when the
// transport's Messages channel closes.
func (s *Session) Run(localEdits <-chan []ot.Operation) error {
	scheduler, ok := s.scheduler.(*ChannelScheduler)
	if !ok {
		scheduler = nil
	}

	messages := s.transport.Messages()

	for {
		var tasks <-chan func()
		if scheduler != nil {
			tasks = scheduler.Tasks()
		}

		select {
		case msg, open := <-messages:
			if !open {
				return ErrTransportClosed
			}

			if err := s.Receive(msg); err != nil {
				return err
			}
		case ops, open := <-localEdits:
			if !open {
				localEdits = nil

				continue
			}

			s.Write(ops)
		case fn := <-tasks:
			fn()
		}
	}
}
