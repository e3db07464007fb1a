package session_test

import (
	"testing"
	"time"

	"github.com/tamawiki/collab/internal/ot"
	"github.com/tamawiki/collab/internal/session"
	"github.com/stretchr/testify/require"
)

func TestRunProcessesLocalEditsAndTransportMessages(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()

	var received []session.ServerMessage

	s := session.New(session.Config{
		Transport: transport,
		OnMessage: func(msg session.ServerMessage) { received = append(received, msg) },
	})

	localEdits := make(chan []ot.Operation, 1)

	done := make(chan error, 1)
	go func() { done <- s.Run(localEdits) }()

	transport.messages <- session.Connected{ID: 1}
	localEdits <- []ot.Operation{ot.Insert{Pos: 0, Content: "hi"}}

	require.Eventually(t, func() bool {
		return len(transport.sent) == 1
	}, time.Second, time.Millisecond, "expected a ClientEdit to be flushed")

	close(transport.messages)

	select {
	case err := <-done:
		if err != session.ErrTransportClosed {
			t.Fatalf("expected ErrTransportClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after transport closed")
	}

	if len(received) != 1 {
		t.Fatalf("expected exactly one ServerMessage delivered, got %d", len(received))
	}
}
