// Command wikicollab-client is a minimal demonstration of wiring
// internal/session to a live relay over internal/wstransport: it
// connects, applies one local edit, and logs every event it observes
// until the connection closes. It exists to give the transport and
// session packages a runnable home, the way main.go exercises
// internal/collab in the teacher.
package main

import (
	"log"
	"os"
	"time"

	"github.com/tamawiki/collab/internal/ot"
	"github.com/tamawiki/collab/internal/session"
	"github.com/tamawiki/collab/internal/wstransport"
)

func main() {
	url := os.Getenv("WIKICOLLAB_RELAY_URL")
	if url == "" {
		url = "ws://localhost:8090/ws/demo"
	}

	transport, err := wstransport.Dial(url, 30*time.Second)
	if err != nil {
		log.Fatalf("dial relay: %v", err)
	}
	defer transport.Close()

	s := session.New(session.Config{
		Transport: transport,
		Scheduler: session.NewChannelScheduler(),
		OnMessage: func(msg session.ServerMessage) {
			log.Printf("received: %+v", msg)
		},
		OnFlush: func(parentSeq uint64, operations []ot.Operation) {
			log.Printf("flushed %d operation(s) against parent seq %d", len(operations), parentSeq)
		},
	})

	localEdits := make(chan []ot.Operation, 1)
	localEdits <- []ot.Operation{ot.Insert{Pos: 0, Content: "hello, wiki"}}

	if err := s.Run(localEdits); err != nil {
		log.Printf("session ended: %v", err)
	}
}
