package relay

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type documentInfo struct {
	Seq     uint64 `json:"seq"`
	Content string `json:"content"`
}

// Router builds the HTTP routing for a Relay using gorilla/mux, the
// way sumanthd032-CollabText/server wires its document endpoints --
// richer path-variable routing than the teacher's bare
// http.ServeMux, appropriate here since this package is new code
// rather than adapted teacher code.
func (rl *Relay) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/ws/{docID}", func(w http.ResponseWriter, req *http.Request) {
		docID := mux.Vars(req)["docID"]
		rl.HandleWebSocket(w, req, docID)
	}).Methods(http.MethodGet)

	r.HandleFunc("/documents/{docID}", rl.handleDocumentInfo).Methods(http.MethodGet)

	return r
}

func (rl *Relay) handleDocumentInfo(w http.ResponseWriter, r *http.Request) {
	docID := mux.Vars(r)["docID"]

	rl.mu.RLock()
	rm, ok := rl.rooms[docID]
	rl.mu.RUnlock()

	if !ok {
		http.Error(w, "document not found", http.StatusNotFound)

		return
	}

	rm.mu.Lock()
	content := rm.model.Value()
	seq := rm.model.Seq()
	rm.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(documentInfo{Seq: seq, Content: content})
}
