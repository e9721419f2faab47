package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/zaplink/zaplink/internal/provision"
)

// StatusTracker keeps a summary of the most recent provisioning run so
// a reconnecting client can tell what happened without replaying the
// stream.
type StatusTracker struct {
	mu sync.Mutex

	state      string // idle, running, failed, complete
	phase      string
	progress   int
	errMessage string
	errClass   provision.ErrorClass
	returnStep string
	startedAt  time.Time
	finishedAt time.Time
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{state: "idle"}
}

func (t *StatusTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = "running"
	t.phase = ""
	t.progress = 0
	t.errMessage = ""
	t.errClass = ""
	t.returnStep = ""
	t.startedAt = time.Now().UTC()
	t.finishedAt = time.Time{}
}

func (t *StatusTracker) Observe(ev provision.ProgressEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch ev.Type {
	case provision.EventPhase:
		t.phase = ev.Phase
		if ev.Progress > t.progress {
			t.progress = ev.Progress
		}
	case provision.EventError:
		t.state = "failed"
		t.errMessage = ev.Error
		t.errClass = ev.Classification
		t.returnStep = ev.ReturnStep
		t.finishedAt = time.Now().UTC()
	case provision.EventComplete:
		t.state = "complete"
		t.progress = 100
		t.finishedAt = time.Now().UTC()
	}
}

type statusResponse struct {
	State          string `json:"state"`
	Phase          string `json:"phase,omitempty"`
	Progress       int    `json:"progress"`
	Error          string `json:"error,omitempty"`
	Classification string `json:"classification,omitempty"`
	ReturnStep     string `json:"returnStep,omitempty"`
	StartedAt      string `json:"startedAt,omitempty"`
	FinishedAt     string `json:"finishedAt,omitempty"`
}

func (t *StatusTracker) snapshot() statusResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := statusResponse{
		State:          t.state,
		Phase:          t.phase,
		Progress:       t.progress,
		Error:          t.errMessage,
		Classification: string(t.errClass),
		ReturnStep:     t.returnStep,
	}
	if !t.startedAt.IsZero() {
		out.StartedAt = t.startedAt.Format(time.RFC3339)
	}
	if !t.finishedAt.IsZero() {
		out.FinishedAt = t.finishedAt.Format(time.RFC3339)
	}
	return out
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap := s.Status.snapshot()
	if snap.State == "idle" && s.Provisioned != nil {
		if err := s.Provisioned(r.Context()); err == nil {
			snap.State = "provisioned"
			snap.Progress = 100
		}
	}
	writeJSON(w, http.StatusOK, snap)
}
