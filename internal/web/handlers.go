package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"
)

// MoveRequest holds the jog parameters sent by the UI. Exactly one of
// Steps or AngleDeg is set; RPM and Mode optionally adjust the motor
// before the move.
type MoveRequest struct {
	Motor    string  `json:"motor"`
	Steps    int     `json:"steps,omitempty"`
	AngleDeg float64 `json:"angle_deg,omitempty"`
	RPM      float64 `json:"rpm,omitempty"`
	Mode     string  `json:"mode,omitempty"`
}

// MotorStatus is one motor's state as reported by GET /motors.
type MotorStatus struct {
	Name       string  `json:"name"`
	Position   float64 `json:"position"`
	Mode       string  `json:"mode"`
	PhaseIndex int     `json:"phase_index"`
}

// MoveFunc runs a jog move. It is called from the POST /move handler
// in a goroutine.
type MoveFunc func(ctx context.Context, req MoveRequest) error

// HomeFunc returns a motor to its origin.
type HomeFunc func(ctx context.Context, motor string) error

// ReleaseFunc de-energizes every motor.
type ReleaseFunc func() error

// StatusFunc reports the current state of every motor.
type StatusFunc func() []MotorStatus

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	RunMove     MoveFunc
	RunHome     HomeFunc
	Release     ReleaseFunc
	Status      StatusFunc
	busyMu      sync.Mutex
	busy        bool
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If runMove is nil, POST /move will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, runMove MoveFunc, runHome HomeFunc, release ReleaseFunc, status StatusFunc, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		RunMove:     runMove,
		RunHome:     runHome,
		Release:     release,
		Status:      status,
		staticFS:    staticFS,
	}
}

// acquire marks a motion as in progress. Only one motion may run at a
// time; a second request gets 409 Conflict.
func (h *Handlers) acquire() bool {
	h.busyMu.Lock()
	defer h.busyMu.Unlock()
	if h.busy {
		return false
	}
	h.busy = true
	return true
}

func (h *Handlers) done() {
	h.busyMu.Lock()
	h.busy = false
	h.busyMu.Unlock()
}

// HandleMotors returns the current state of every motor as JSON.
func (h *Handlers) HandleMotors(w http.ResponseWriter, r *http.Request) {
	if h.Status == nil {
		http.Error(w, "status not configured", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Status())
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleMove handles POST /move to start a jog move.
func (h *Handlers) HandleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	// Validate
	if req.Motor == "" {
		http.Error(w, "motor is required", http.StatusBadRequest)
		return
	}
	if req.Steps == 0 && req.AngleDeg == 0 {
		http.Error(w, "one of steps or angle_deg is required", http.StatusBadRequest)
		return
	}
	if req.Steps != 0 && req.AngleDeg != 0 {
		http.Error(w, "steps and angle_deg are exclusive", http.StatusBadRequest)
		return
	}
	if req.RPM < 0 {
		http.Error(w, "rpm must be positive", http.StatusBadRequest)
		return
	}
	if req.Mode != "" && req.Mode != "full" && req.Mode != "half" {
		http.Error(w, "mode must be full or half", http.StatusBadRequest)
		return
	}

	if h.RunMove == nil {
		http.Error(w, "motion not configured", http.StatusServiceUnavailable)
		return
	}

	if !h.acquire() {
		http.Error(w, "a move is already in progress", http.StatusConflict)
		return
	}

	// Run in goroutine; clear busy when done
	go func() {
		defer h.done()

		ctx := context.Background()
		if err := h.RunMove(ctx, req); err != nil {
			h.Broadcaster.Broadcast("error", "Move failed: "+err.Error())
			log.Printf("move failed: %v", err)
		} else {
			h.Broadcaster.BroadcastMsg(fmt.Sprintf("Motor %s move complete", req.Motor))
			h.broadcastPositions()
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// HandleHome handles POST /home to return a motor to its origin.
func (h *Handlers) HandleHome(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Motor string `json:"motor"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Motor == "" {
		http.Error(w, "motor is required", http.StatusBadRequest)
		return
	}

	if h.RunHome == nil {
		http.Error(w, "motion not configured", http.StatusServiceUnavailable)
		return
	}

	if !h.acquire() {
		http.Error(w, "a move is already in progress", http.StatusConflict)
		return
	}

	go func() {
		defer h.done()

		ctx := context.Background()
		if err := h.RunHome(ctx, req.Motor); err != nil {
			h.Broadcaster.Broadcast("error", "Home failed: "+err.Error())
			log.Printf("home failed: %v", err)
		} else {
			h.Broadcaster.BroadcastMsg(fmt.Sprintf("Motor %s homed", req.Motor))
			h.broadcastPositions()
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// HandleRelease handles POST /release to de-energize all motors.
func (h *Handlers) HandleRelease(w http.ResponseWriter, r *http.Request) {
	if h.Release == nil {
		http.Error(w, "motion not configured", http.StatusServiceUnavailable)
		return
	}

	if !h.acquire() {
		http.Error(w, "a move is already in progress", http.StatusConflict)
		return
	}
	defer h.done()

	if err := h.Release(); err != nil {
		http.Error(w, "release failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.Broadcaster.BroadcastMsg("Motors released")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "released"})
}

func (h *Handlers) broadcastPositions() {
	if h.Status == nil {
		return
	}
	positions := make(map[string]float64)
	for _, s := range h.Status() {
		positions[s.Name] = s.Position
	}
	h.Broadcaster.BroadcastPositions(positions)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
