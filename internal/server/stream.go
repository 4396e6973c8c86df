package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProgressEvent is a job state change pushed to stream subscribers
type ProgressEvent struct {
	JobID     string    `json:"jobId"`
	State     JobState  `json:"state"`
	Cost      float64   `json:"cost"`
	Feasible  bool      `json:"feasible"`
	Optimizer string    `json:"optimizer,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newEvent(job Job) ProgressEvent {
	return ProgressEvent{
		JobID:     job.ID,
		State:     job.State,
		Cost:      job.Cost,
		Feasible:  job.Feasible,
		Optimizer: job.Optimizer,
		Error:     job.Error,
		Timestamp: time.Now(),
	}
}

// EventBroadcaster manages SSE connections per job
type EventBroadcaster struct {
	mu        sync.Mutex
	clients   map[string]map[chan ProgressEvent]bool // jobID -> set of client channels
	lastEvent map[string]ProgressEvent               // jobID -> last event for new clients
	logger    *zap.Logger
}

// NewEventBroadcaster creates a new event broadcaster. A nil logger
// disables logging.
func NewEventBroadcaster(logger *zap.Logger) *EventBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBroadcaster{
		clients:   make(map[string]map[chan ProgressEvent]bool),
		lastEvent: make(map[string]ProgressEvent),
		logger:    logger,
	}
}

// Subscribe adds a client to receive events for a job. The last event, if
// any, is replayed immediately.
func (eb *EventBroadcaster) Subscribe(jobID string) chan ProgressEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan ProgressEvent, 10)

	if eb.clients[jobID] == nil {
		eb.clients[jobID] = make(map[chan ProgressEvent]bool)
	}
	eb.clients[jobID][ch] = true

	if last, ok := eb.lastEvent[jobID]; ok {
		ch <- last
	}

	eb.logger.Debug("SSE client subscribed", zap.String("jobID", jobID), zap.Int("clients", len(eb.clients[jobID])))
	return ch
}

// Unsubscribe removes a client. It is a no-op for channels already closed
// by CleanupJob.
func (eb *EventBroadcaster) Unsubscribe(jobID string, ch chan ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	clients, ok := eb.clients[jobID]
	if !ok || !clients[ch] {
		return
	}
	delete(clients, ch)
	close(ch)
	if len(clients) == 0 {
		delete(eb.clients, jobID)
	}

	eb.logger.Debug("SSE client unsubscribed", zap.String("jobID", jobID))
}

// Broadcast sends an event to every subscriber of its job. Slow clients
// miss events rather than block the sender.
func (eb *EventBroadcaster) Broadcast(event ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.lastEvent[event.JobID] = event

	for ch := range eb.clients[event.JobID] {
		select {
		case ch <- event:
		default:
			eb.logger.Warn("SSE channel full, skipping event", zap.String("jobID", event.JobID))
		}
	}
}

// CleanupJob closes every subscriber of a job and forgets its last event
func (eb *EventBroadcaster) CleanupJob(jobID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for ch := range eb.clients[jobID] {
		close(ch)
	}
	delete(eb.clients, jobID)
	delete(eb.lastEvent, jobID)
}

// handleJobStream streams job state changes as server-sent events until the
// job reaches a terminal state or the client disconnects.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, events)

	if err := writeSSEEvent(w, newEvent(job)); err != nil {
		s.logger.Error("failed to write initial SSE event", zap.Error(err))
		return
	}
	flusher.Flush()
	if job.State.Terminal() {
		return
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("SSE client disconnected", zap.String("jobID", jobID))
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				s.logger.Error("failed to write SSE event", zap.Error(err))
				return
			}
			flusher.Flush()
			if event.State.Terminal() {
				return
			}

		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes an event in SSE format
func writeSSEEvent(w http.ResponseWriter, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
