// Package events provides in-process broadcast of playback events to
// transport subscribers.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types broadcast by the notifier.
const (
	// TypeNowPlaying announces the track a freshly planned segment carries.
	TypeNowPlaying = "now_playing"
	// TypeDecisionTrace carries the planning steps behind the latest segment.
	TypeDecisionTrace = "decision_trace"
	// TypeSegmentReady announces a rendered segment available for playout.
	TypeSegmentReady = "segment_ready"
)

// maxTraceSteps caps how many planning steps a decision_trace event carries.
const maxTraceSteps = 5

// NowPlaying is the now_playing event payload.
type NowPlaying struct {
	TrackID string `json:"track_id"`
	Status  string `json:"status"`
}

// DecisionStep records one planning decision and its rationale.
type DecisionStep struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
}

// DecisionTrace is the decision_trace event payload.
type DecisionTrace struct {
	Trace []DecisionStep `json:"trace"`
}

// SegmentReady is the segment_ready event payload.
type SegmentReady struct {
	SegmentName string `json:"segment_name"`
	SegmentPath string `json:"segment_path"`
	TrackID     string `json:"track_id"`
}

// Event is a typed broadcast message.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber receives broadcast events on its channel until unsubscribed.
type Subscriber struct {
	ID     string
	Events chan Event
}

// Notifier fans events out to all current subscribers. Broadcasts never
// block: a subscriber that stops draining its channel loses events.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	logger      *slog.Logger
}

// NewNotifier creates an event notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		subscribers: make(map[string]*Subscriber),
		logger:      logger.With("component", "event_notifier"),
	}
}

// Subscribe registers a new subscriber and returns it.
func (n *Notifier) Subscribe() *Subscriber {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub := &Subscriber{
		ID:     ulid.Make().String(),
		Events: make(chan Event, 16),
	}
	n.subscribers[sub.ID] = sub

	n.logger.Debug("subscriber added", "subscriber_id", sub.ID)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(subscriberID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if sub, ok := n.subscribers[subscriberID]; ok {
		close(sub.Events)
		delete(n.subscribers, subscriberID)
		n.logger.Debug("subscriber removed", "subscriber_id", subscriberID)
	}
}

// SubscriberCount returns the number of active subscribers.
func (n *Notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscribers)
}

// NowPlaying broadcasts the track carried by the segment now being planned
// or played.
func (n *Notifier) NowPlaying(trackID string) {
	n.emit(TypeNowPlaying, NowPlaying{TrackID: trackID, Status: "playing"})
}

// DecisionTrace broadcasts the most recent planning steps, keeping at most
// the last five.
func (n *Notifier) DecisionTrace(steps []DecisionStep) {
	if len(steps) == 0 {
		return
	}
	if len(steps) > maxTraceSteps {
		steps = steps[len(steps)-maxTraceSteps:]
	}
	trace := make([]DecisionStep, len(steps))
	copy(trace, steps)
	n.emit(TypeDecisionTrace, DecisionTrace{Trace: trace})
}

// SegmentReady broadcasts a rendered segment available for playout.
func (n *Notifier) SegmentReady(trackID, segmentName, segmentPath string) {
	n.emit(TypeSegmentReady, SegmentReady{
		SegmentName: segmentName,
		SegmentPath: segmentPath,
		TrackID:     trackID,
	})
}

// emit sends an event to every subscriber without blocking.
func (n *Notifier) emit(eventType string, data any) {
	event := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, sub := range n.subscribers {
		select {
		case sub.Events <- event:
		default:
			n.logger.Warn("subscriber event channel full, dropping event",
				"subscriber_id", sub.ID,
				"event_type", eventType,
			)
		}
	}
}
