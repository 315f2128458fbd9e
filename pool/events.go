package pool

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Pool event types.
const (
	EventStubCreated    = "stub_created"
	EventStubBorrowed   = "stub_borrowed"
	EventStubReturned   = "stub_returned"
	EventStubDiscarded  = "stub_discarded"
	EventExhausted      = "exhausted"
	EventCleared        = "cleared"
	EventReconfigured   = "reconfigured"
	EventTrustContext   = "trust_context"
	EventShutdown       = "shutdown"
	EventLoggingAttach  = "logging_attached"
	EventBuildFailed    = "build_failed"
	EventUnknownReturn  = "unknown_return"
	EventEvictedIdle    = "evicted_idle"
	EventCloseStubError = "close_failed"
)

// Event outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event severities.
const (
	SeverityDebug   = "DEBUG"
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// Event is one structured pool lifecycle record.
type Event struct {
	Timestamp     string         `json:"timestamp"`
	EventType     string         `json:"event_type"`
	Severity      string         `json:"severity"`
	Pool          string         `json:"pool"`
	Target        string         `json:"target"`
	CorrelationID string         `json:"correlation_id"`
	Generation    uint64         `json:"generation"`
	Outcome       string         `json:"outcome"`
	Details       map[string]any `json:"details,omitempty"`
}

// String returns the JSON form of the event.
func (e *Event) String() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// EventLogger writes pool events. All events of one pool share a
// correlation ID.
type EventLogger struct {
	logger        *slog.Logger
	pool          string
	correlationID string
	clock         Clock
}

// NewEventLogger returns an event logger for the named pool. A nil logger
// disables events.
func NewEventLogger(logger *slog.Logger, pool string) *EventLogger {
	return &EventLogger{
		logger:        logger,
		pool:          pool,
		correlationID: uuid.New().String(),
		clock:         realClock{},
	}
}

// CorrelationID returns the ID attached to every event.
func (l *EventLogger) CorrelationID() string {
	return l.correlationID
}

// Log writes one event.
func (l *EventLogger) Log(eventType, severity, outcome, target string, generation uint64, details map[string]any) {
	if l == nil || l.logger == nil {
		return
	}
	event := &Event{
		Timestamp:     l.clock.Now().UTC().Format(time.RFC3339Nano),
		EventType:     eventType,
		Severity:      severity,
		Pool:          l.pool,
		Target:        target,
		CorrelationID: l.correlationID,
		Generation:    generation,
		Outcome:       outcome,
		Details:       details,
	}

	switch severity {
	case SeverityDebug:
		l.logger.Debug("PoolEvent", "event", event)
	case SeverityWarning:
		l.logger.Warn("PoolEvent", "event", event)
	case SeverityError:
		l.logger.Error("PoolEvent", "event", event)
	default:
		l.logger.Info("PoolEvent", "event", event)
	}
}
