// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Events are published only after the transaction that
// produced them has committed.
const (
	// Result events
	EventResultDraftCreated    EventType = "result.draft_created"
	EventResultComponentStored EventType = "result.component_stored"
	EventResultTransitioned    EventType = "result.transitioned"

	// Aggregate events
	EventAggregatesRecomputed EventType = "gpa.aggregates_recomputed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Result Events
// ═══════════════════════════════════════════════════════════════════════════

// ResultDraftCreatedEvent is emitted when a lecturer opens a new draft.
type ResultDraftCreatedEvent struct {
	BaseEvent
	StudentID  string `json:"student_id"`
	CourseID   string `json:"course_id"`
	SemesterID string `json:"semester_id"`
	ActorID    string `json:"actor_id"`
}

// Payload implements Event interface.
func (e ResultDraftCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"course_id":   e.CourseID,
		"semester_id": e.SemesterID,
		"actor_id":    e.ActorID,
	}
}

// NewResultDraftCreatedEvent creates a new ResultDraftCreatedEvent.
func NewResultDraftCreatedEvent(resultID, studentID, courseID, semesterID, actorID string) ResultDraftCreatedEvent {
	return ResultDraftCreatedEvent{
		BaseEvent:  NewBaseEvent(EventResultDraftCreated, resultID),
		StudentID:  studentID,
		CourseID:   courseID,
		SemesterID: semesterID,
		ActorID:    actorID,
	}
}

// ResultComponentStoredEvent is emitted when a component is added, updated or removed.
type ResultComponentStoredEvent struct {
	BaseEvent
	ComponentID string `json:"component_id"`
	Name        string `json:"name"`
	Removed     bool   `json:"removed"`
	ActorID     string `json:"actor_id"`
}

// Payload implements Event interface.
func (e ResultComponentStoredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"component_id": e.ComponentID,
		"name":         e.Name,
		"removed":      e.Removed,
		"actor_id":     e.ActorID,
	}
}

// NewResultComponentStoredEvent creates a new ResultComponentStoredEvent.
func NewResultComponentStoredEvent(resultID, componentID, name string, removed bool, actorID string) ResultComponentStoredEvent {
	return ResultComponentStoredEvent{
		BaseEvent:   NewBaseEvent(EventResultComponentStored, resultID),
		ComponentID: componentID,
		Name:        name,
		Removed:     removed,
		ActorID:     actorID,
	}
}

// ResultTransitionedEvent is emitted after a status change has committed.
type ResultTransitionedEvent struct {
	BaseEvent
	StudentID  string `json:"student_id"`
	CourseID   string `json:"course_id"`
	SemesterID string `json:"semester_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	ActorID    string `json:"actor_id"`
	Notes      string `json:"notes,omitempty"`
}

// Payload implements Event interface.
func (e ResultTransitionedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"course_id":   e.CourseID,
		"semester_id": e.SemesterID,
		"from":        e.From,
		"to":          e.To,
		"actor_id":    e.ActorID,
		"notes":       e.Notes,
	}
}

// NewResultTransitionedEvent creates a new ResultTransitionedEvent.
func NewResultTransitionedEvent(resultID, studentID, courseID, semesterID, from, to, actorID, notes string) ResultTransitionedEvent {
	return ResultTransitionedEvent{
		BaseEvent:  NewBaseEvent(EventResultTransitioned, resultID),
		StudentID:  studentID,
		CourseID:   courseID,
		SemesterID: semesterID,
		From:       from,
		To:         to,
		ActorID:    actorID,
		Notes:      notes,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Aggregate Events
// ═══════════════════════════════════════════════════════════════════════════

// AggregatesRecomputedEvent is emitted when a student's GPA and CGPA were rebuilt.
// Numbers travel as fixed-point strings so subscribers never see float rounding.
type AggregatesRecomputedEvent struct {
	BaseEvent
	SemesterID string `json:"semester_id"`
	GPA        string `json:"gpa"`
	CGPA       string `json:"cgpa"`
	Credits    int    `json:"credits"`
}

// Payload implements Event interface.
func (e AggregatesRecomputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"semester_id": e.SemesterID,
		"gpa":         e.GPA,
		"cgpa":        e.CGPA,
		"credits":     e.Credits,
	}
}

// NewAggregatesRecomputedEvent creates a new AggregatesRecomputedEvent.
func NewAggregatesRecomputedEvent(studentID, semesterID, gpa, cgpa string, credits int) AggregatesRecomputedEvent {
	return AggregatesRecomputedEvent{
		BaseEvent:  NewBaseEvent(EventAggregatesRecomputed, studentID),
		SemesterID: semesterID,
		GPA:        gpa,
		CGPA:       cgpa,
		Credits:    credits,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
