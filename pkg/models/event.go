package models

// EventAction says what happened to a record
type EventAction string

const (
	ActionCreated EventAction = "CREATED"
	ActionUpdated EventAction = "UPDATED"
)

// EntityType names the kind of record an event is about
type EntityType string

const (
	EntityConnectedAccount EntityType = "connectedAccount"
	EntityMessageChannel   EntityType = "messageChannel"
)

// EventRecord carries the before/after snapshots for one mutated record.
// Before is nil for CREATED.
type EventRecord struct {
	RecordID string
	Before   interface{}
	After    interface{}
}

// DomainEvent is one batch of mutations of a single entity type,
// emitted after the owning transaction has committed
type DomainEvent struct {
	EntityType  EntityType
	Action      EventAction
	WorkspaceID string
	Records     []EventRecord
}
