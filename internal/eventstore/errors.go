package eventstore

import (
	"git.home.luguber.info/inful/refbuilder/internal/foundation/errors"
)

// Sentinel errors for event store operations. Errors returned by the store
// match these with errors.Is and carry the underlying cause.
var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.EventStoreError("could not open event store database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.EventStoreError("failed to initialize event store schema").Build()

	ErrEventAppendFailed = errors.EventStoreError("failed to append event to store").Build()
	ErrEventQueryFailed  = errors.EventStoreError("failed to query events from store").Build()
	ErrEventScanFailed   = errors.EventStoreError("failed to scan event rows").Build()

	// ErrMarshalPayloadFailed indicates JSON marshaling of an event payload failed.
	ErrMarshalPayloadFailed = errors.EventStoreError("failed to marshal event payload").Build()
)

// wrap attaches cause to a copy of the sentinel so errors.Is still matches.
func wrap(sentinel *errors.ClassifiedError, cause error) error {
	return errors.EventStoreError(sentinel.Message()).WithCause(cause).Build()
}
