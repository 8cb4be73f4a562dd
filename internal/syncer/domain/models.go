package domain

import (
	"context"
	"errors"

	"gorm.io/datatypes"
)

var (
	ErrRecordTypeRequired = errors.New("record_type_required")
	ErrDataIDRequired     = errors.New("data_id_required")
)

// Record is one revisioned sync payload keyed by (RecordType, DataID). The
// engine treats Data as opaque; payments are one record type among others.
type Record struct {
	RecordType    string
	DataID        string
	Revision      uint64
	SchemaVersion string
	CommitTime    uint64
	Data          datatypes.JSON
}

// OutgoingChange is a local change awaiting remote acknowledgment.
// UpdatedFields names the fields the change touched so the transport can
// ship a sparse patch.
type OutgoingChange struct {
	Record        Record
	LocalRevision uint64
	UpdatedFields []string
}

// PendingOutgoing pairs an outgoing change with the converged parent state,
// nil when the record has never converged.
type PendingOutgoing struct {
	Change OutgoingChange
	Parent *Record
}

// PendingIncoming pairs an unmerged incoming record with the converged
// parent state, nil when the record has never converged.
type PendingIncoming struct {
	Record Record
	Parent *Record
}

// Repository is the sync bookkeeping store. It orders and persists
// revisions; merge policy belongs to the caller inspecting parent versus
// incoming or outgoing payloads.
type Repository interface {
	// AddOutgoingChange allocates the next local revision and appends the
	// change, returning the allocated revision.
	AddOutgoingChange(ctx context.Context, record Record, updatedFields []string) (uint64, error)
	// CompleteOutgoingSync removes the acknowledged outgoing row and
	// upserts the record into converged state. A missing outgoing row is
	// logged as a consistency warning, not an error.
	CompleteOutgoingSync(ctx context.Context, record Record, localRevision uint64) error
	GetPendingOutgoingChanges(ctx context.Context, limit uint32) ([]PendingOutgoing, error)
	GetLatestOutgoingChange(ctx context.Context) (*PendingOutgoing, error)
	// GetLastRevision returns the global watermark, zero when nothing has
	// ever converged.
	GetLastRevision(ctx context.Context) (uint64, error)
	InsertIncomingRecords(ctx context.Context, records []Record) error
	GetIncomingRecords(ctx context.Context, limit uint32) ([]PendingIncoming, error)
	DeleteIncomingRecord(ctx context.Context, record Record) error
	UpdateFromIncoming(ctx context.Context, record Record) error
}
