package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	obsmetrics "github.com/emberwallet/sparkstore/internal/observability/metrics"
	"github.com/emberwallet/sparkstore/internal/syncer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Params collects the repository dependencies.
type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type repository struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

// NewRepository builds the sync bookkeeping store.
func NewRepository(p Params) domain.Repository {
	return &repository{
		db:      p.DB,
		log:     p.Log.Named("syncer.repository"),
		metrics: p.Metrics,
	}
}

type outgoingRow struct {
	RecordType    string         `gorm:"column:record_type"`
	DataID        string         `gorm:"column:data_id"`
	LocalRevision uint64         `gorm:"column:local_revision"`
	Revision      uint64         `gorm:"column:revision"`
	SchemaVersion string         `gorm:"column:schema_version"`
	CommitTime    uint64         `gorm:"column:commit_time"`
	Data          string         `gorm:"column:data"`
	UpdatedFields sql.NullString `gorm:"column:updated_fields"`
}

type incomingRow struct {
	RecordType    string `gorm:"column:record_type"`
	DataID        string `gorm:"column:data_id"`
	Revision      uint64 `gorm:"column:revision"`
	SchemaVersion string `gorm:"column:schema_version"`
	CommitTime    uint64 `gorm:"column:commit_time"`
	Data          string `gorm:"column:data"`
}

type stateRow struct {
	RecordType    string `gorm:"column:record_type"`
	DataID        string `gorm:"column:data_id"`
	Revision      uint64 `gorm:"column:revision"`
	SchemaVersion string `gorm:"column:schema_version"`
	CommitTime    uint64 `gorm:"column:commit_time"`
	Data          string `gorm:"column:data"`
}

func (row stateRow) toRecord() domain.Record {
	return domain.Record{
		RecordType:    row.RecordType,
		DataID:        row.DataID,
		Revision:      row.Revision,
		SchemaVersion: row.SchemaVersion,
		CommitTime:    row.CommitTime,
		Data:          datatypes.JSON(row.Data),
	}
}

// AddOutgoingChange appends a local change to the outgoing log. The local
// revision comes from a single counter row updated inside the same
// transaction as the insert; the row lock serializes concurrent writers so
// no two changes ever share a revision and no writer observes a stale
// maximum.
func (r *repository) AddOutgoingChange(ctx context.Context, record domain.Record, updatedFields []string) (uint64, error) {
	if record.RecordType == "" {
		return 0, domain.ErrRecordTypeRequired
	}
	if record.DataID == "" {
		return 0, domain.ErrDataIDRequired
	}

	var fields sql.NullString
	if updatedFields != nil {
		raw, err := json.Marshal(updatedFields)
		if err != nil {
			return 0, fmt.Errorf("add outgoing change: encode updated fields: %w", err)
		}
		fields = sql.NullString{String: string(raw), Valid: true}
	}

	var localRevision uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`UPDATE sync_local_revision SET revision = revision + 1 WHERE id = 1`).Error; err != nil {
			return err
		}
		if err := tx.Raw(`SELECT revision FROM sync_local_revision WHERE id = 1`).Scan(&localRevision).Error; err != nil {
			return err
		}
		return tx.Exec(
			`INSERT INTO sync_outgoing
			 (record_type, data_id, local_revision, revision, schema_version, commit_time, data, updated_fields)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			record.RecordType, record.DataID, localRevision,
			record.Revision, record.SchemaVersion, record.CommitTime,
			string(record.Data), fields,
		).Error
	})
	if err != nil {
		return 0, fmt.Errorf("add outgoing change %s/%s: %w", record.RecordType, record.DataID, err)
	}

	r.metrics.RecordSyncOutgoing(ctx, record.RecordType)
	return localRevision, nil
}

// CompleteOutgoingSync converges an acknowledged change: the outgoing row
// is removed, the record becomes current truth, and the watermark advances.
func (r *repository) CompleteOutgoingSync(ctx context.Context, record domain.Record, localRevision uint64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`DELETE FROM sync_outgoing WHERE record_type = ? AND data_id = ? AND local_revision = ?`,
			record.RecordType, record.DataID, localRevision,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// The remote acknowledged a change we no longer hold. Treated
			// as already resolved; still converge the record.
			r.log.Warn("acknowledged outgoing change not found",
				zap.String("record_type", record.RecordType),
				zap.String("data_id", record.DataID),
				zap.Uint64("local_revision", localRevision),
			)
		}
		if err := r.upsertState(tx, record); err != nil {
			return err
		}
		return advanceWatermark(tx, record.Revision)
	})
	if err != nil {
		return fmt.Errorf("complete outgoing sync %s/%s: %w", record.RecordType, record.DataID, err)
	}
	return nil
}

// GetPendingOutgoingChanges returns unacknowledged changes oldest first,
// each paired with the converged parent state.
func (r *repository) GetPendingOutgoingChanges(ctx context.Context, limit uint32) ([]domain.PendingOutgoing, error) {
	var rows []outgoingRow
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM sync_outgoing ORDER BY local_revision ASC LIMIT ?`, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get pending outgoing changes: %w", err)
	}
	return r.attachOutgoingParents(ctx, rows)
}

// GetLatestOutgoingChange returns the most recent unacknowledged change,
// nil when the outgoing log is empty.
func (r *repository) GetLatestOutgoingChange(ctx context.Context) (*domain.PendingOutgoing, error) {
	var rows []outgoingRow
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM sync_outgoing ORDER BY local_revision DESC LIMIT 1`).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get latest outgoing change: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	pending, err := r.attachOutgoingParents(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &pending[0], nil
}

func (r *repository) attachOutgoingParents(ctx context.Context, rows []outgoingRow) ([]domain.PendingOutgoing, error) {
	pending := make([]domain.PendingOutgoing, 0, len(rows))
	for _, row := range rows {
		change := domain.OutgoingChange{
			Record: domain.Record{
				RecordType:    row.RecordType,
				DataID:        row.DataID,
				Revision:      row.Revision,
				SchemaVersion: row.SchemaVersion,
				CommitTime:    row.CommitTime,
				Data:          datatypes.JSON(row.Data),
			},
			LocalRevision: row.LocalRevision,
		}
		if row.UpdatedFields.Valid {
			if err := json.Unmarshal([]byte(row.UpdatedFields.String), &change.UpdatedFields); err != nil {
				return nil, fmt.Errorf("decode updated fields for %s/%s: %w", row.RecordType, row.DataID, err)
			}
		}
		parent, err := r.getState(ctx, row.RecordType, row.DataID)
		if err != nil {
			return nil, err
		}
		pending = append(pending, domain.PendingOutgoing{Change: change, Parent: parent})
	}
	return pending, nil
}

// GetLastRevision returns the convergence watermark.
func (r *repository) GetLastRevision(ctx context.Context) (uint64, error) {
	var revision uint64
	err := r.db.WithContext(ctx).
		Raw(`SELECT COALESCE(MAX(revision), 0) FROM sync_revision WHERE id = 1`).
		Scan(&revision).Error
	if err != nil {
		return 0, fmt.Errorf("get last revision: %w", err)
	}
	return revision, nil
}

// InsertIncomingRecords stores remote changes awaiting merge. The same
// identity may hold several pending revisions at once; re-delivery of an
// already stored revision overwrites it in place.
func (r *repository) InsertIncomingRecords(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			if record.RecordType == "" {
				return domain.ErrRecordTypeRequired
			}
			if record.DataID == "" {
				return domain.ErrDataIDRequired
			}
			if err := r.upsertIncoming(tx, record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert incoming records: %w", err)
	}
	for _, record := range records {
		r.metrics.RecordSyncIncoming(ctx, record.RecordType)
	}
	return nil
}

// GetIncomingRecords returns unmerged remote changes in ascending revision
// order, each paired with the converged parent state.
func (r *repository) GetIncomingRecords(ctx context.Context, limit uint32) ([]domain.PendingIncoming, error) {
	var rows []incomingRow
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM sync_incoming ORDER BY revision ASC LIMIT ?`, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get incoming records: %w", err)
	}

	pending := make([]domain.PendingIncoming, 0, len(rows))
	for _, row := range rows {
		parent, err := r.getState(ctx, row.RecordType, row.DataID)
		if err != nil {
			return nil, err
		}
		pending = append(pending, domain.PendingIncoming{
			Record: domain.Record{
				RecordType:    row.RecordType,
				DataID:        row.DataID,
				Revision:      row.Revision,
				SchemaVersion: row.SchemaVersion,
				CommitTime:    row.CommitTime,
				Data:          datatypes.JSON(row.Data),
			},
			Parent: parent,
		})
	}
	return pending, nil
}

// DeleteIncomingRecord removes one fully processed incoming row.
func (r *repository) DeleteIncomingRecord(ctx context.Context, record domain.Record) error {
	err := r.db.WithContext(ctx).Exec(
		`DELETE FROM sync_incoming WHERE record_type = ? AND data_id = ? AND revision = ?`,
		record.RecordType, record.DataID, record.Revision,
	).Error
	if err != nil {
		return fmt.Errorf("delete incoming record %s/%s: %w", record.RecordType, record.DataID, err)
	}
	return nil
}

// UpdateFromIncoming converges a merged incoming record, mirroring the
// convergence step of CompleteOutgoingSync.
func (r *repository) UpdateFromIncoming(ctx context.Context, record domain.Record) error {
	if record.RecordType == "" {
		return domain.ErrRecordTypeRequired
	}
	if record.DataID == "" {
		return domain.ErrDataIDRequired
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.upsertState(tx, record); err != nil {
			return err
		}
		return advanceWatermark(tx, record.Revision)
	})
	if err != nil {
		return fmt.Errorf("update from incoming %s/%s: %w", record.RecordType, record.DataID, err)
	}
	return nil
}

func (r *repository) getState(ctx context.Context, recordType, dataID string) (*domain.Record, error) {
	var rows []stateRow
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM sync_state WHERE record_type = ? AND data_id = ?`, recordType, dataID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get sync state %s/%s: %w", recordType, dataID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	record := rows[0].toRecord()
	return &record, nil
}

func (r *repository) upsertState(tx *gorm.DB, record domain.Record) error {
	if tx.Dialector.Name() == "mysql" {
		return tx.Exec(
			`INSERT INTO sync_state (record_type, data_id, revision, schema_version, commit_time, data)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE
			 revision = VALUES(revision), schema_version = VALUES(schema_version),
			 commit_time = VALUES(commit_time), data = VALUES(data)`,
			record.RecordType, record.DataID, record.Revision,
			record.SchemaVersion, record.CommitTime, string(record.Data),
		).Error
	}
	return tx.Exec(
		`INSERT INTO sync_state (record_type, data_id, revision, schema_version, commit_time, data)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (record_type, data_id) DO UPDATE SET
		 revision = excluded.revision, schema_version = excluded.schema_version,
		 commit_time = excluded.commit_time, data = excluded.data`,
		record.RecordType, record.DataID, record.Revision,
		record.SchemaVersion, record.CommitTime, string(record.Data),
	).Error
}

func (r *repository) upsertIncoming(tx *gorm.DB, record domain.Record) error {
	if tx.Dialector.Name() == "mysql" {
		return tx.Exec(
			`INSERT INTO sync_incoming (record_type, data_id, revision, schema_version, commit_time, data)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE
			 schema_version = VALUES(schema_version), commit_time = VALUES(commit_time), data = VALUES(data)`,
			record.RecordType, record.DataID, record.Revision,
			record.SchemaVersion, record.CommitTime, string(record.Data),
		).Error
	}
	return tx.Exec(
		`INSERT INTO sync_incoming (record_type, data_id, revision, schema_version, commit_time, data)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (record_type, data_id, revision) DO UPDATE SET
		 schema_version = excluded.schema_version, commit_time = excluded.commit_time, data = excluded.data`,
		record.RecordType, record.DataID, record.Revision,
		record.SchemaVersion, record.CommitTime, string(record.Data),
	).Error
}

// advanceWatermark raises the global watermark to the given revision, never
// lowering it.
func advanceWatermark(tx *gorm.DB, revision uint64) error {
	return tx.Exec(
		`UPDATE sync_revision
		 SET revision = CASE WHEN ? > revision THEN ? ELSE revision END
		 WHERE id = 1`,
		revision, revision,
	).Error
}
