package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/emberwallet/sparkstore/internal/deposit/domain"
	obsmetrics "github.com/emberwallet/sparkstore/internal/observability/metrics"
	"github.com/emberwallet/sparkstore/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
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

// NewRepository builds the unclaimed deposit tracker.
func NewRepository(p Params) domain.Repository {
	return &repository{
		db:      p.DB,
		log:     p.Log.Named("deposit.repository"),
		metrics: p.Metrics,
	}
}

type depositRow struct {
	Txid       string         `gorm:"column:txid"`
	Vout       uint32         `gorm:"column:vout"`
	AmountSats sql.NullInt64  `gorm:"column:amount_sats"`
	ClaimError sql.NullString `gorm:"column:claim_error"`
	RefundTx   sql.NullString `gorm:"column:refund_tx"`
	RefundTxid sql.NullString `gorm:"column:refund_txid"`
}

// Add tracks a newly detected deposit. A deposit already present keeps its
// recorded state untouched, re-detection never resets claim progress.
func (r *repository) Add(ctx context.Context, txid string, vout uint32, amountSats *uint64) error {
	if txid == "" {
		return domain.ErrDepositTxidRequired
	}

	var amount sql.NullInt64
	if amountSats != nil {
		amount = sql.NullInt64{Int64: int64(*amountSats), Valid: true}
	}

	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO unclaimed_deposits (txid, vout, amount_sats) VALUES (?, ?, ?)`,
		txid, vout, amount,
	).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil
		}
		return fmt.Errorf("add deposit %s:%d: %w", txid, vout, err)
	}
	r.metrics.RecordDepositTracked(ctx)
	return nil
}

// Delete removes a deposit after it has been claimed.
func (r *repository) Delete(ctx context.Context, txid string, vout uint32) error {
	if txid == "" {
		return domain.ErrDepositTxidRequired
	}
	err := r.db.WithContext(ctx).
		Exec(`DELETE FROM unclaimed_deposits WHERE txid = ? AND vout = ?`, txid, vout).Error
	if err != nil {
		return fmt.Errorf("delete deposit %s:%d: %w", txid, vout, err)
	}
	return nil
}

// List returns every tracked deposit. A deposit recorded before its amount
// was known reports zero sats.
func (r *repository) List(ctx context.Context) ([]domain.UnclaimedDeposit, error) {
	var rows []depositRow
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM unclaimed_deposits ORDER BY txid ASC, vout ASC`).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}

	deposits := make([]domain.UnclaimedDeposit, 0, len(rows))
	for _, row := range rows {
		deposit := domain.UnclaimedDeposit{
			Txid: row.Txid,
			Vout: row.Vout,
		}
		if row.AmountSats.Valid {
			deposit.AmountSats = uint64(row.AmountSats.Int64)
		}
		if row.ClaimError.Valid {
			deposit.ClaimError = json.RawMessage(row.ClaimError.String)
		}
		if row.RefundTx.Valid {
			tx := row.RefundTx.String
			deposit.RefundTx = &tx
		}
		if row.RefundTxid.Valid {
			txid := row.RefundTxid.String
			deposit.RefundTxid = &txid
		}
		deposits = append(deposits, deposit)
	}
	return deposits, nil
}

// Update records a claim attempt outcome. The two outcome kinds overwrite
// each other so a deposit never carries both a claim error and a refund.
func (r *repository) Update(ctx context.Context, txid string, vout uint32, outcome domain.DepositOutcome) error {
	if txid == "" {
		return domain.ErrDepositTxidRequired
	}

	var res *gorm.DB
	switch o := outcome.(type) {
	case domain.ClaimError:
		res = r.db.WithContext(ctx).Exec(
			`UPDATE unclaimed_deposits
			 SET claim_error = ?, refund_tx = NULL, refund_txid = NULL
			 WHERE txid = ? AND vout = ?`,
			string(o.Error), txid, vout,
		)
	case domain.Refund:
		res = r.db.WithContext(ctx).Exec(
			`UPDATE unclaimed_deposits
			 SET refund_tx = ?, refund_txid = ?, claim_error = NULL
			 WHERE txid = ? AND vout = ?`,
			o.RefundTx, o.RefundTxid, txid, vout,
		)
	default:
		return domain.ErrDepositOutcomeRequired
	}
	if res.Error != nil {
		return fmt.Errorf("update deposit %s:%d: %w", txid, vout, res.Error)
	}
	if res.RowsAffected == 0 {
		r.log.Warn("update for untracked deposit",
			zap.String("txid", txid),
			zap.Uint32("vout", vout),
		)
	}
	return nil
}
