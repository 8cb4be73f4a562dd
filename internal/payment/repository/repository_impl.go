package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emberwallet/sparkstore/internal/clock"
	obsmetrics "github.com/emberwallet/sparkstore/internal/observability/metrics"
	"github.com/emberwallet/sparkstore/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Params collects the repository dependencies.
type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type repository struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

// NewRepository builds the payment ledger store.
func NewRepository(p Params) domain.Repository {
	return &repository{
		db:      p.DB,
		log:     p.Log.Named("payment.repository"),
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

// Insert upserts the payment row and its details side row in one
// transaction. Mutable sub-fields merge on absence: a later insert carrying
// only newly known fields never erases previously recorded ones.
func (r *repository) Insert(ctx context.Context, payment *domain.Payment) error {
	if payment == nil {
		return domain.ErrPaymentRequired
	}
	if payment.ID == "" {
		return domain.ErrPaymentIDRequired
	}
	if payment.Details == nil {
		return domain.ErrPaymentDetailsRequired
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.upsertPaymentRow(tx, payment); err != nil {
			return err
		}
		switch details := payment.Details.(type) {
		case domain.LightningDetails:
			return r.upsertLightningDetails(tx, payment.ID, details)
		case *domain.LightningDetails:
			return r.upsertLightningDetails(tx, payment.ID, *details)
		case domain.SparkDetails:
			return r.upsertSparkDetails(tx, payment.ID, details)
		case *domain.SparkDetails:
			return r.upsertSparkDetails(tx, payment.ID, *details)
		case domain.TokenDetails:
			return r.upsertTokenDetails(tx, payment.ID, details)
		case *domain.TokenDetails:
			return r.upsertTokenDetails(tx, payment.ID, *details)
		default:
			// Withdraw and deposit references live on the payments row.
			return nil
		}
	})
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", payment.ID, err)
	}

	r.metrics.RecordPaymentPersisted(ctx, string(payment.Details.DetailsType()))
	return nil
}

func (r *repository) upsertPaymentRow(tx *gorm.DB, payment *domain.Payment) error {
	var existing paymentRow
	found, err := findRow(tx, &existing, `SELECT * FROM payments WHERE id = ?`, payment.ID)
	if err != nil {
		return err
	}

	method := nullString(payment.Method)
	if !method.Valid && found {
		method = existing.Method
	}

	withdrawTxID := existing.WithdrawTxID
	depositTxID := existing.DepositTxID
	switch details := payment.Details.(type) {
	case domain.WithdrawDetails:
		withdrawTxID = nullString(&details.TxID)
	case *domain.WithdrawDetails:
		withdrawTxID = nullString(&details.TxID)
	case domain.DepositDetails:
		depositTxID = nullString(&details.TxID)
	case *domain.DepositDetails:
		depositTxID = nullString(&details.TxID)
	}

	if found {
		return tx.Exec(
			`UPDATE payments
			 SET payment_type = ?, status = ?, amount = ?, fees = ?, timestamp = ?,
			     method = ?, details_type = ?, withdraw_tx_id = ?, deposit_tx_id = ?
			 WHERE id = ?`,
			string(payment.PaymentType), string(payment.Status),
			payment.Amount, payment.Fees, payment.Timestamp,
			method, string(payment.Details.DetailsType()), withdrawTxID, depositTxID,
			payment.ID,
		).Error
	}
	return tx.Exec(
		`INSERT INTO payments
		 (id, payment_type, status, amount, fees, timestamp, method, details_type, withdraw_tx_id, deposit_tx_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, string(payment.PaymentType), string(payment.Status),
		payment.Amount, payment.Fees, payment.Timestamp,
		method, string(payment.Details.DetailsType()), withdrawTxID, depositTxID,
	).Error
}

func (r *repository) upsertLightningDetails(tx *gorm.DB, id string, details domain.LightningDetails) error {
	var existing lightningRow
	found, err := findRow(tx, &existing, `SELECT * FROM payment_details_lightning WHERE payment_id = ?`, id)
	if err != nil {
		return err
	}

	preimage := nullString(details.Preimage)
	if !preimage.Valid && found {
		preimage = existing.Preimage
	}
	description := nullString(details.Description)
	if !description.Valid && found {
		description = existing.Description
	}

	htlc := details.Htlc
	if htlc.Preimage == nil && preimage.Valid {
		htlc.Preimage = stringPtr(preimage)
	}
	reconcileHtlcPreimage(&htlc)

	if found {
		return tx.Exec(
			`UPDATE payment_details_lightning
			 SET invoice = ?, payment_hash = ?, destination_pubkey = ?, description = ?,
			     preimage = ?, htlc_status = ?, htlc_expiry = ?
			 WHERE payment_id = ?`,
			details.Invoice, details.PaymentHash, details.DestinationPubkey, description,
			nullString(htlc.Preimage), string(htlc.Status), htlc.ExpiryTime,
			id,
		).Error
	}
	return tx.Exec(
		`INSERT INTO payment_details_lightning
		 (payment_id, invoice, payment_hash, destination_pubkey, description, preimage, htlc_status, htlc_expiry)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, details.Invoice, details.PaymentHash, details.DestinationPubkey, description,
		nullString(htlc.Preimage), string(htlc.Status), htlc.ExpiryTime,
	).Error
}

func (r *repository) upsertSparkDetails(tx *gorm.DB, id string, details domain.SparkDetails) error {
	var existing sparkRow
	found, err := findRow(tx, &existing, `SELECT * FROM payment_details_spark WHERE payment_id = ?`, id)
	if err != nil {
		return err
	}

	row := sparkRow{PaymentID: id}

	if details.InvoiceDetails != nil {
		row.InvoiceDetails, err = marshalNullable(details.InvoiceDetails)
		if err != nil {
			return err
		}
	} else if found {
		row.InvoiceDetails = existing.InvoiceDetails
	}

	if details.Htlc != nil {
		htlc := *details.Htlc
		if htlc.Preimage == nil && found && existing.HtlcPreimage.Valid {
			htlc.Preimage = stringPtr(existing.HtlcPreimage)
		}
		reconcileHtlcPreimage(&htlc)
		row.HtlcPaymentHash = nullString(&htlc.PaymentHash)
		row.HtlcPreimage = nullString(htlc.Preimage)
		status := string(htlc.Status)
		row.HtlcStatus = nullString(&status)
		row.HtlcExpiry.Int64 = int64(htlc.ExpiryTime)
		row.HtlcExpiry.Valid = true
	} else if found {
		row.HtlcPaymentHash = existing.HtlcPaymentHash
		row.HtlcPreimage = existing.HtlcPreimage
		row.HtlcStatus = existing.HtlcStatus
		row.HtlcExpiry = existing.HtlcExpiry
	}

	if details.ConversionInfo != nil {
		row.ConversionInfo, err = marshalNullable(details.ConversionInfo)
		if err != nil {
			return err
		}
	} else if found {
		row.ConversionInfo = existing.ConversionInfo
	}

	if found {
		return tx.Exec(
			`UPDATE payment_details_spark
			 SET invoice_details = ?, htlc_payment_hash = ?, htlc_preimage = ?,
			     htlc_status = ?, htlc_expiry = ?, conversion_info = ?
			 WHERE payment_id = ?`,
			row.InvoiceDetails, row.HtlcPaymentHash, row.HtlcPreimage,
			row.HtlcStatus, row.HtlcExpiry, row.ConversionInfo,
			id,
		).Error
	}
	return tx.Exec(
		`INSERT INTO payment_details_spark
		 (payment_id, invoice_details, htlc_payment_hash, htlc_preimage, htlc_status, htlc_expiry, conversion_info)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, row.InvoiceDetails, row.HtlcPaymentHash, row.HtlcPreimage,
		row.HtlcStatus, row.HtlcExpiry, row.ConversionInfo,
	).Error
}

func (r *repository) upsertTokenDetails(tx *gorm.DB, id string, details domain.TokenDetails) error {
	var existing tokenRow
	found, err := findRow(tx, &existing, `SELECT * FROM payment_details_token WHERE payment_id = ?`, id)
	if err != nil {
		return err
	}

	metadata, err := json.Marshal(details.Metadata)
	if err != nil {
		return fmt.Errorf("encode token metadata: %w", err)
	}

	invoiceDetails, err := marshalNullable(nullableAny(details.InvoiceDetails))
	if err != nil {
		return err
	}
	if !invoiceDetails.Valid && found {
		invoiceDetails = existing.InvoiceDetails
	}
	conversionInfo, err := marshalNullable(nullableAny(details.ConversionInfo))
	if err != nil {
		return err
	}
	if !conversionInfo.Valid && found {
		conversionInfo = existing.ConversionInfo
	}

	if found {
		return tx.Exec(
			`UPDATE payment_details_token
			 SET metadata = ?, tx_hash = ?, tx_type = ?, invoice_details = ?, conversion_info = ?
			 WHERE payment_id = ?`,
			string(metadata), details.TxHash, string(details.TxType), invoiceDetails, conversionInfo,
			id,
		).Error
	}
	return tx.Exec(
		`INSERT INTO payment_details_token
		 (payment_id, metadata, tx_hash, tx_type, invoice_details, conversion_info)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(metadata), details.TxHash, string(details.TxType), invoiceDetails, conversionInfo,
	).Error
}

// SetMetadata upserts the metadata side record with the same merge-on-absence
// discipline as Insert.
func (r *repository) SetMetadata(ctx context.Context, id string, metadata domain.Metadata) error {
	if id == "" {
		return domain.ErrPaymentIDRequired
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing metadataRow
		found, err := findRow(tx, &existing, `SELECT * FROM payment_metadata WHERE payment_id = ?`, id)
		if err != nil {
			return err
		}

		row := metadataRow{PaymentID: id}
		row.ParentPaymentID = nullString(metadata.ParentPaymentID)
		if !row.ParentPaymentID.Valid && found {
			row.ParentPaymentID = existing.ParentPaymentID
		}
		row.LnurlPayInfo, err = marshalNullable(nullableAny(metadata.LnurlPayInfo))
		if err != nil {
			return err
		}
		if !row.LnurlPayInfo.Valid && found {
			row.LnurlPayInfo = existing.LnurlPayInfo
		}
		row.LnurlWithdrawInfo, err = marshalNullable(nullableAny(metadata.LnurlWithdrawInfo))
		if err != nil {
			return err
		}
		if !row.LnurlWithdrawInfo.Valid && found {
			row.LnurlWithdrawInfo = existing.LnurlWithdrawInfo
		}
		if metadata.ConversionStatus != nil {
			status := string(*metadata.ConversionStatus)
			row.ConversionStatus = nullString(&status)
		} else if found {
			row.ConversionStatus = existing.ConversionStatus
		}

		if found {
			return tx.Exec(
				`UPDATE payment_metadata
				 SET parent_payment_id = ?, lnurl_pay_info = ?, lnurl_withdraw_info = ?, conversion_status = ?
				 WHERE payment_id = ?`,
				row.ParentPaymentID, row.LnurlPayInfo, row.LnurlWithdrawInfo, row.ConversionStatus,
				id,
			).Error
		}
		return tx.Exec(
			`INSERT INTO payment_metadata
			 (payment_id, parent_payment_id, lnurl_pay_info, lnurl_withdraw_info, conversion_status)
			 VALUES (?, ?, ?, ?, ?)`,
			id, row.ParentPaymentID, row.LnurlPayInfo, row.LnurlWithdrawInfo, row.ConversionStatus,
		).Error
	})
	if err != nil {
		return fmt.Errorf("set metadata for payment %s: %w", id, err)
	}
	return nil
}

// GetMetadata returns the metadata side record, (nil, nil) when absent.
func (r *repository) GetMetadata(ctx context.Context, id string) (*domain.Metadata, error) {
	if id == "" {
		return nil, domain.ErrPaymentIDRequired
	}
	var row metadataRow
	found, err := findRow(r.db.WithContext(ctx), &row, `SELECT * FROM payment_metadata WHERE payment_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get metadata for payment %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return row.toDomain()
}

// SetLnurlReceiveMetadata records the opaque LNURL receive payload for a
// payment, replacing any previous value.
func (r *repository) SetLnurlReceiveMetadata(ctx context.Context, id string, metadata json.RawMessage) error {
	if id == "" {
		return domain.ErrPaymentIDRequired
	}
	now := uint64(r.clock.Now().Unix())
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE lnurl_receive_metadata SET metadata = ?, updated_at = ? WHERE payment_id = ?`,
			string(metadata), now, id,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Exec(
			`INSERT INTO lnurl_receive_metadata (payment_id, metadata, updated_at) VALUES (?, ?, ?)`,
			id, string(metadata), now,
		).Error
	})
	if err != nil {
		return fmt.Errorf("set lnurl receive metadata for payment %s: %w", id, err)
	}
	return nil
}

// reconcileHtlcPreimage advances HTLC status once a preimage is known. A
// revealed preimage settles the conditional payment regardless of what the
// caller still believes.
func reconcileHtlcPreimage(htlc *domain.HtlcDetails) {
	if htlc.Preimage != nil && htlc.Status == domain.HtlcStatusWaitingForPreimage {
		htlc.Status = domain.HtlcStatusSettled
	}
}

// findRow scans a single row, reporting whether one matched.
func findRow(tx *gorm.DB, dest any, query string, args ...any) (bool, error) {
	res := tx.Raw(query, args...).Scan(dest)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func nullableAny[T any](v *T) any {
	if v == nil {
		return nil
	}
	return v
}
