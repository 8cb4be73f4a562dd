package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emberwallet/sparkstore/internal/payment/domain"
	"gorm.io/gorm"
)

// GetByID returns the fully reconstructed payment or ErrPaymentNotFound.
func (r *repository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	if id == "" {
		return nil, domain.ErrPaymentIDRequired
	}
	payments, err := r.loadPayments(r.db.WithContext(ctx), []string{id})
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", id, err)
	}
	if len(payments) == 0 {
		return nil, fmt.Errorf("get payment %s: %w", id, domain.ErrPaymentNotFound)
	}
	return payments[0], nil
}

// GetByInvoice probes for an existing payment by Lightning invoice text.
func (r *repository) GetByInvoice(ctx context.Context, invoice string) (*domain.Payment, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Raw(`SELECT payment_id FROM payment_details_lightning WHERE invoice = ?`, invoice).
		Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("get payment by invoice: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	payments, err := r.loadPayments(r.db.WithContext(ctx), ids[:1])
	if err != nil {
		return nil, fmt.Errorf("get payment by invoice: %w", err)
	}
	if len(payments) == 0 {
		return nil, nil
	}
	return payments[0], nil
}

// loadPayments reconstructs full payments for the given ids, preserving
// the input order. Side tables are fetched in bulk, one query per variant,
// and dispatch is strictly on the stored details_type discriminant.
func (r *repository) loadPayments(tx *gorm.DB, ids []string) ([]*domain.Payment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []paymentRow
	if err := tx.Raw(`SELECT * FROM payments WHERE id IN (?)`, ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	byID := make(map[string]paymentRow, len(rows))
	var lightningIDs, sparkIDs, tokenIDs []string
	for _, row := range rows {
		byID[row.ID] = row
		switch domain.DetailsType(row.DetailsType) {
		case domain.DetailsTypeLightning:
			lightningIDs = append(lightningIDs, row.ID)
		case domain.DetailsTypeSpark:
			sparkIDs = append(sparkIDs, row.ID)
		case domain.DetailsTypeToken:
			tokenIDs = append(tokenIDs, row.ID)
		}
	}

	lightning, err := r.loadLightningDetails(tx, lightningIDs)
	if err != nil {
		return nil, err
	}
	spark, err := loadSparkDetails(tx, sparkIDs)
	if err != nil {
		return nil, err
	}
	token, err := loadTokenDetails(tx, tokenIDs)
	if err != nil {
		return nil, err
	}

	payments := make([]*domain.Payment, 0, len(rows))
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			continue
		}
		payment := &domain.Payment{
			ID:          row.ID,
			PaymentType: domain.PaymentType(row.PaymentType),
			Status:      domain.PaymentStatus(row.Status),
			Amount:      row.Amount,
			Fees:        row.Fees,
			Timestamp:   row.Timestamp,
			Method:      stringPtr(row.Method),
		}
		switch domain.DetailsType(row.DetailsType) {
		case domain.DetailsTypeLightning:
			details, ok := lightning[id]
			if !ok {
				return nil, fmt.Errorf("payment %s: missing lightning details row", id)
			}
			payment.Details = details
		case domain.DetailsTypeSpark:
			payment.Details = spark[id]
		case domain.DetailsTypeToken:
			details, ok := token[id]
			if !ok {
				return nil, fmt.Errorf("payment %s: missing token details row", id)
			}
			payment.Details = details
		case domain.DetailsTypeWithdraw:
			if !row.WithdrawTxID.Valid {
				return nil, fmt.Errorf("payment %s: missing withdraw tx id", id)
			}
			payment.Details = domain.WithdrawDetails{TxID: row.WithdrawTxID.String}
		case domain.DetailsTypeDeposit:
			if !row.DepositTxID.Valid {
				return nil, fmt.Errorf("payment %s: missing deposit tx id", id)
			}
			payment.Details = domain.DepositDetails{TxID: row.DepositTxID.String}
		default:
			return nil, fmt.Errorf("payment %s: unknown details type %q", id, row.DetailsType)
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

func (r *repository) loadLightningDetails(tx *gorm.DB, ids []string) (map[string]domain.LightningDetails, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []lightningRow
	if err := tx.Raw(`SELECT * FROM payment_details_lightning WHERE payment_id IN (?)`, ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	var metadataRows []metadataRow
	if err := tx.Raw(`SELECT * FROM payment_metadata WHERE payment_id IN (?)`, ids).Scan(&metadataRows).Error; err != nil {
		return nil, err
	}
	var receiveRows []lnurlReceiveRow
	if err := tx.Raw(`SELECT * FROM lnurl_receive_metadata WHERE payment_id IN (?)`, ids).Scan(&receiveRows).Error; err != nil {
		return nil, err
	}

	metadataByID := make(map[string]metadataRow, len(metadataRows))
	for _, row := range metadataRows {
		metadataByID[row.PaymentID] = row
	}
	receiveByID := make(map[string]json.RawMessage, len(receiveRows))
	for _, row := range receiveRows {
		receiveByID[row.PaymentID] = json.RawMessage(row.Metadata)
	}

	details := make(map[string]domain.LightningDetails, len(rows))
	for _, row := range rows {
		if row.HtlcStatus == "" {
			return nil, fmt.Errorf("payment %s: %w", row.PaymentID, domain.ErrMissingHtlcStatus)
		}
		entry := domain.LightningDetails{
			Invoice:           row.Invoice,
			PaymentHash:       row.PaymentHash,
			DestinationPubkey: row.DestinationPubkey,
			Description:       stringPtr(row.Description),
			Preimage:          stringPtr(row.Preimage),
			Htlc: domain.HtlcDetails{
				PaymentHash: row.PaymentHash,
				Preimage:    stringPtr(row.Preimage),
				ExpiryTime:  row.HtlcExpiry,
				Status:      domain.HtlcStatus(row.HtlcStatus),
			},
			LnurlReceiveData: receiveByID[row.PaymentID],
		}
		if meta, ok := metadataByID[row.PaymentID]; ok {
			decoded, err := meta.toDomain()
			if err != nil {
				return nil, err
			}
			entry.LnurlPayInfo = decoded.LnurlPayInfo
			entry.LnurlWithdrawInfo = decoded.LnurlWithdrawInfo
		}
		details[row.PaymentID] = entry
	}
	return details, nil
}

func loadSparkDetails(tx *gorm.DB, ids []string) (map[string]domain.SparkDetails, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []sparkRow
	if err := tx.Raw(`SELECT * FROM payment_details_spark WHERE payment_id IN (?)`, ids).Scan(&rows).Error; err != nil {
		return nil, err
	}

	details := make(map[string]domain.SparkDetails, len(rows))
	for _, row := range rows {
		var err error
		entry := domain.SparkDetails{}
		entry.InvoiceDetails, err = unmarshalInvoiceDetails(row.InvoiceDetails)
		if err != nil {
			return nil, fmt.Errorf("payment %s: %w", row.PaymentID, err)
		}
		entry.ConversionInfo, err = unmarshalConversionInfo(row.ConversionInfo)
		if err != nil {
			return nil, fmt.Errorf("payment %s: %w", row.PaymentID, err)
		}
		if row.HtlcPaymentHash.Valid {
			if !row.HtlcStatus.Valid || row.HtlcStatus.String == "" {
				return nil, fmt.Errorf("payment %s: %w", row.PaymentID, domain.ErrMissingHtlcStatus)
			}
			entry.Htlc = &domain.HtlcDetails{
				PaymentHash: row.HtlcPaymentHash.String,
				Preimage:    stringPtr(row.HtlcPreimage),
				ExpiryTime:  uint64(row.HtlcExpiry.Int64),
				Status:      domain.HtlcStatus(row.HtlcStatus.String),
			}
		}
		details[row.PaymentID] = entry
	}
	// Spark payments without any stored sub-detail have no side row.
	return details, nil
}

func loadTokenDetails(tx *gorm.DB, ids []string) (map[string]domain.TokenDetails, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []tokenRow
	if err := tx.Raw(`SELECT * FROM payment_details_token WHERE payment_id IN (?)`, ids).Scan(&rows).Error; err != nil {
		return nil, err
	}

	details := make(map[string]domain.TokenDetails, len(rows))
	for _, row := range rows {
		var metadata domain.TokenMetadata
		if err := json.Unmarshal([]byte(row.Metadata), &metadata); err != nil {
			return nil, fmt.Errorf("payment %s: decode token metadata: %w", row.PaymentID, err)
		}
		entry := domain.TokenDetails{
			Metadata: metadata,
			TxHash:   row.TxHash,
			TxType:   domain.TokenTxType(row.TxType),
		}
		var err error
		entry.InvoiceDetails, err = unmarshalInvoiceDetails(row.InvoiceDetails)
		if err != nil {
			return nil, fmt.Errorf("payment %s: %w", row.PaymentID, err)
		}
		entry.ConversionInfo, err = unmarshalConversionInfo(row.ConversionInfo)
		if err != nil {
			return nil, fmt.Errorf("payment %s: %w", row.PaymentID, err)
		}
		details[row.PaymentID] = entry
	}
	return details, nil
}
