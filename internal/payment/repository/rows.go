package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/emberwallet/sparkstore/internal/payment/domain"
)

type paymentRow struct {
	ID           string         `gorm:"column:id"`
	PaymentType  string         `gorm:"column:payment_type"`
	Status       string         `gorm:"column:status"`
	Amount       uint64         `gorm:"column:amount"`
	Fees         uint64         `gorm:"column:fees"`
	Timestamp    uint64         `gorm:"column:timestamp"`
	Method       sql.NullString `gorm:"column:method"`
	DetailsType  string         `gorm:"column:details_type"`
	WithdrawTxID sql.NullString `gorm:"column:withdraw_tx_id"`
	DepositTxID  sql.NullString `gorm:"column:deposit_tx_id"`
}

type lightningRow struct {
	PaymentID         string         `gorm:"column:payment_id"`
	Invoice           string         `gorm:"column:invoice"`
	PaymentHash       string         `gorm:"column:payment_hash"`
	DestinationPubkey string         `gorm:"column:destination_pubkey"`
	Description       sql.NullString `gorm:"column:description"`
	Preimage          sql.NullString `gorm:"column:preimage"`
	HtlcStatus        string         `gorm:"column:htlc_status"`
	HtlcExpiry        uint64         `gorm:"column:htlc_expiry"`
}

type sparkRow struct {
	PaymentID       string         `gorm:"column:payment_id"`
	InvoiceDetails  sql.NullString `gorm:"column:invoice_details"`
	HtlcPaymentHash sql.NullString `gorm:"column:htlc_payment_hash"`
	HtlcPreimage    sql.NullString `gorm:"column:htlc_preimage"`
	HtlcStatus      sql.NullString `gorm:"column:htlc_status"`
	HtlcExpiry      sql.NullInt64  `gorm:"column:htlc_expiry"`
	ConversionInfo  sql.NullString `gorm:"column:conversion_info"`
}

type tokenRow struct {
	PaymentID      string         `gorm:"column:payment_id"`
	Metadata       string         `gorm:"column:metadata"`
	TxHash         string         `gorm:"column:tx_hash"`
	TxType         string         `gorm:"column:tx_type"`
	InvoiceDetails sql.NullString `gorm:"column:invoice_details"`
	ConversionInfo sql.NullString `gorm:"column:conversion_info"`
}

type metadataRow struct {
	PaymentID         string         `gorm:"column:payment_id"`
	ParentPaymentID   sql.NullString `gorm:"column:parent_payment_id"`
	LnurlPayInfo      sql.NullString `gorm:"column:lnurl_pay_info"`
	LnurlWithdrawInfo sql.NullString `gorm:"column:lnurl_withdraw_info"`
	ConversionStatus  sql.NullString `gorm:"column:conversion_status"`
}

type lnurlReceiveRow struct {
	PaymentID string `gorm:"column:payment_id"`
	Metadata  string `gorm:"column:metadata"`
	UpdatedAt uint64 `gorm:"column:updated_at"`
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	value := ns.String
	return &value
}

func marshalNullable(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func unmarshalInvoiceDetails(ns sql.NullString) (*domain.SparkInvoiceDetails, error) {
	if !ns.Valid {
		return nil, nil
	}
	var details domain.SparkInvoiceDetails
	if err := json.Unmarshal([]byte(ns.String), &details); err != nil {
		return nil, fmt.Errorf("decode invoice details: %w", err)
	}
	return &details, nil
}

func unmarshalConversionInfo(ns sql.NullString) (*domain.ConversionInfo, error) {
	if !ns.Valid {
		return nil, nil
	}
	var info domain.ConversionInfo
	if err := json.Unmarshal([]byte(ns.String), &info); err != nil {
		return nil, fmt.Errorf("decode conversion info: %w", err)
	}
	return &info, nil
}

func (row metadataRow) toDomain() (*domain.Metadata, error) {
	metadata := &domain.Metadata{
		ParentPaymentID: stringPtr(row.ParentPaymentID),
	}
	if row.LnurlPayInfo.Valid {
		var info domain.LnurlPayInfo
		if err := json.Unmarshal([]byte(row.LnurlPayInfo.String), &info); err != nil {
			return nil, fmt.Errorf("decode lnurl pay info: %w", err)
		}
		metadata.LnurlPayInfo = &info
	}
	if row.LnurlWithdrawInfo.Valid {
		var info domain.LnurlWithdrawInfo
		if err := json.Unmarshal([]byte(row.LnurlWithdrawInfo.String), &info); err != nil {
			return nil, fmt.Errorf("decode lnurl withdraw info: %w", err)
		}
		metadata.LnurlWithdrawInfo = &info
	}
	if row.ConversionStatus.Valid {
		status := domain.ConversionStatus(row.ConversionStatus.String)
		metadata.ConversionStatus = &status
	}
	return metadata, nil
}
