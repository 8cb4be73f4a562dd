package domain

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrPaymentRequired        = errors.New("payment_required")
	ErrPaymentIDRequired      = errors.New("payment_id_required")
	ErrPaymentDetailsRequired = errors.New("payment_details_required")
	ErrPaymentNotFound        = errors.New("payment_not_found")
	// ErrMissingHtlcStatus surfaces a stored Lightning payment whose
	// mandatory HTLC status is absent instead of silently defaulting it.
	ErrMissingHtlcStatus = errors.New("missing_htlc_status")
)

// Repository is the payment ledger store. Every multi-statement mutation
// runs in one transaction; Insert and SetMetadata merge on absence so a
// later write carrying only newly known fields never erases recorded ones.
type Repository interface {
	Insert(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)
	// GetByInvoice probes for an existing payment by Lightning invoice
	// text. A miss returns (nil, nil), not an error.
	GetByInvoice(ctx context.Context, invoice string) (*Payment, error)
	List(ctx context.Context, filter ListPaymentsFilter) ([]*Payment, error)
	// GetByParentIDs maps each parent id to its children ordered by
	// ascending timestamp. Payments with a parent never appear in List.
	GetByParentIDs(ctx context.Context, ids []string) (map[string][]*Payment, error)
	SetMetadata(ctx context.Context, id string, metadata Metadata) error
	GetMetadata(ctx context.Context, id string) (*Metadata, error)
	SetLnurlReceiveMetadata(ctx context.Context, id string, metadata json.RawMessage) error
}
