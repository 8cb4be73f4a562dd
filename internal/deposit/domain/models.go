package domain

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrDepositTxidRequired    = errors.New("deposit_txid_required")
	ErrDepositOutcomeRequired = errors.New("deposit_outcome_required")
)

// UnclaimedDeposit is an on-chain deposit awaiting claim or refund, keyed
// by (txid, vout). ClaimError and the refund pair are mutually exclusive;
// recording one clears the other.
type UnclaimedDeposit struct {
	Txid       string
	Vout       uint32
	AmountSats uint64
	ClaimError json.RawMessage
	RefundTx   *string
	RefundTxid *string
}

// DepositOutcome is the result of a claim attempt recorded against a
// tracked deposit.
type DepositOutcome interface {
	depositOutcome()
}

// ClaimError records a structured claim failure, clearing any prior refund.
type ClaimError struct {
	Error json.RawMessage
}

func (ClaimError) depositOutcome() {}

// Refund records the signed refund transaction, clearing any prior claim
// error.
type Refund struct {
	RefundTx   string
	RefundTxid string
}

func (Refund) depositOutcome() {}

// Repository tracks unclaimed deposits. Add is first-write-wins; Delete
// removes a deposit once claimed.
type Repository interface {
	Add(ctx context.Context, txid string, vout uint32, amountSats *uint64) error
	Delete(ctx context.Context, txid string, vout uint32) error
	List(ctx context.Context) ([]UnclaimedDeposit, error)
	Update(ctx context.Context, txid string, vout uint32, outcome DepositOutcome) error
}
