package domain

import "encoding/json"

// PaymentType is the direction of a payment relative to this wallet.
type PaymentType string

const (
	PaymentTypeSend    PaymentType = "send"
	PaymentTypeReceive PaymentType = "receive"
)

// PaymentStatus is the terminality of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// DetailsType is the stored discriminant identifying which PaymentDetails
// variant a payment carries. Reads dispatch on it exclusively.
type DetailsType string

const (
	DetailsTypeLightning DetailsType = "lightning"
	DetailsTypeSpark     DetailsType = "spark"
	DetailsTypeToken     DetailsType = "token"
	DetailsTypeWithdraw  DetailsType = "withdraw"
	DetailsTypeDeposit   DetailsType = "deposit"
)

// HtlcStatus drives whether a pending conditional payment is claimable.
type HtlcStatus string

const (
	HtlcStatusWaitingForPreimage HtlcStatus = "waiting_for_preimage"
	HtlcStatusSettled            HtlcStatus = "settled"
	HtlcStatusCancelled          HtlcStatus = "cancelled"
)

// TokenTxType classifies a token transaction.
type TokenTxType string

const (
	TokenTxTypeTransfer TokenTxType = "transfer"
	TokenTxTypeMint     TokenTxType = "mint"
	TokenTxTypeBurn     TokenTxType = "burn"
)

// ConversionStatus tracks the progress of a conversion leg.
type ConversionStatus string

const (
	ConversionStatusPending      ConversionStatus = "pending"
	ConversionStatusCompleted    ConversionStatus = "completed"
	ConversionStatusRefundNeeded ConversionStatus = "refund_needed"
	ConversionStatusRefunded     ConversionStatus = "refunded"
)

// AssetSats is the asset filter sentinel matching sats-denominated
// (non-token) payments.
const AssetSats = "sat"

// Payment is one row of the ledger. Amounts are in the smallest currency
// unit, never floating point. Payments are created once and mutated in
// place as status and HTLC sub-state advance; they are never deleted.
type Payment struct {
	ID          string
	PaymentType PaymentType
	Status      PaymentStatus
	Amount      uint64
	Fees        uint64
	Timestamp   uint64
	Method      *string
	Details     PaymentDetails
}

// PaymentDetails is the tagged variant carried by each payment. Exactly one
// concrete type is stored per payment and the stored discriminant is
// authoritative.
type PaymentDetails interface {
	DetailsType() DetailsType
}

// HtlcDetails is the conditional-payment sub-state. Status and ExpiryTime
// are mandatory once an HTLC exists.
type HtlcDetails struct {
	PaymentHash string     `json:"payment_hash"`
	Preimage    *string    `json:"preimage,omitempty"`
	ExpiryTime  uint64     `json:"expiry_time"`
	Status      HtlcStatus `json:"status"`
}

// LightningDetails describes a BOLT11 payment. Htlc is mandatory.
type LightningDetails struct {
	Invoice           string
	PaymentHash       string
	DestinationPubkey string
	Description       *string
	Preimage          *string
	Htlc              HtlcDetails
	LnurlPayInfo      *LnurlPayInfo
	LnurlWithdrawInfo *LnurlWithdrawInfo
	LnurlReceiveData  json.RawMessage
}

func (LightningDetails) DetailsType() DetailsType { return DetailsTypeLightning }

// SparkInvoiceDetails is the decoded Spark invoice payload.
type SparkInvoiceDetails struct {
	Invoice     string  `json:"invoice"`
	Description *string `json:"description,omitempty"`
}

// ConversionInfo describes a conversion leg attached to a payment.
type ConversionInfo struct {
	FromAsset    string           `json:"from_asset"`
	ToAsset      string           `json:"to_asset"`
	Status       ConversionStatus `json:"status"`
	RefundNeeded bool             `json:"refund_needed"`
}

// SparkDetails describes a Spark-native transfer.
type SparkDetails struct {
	InvoiceDetails *SparkInvoiceDetails
	Htlc           *HtlcDetails
	ConversionInfo *ConversionInfo
}

func (SparkDetails) DetailsType() DetailsType { return DetailsTypeSpark }

// TokenMetadata identifies the token an amount is denominated in. MaxSupply
// is kept as a decimal string because token supplies exceed 64 bits.
type TokenMetadata struct {
	Identifier      string `json:"identifier"`
	IssuerPublicKey string `json:"issuer_public_key"`
	Name            string `json:"name"`
	Ticker          string `json:"ticker"`
	Decimals        uint32 `json:"decimals"`
	MaxSupply       string `json:"max_supply"`
	IsFreezable     bool   `json:"is_freezable"`
}

// TokenDetails describes a token transaction.
type TokenDetails struct {
	Metadata       TokenMetadata
	TxHash         string
	TxType         TokenTxType
	InvoiceDetails *SparkInvoiceDetails
	ConversionInfo *ConversionInfo
}

func (TokenDetails) DetailsType() DetailsType { return DetailsTypeToken }

// WithdrawDetails references the on-chain exit transaction.
type WithdrawDetails struct {
	TxID string
}

func (WithdrawDetails) DetailsType() DetailsType { return DetailsTypeWithdraw }

// DepositDetails references the on-chain deposit transaction.
type DepositDetails struct {
	TxID string
}

func (DepositDetails) DetailsType() DetailsType { return DetailsTypeDeposit }

// LnurlPayInfo is the LNURL-pay descriptor recorded alongside a payment.
type LnurlPayInfo struct {
	LnAddress     string          `json:"ln_address,omitempty"`
	Domain        string          `json:"domain,omitempty"`
	Comment       string          `json:"comment,omitempty"`
	Metadata      string          `json:"metadata,omitempty"`
	Preimage      string          `json:"preimage,omitempty"`
	SuccessAction json.RawMessage `json:"success_action,omitempty"`
}

// LnurlWithdrawInfo is the LNURL-withdraw descriptor recorded alongside a
// payment.
type LnurlWithdrawInfo struct {
	WithdrawURL string `json:"withdraw_url,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Description string `json:"description,omitempty"`
}

// Metadata is the side record keyed by payment id. A non-nil
// ParentPaymentID marks the payment as a child (refund or conversion leg)
// and excludes it from top-level listings.
type Metadata struct {
	ParentPaymentID   *string
	LnurlPayInfo      *LnurlPayInfo
	LnurlWithdrawInfo *LnurlWithdrawInfo
	ConversionStatus  *ConversionStatus
}
