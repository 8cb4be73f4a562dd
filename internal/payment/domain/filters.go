package domain

// ListPaymentsFilter narrows and pages a listing. Categories combine as
// AND; the entries of DetailsFilter combine as OR with each other.
type ListPaymentsFilter struct {
	TypeFilter    []PaymentType
	StatusFilter  []PaymentStatus
	AssetFilter   *string
	FromTimestamp *uint64
	ToTimestamp   *uint64
	DetailsFilter []PaymentDetailsFilter
	Offset        uint32
	Limit         *uint32
	SortAscending bool
}

// PaymentDetailsFilter is one OR-branch of the details filter. Fields
// within a single filter combine as AND.
type PaymentDetailsFilter interface {
	detailsFilter()
}

// LightningDetailsFilter matches Lightning payments.
type LightningDetailsFilter struct {
	HtlcStatuses     []HtlcStatus
	HasLnurlPreimage *bool
}

func (LightningDetailsFilter) detailsFilter() {}

// SparkDetailsFilter matches Spark payments.
type SparkDetailsFilter struct {
	HtlcStatuses           []HtlcStatus
	ConversionRefundNeeded *bool
}

func (SparkDetailsFilter) detailsFilter() {}

// TokenDetailsFilter matches token payments.
type TokenDetailsFilter struct {
	TxTypes []TokenTxType
}

func (TokenDetailsFilter) detailsFilter() {}
