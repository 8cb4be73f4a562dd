package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/emberwallet/sparkstore/internal/clock"
	"github.com/emberwallet/sparkstore/internal/migration"
	"github.com/emberwallet/sparkstore/internal/payment/domain"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestRepository(t *testing.T) domain.Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Unix(1700000000, 0))
	migrator, err := migration.New(migration.Params{DB: db, Log: zap.NewNop(), Clock: fakeClock})
	require.NoError(t, err)
	require.NoError(t, migrator.Migrate(context.Background()))

	return NewRepository(Params{DB: db, Log: zap.NewNop(), Clock: fakeClock})
}

func strP(s string) *string { return &s }

func u64P(v uint64) *uint64 { return &v }

func lightningPayment(id string, status domain.PaymentStatus, htlcStatus domain.HtlcStatus) *domain.Payment {
	return &domain.Payment{
		ID:          id,
		PaymentType: domain.PaymentTypeReceive,
		Status:      status,
		Amount:      50000,
		Fees:        10,
		Timestamp:   1700000000,
		Details: domain.LightningDetails{
			Invoice:           "lnbc-" + id,
			PaymentHash:       "hash-" + id,
			DestinationPubkey: "02deadbeef",
			Description:       strP("coffee"),
			Htlc: domain.HtlcDetails{
				PaymentHash: "hash-" + id,
				ExpiryTime:  1700003600,
				Status:      htlcStatus,
			},
		},
	}
}

func TestInsert_Validation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	err := repo.Insert(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrPaymentRequired)

	err = repo.Insert(ctx, &domain.Payment{})
	assert.ErrorIs(t, err, domain.ErrPaymentIDRequired)

	// Every payment carries exactly one details variant.
	err = repo.Insert(ctx, &domain.Payment{
		ID: "no-details", PaymentType: domain.PaymentTypeSend,
		Status: domain.PaymentStatusPending, Amount: 1, Timestamp: 1,
	})
	assert.ErrorIs(t, err, domain.ErrPaymentDetailsRequired)
}

func TestInsert_RoundTripLightning(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, lightningPayment("ln-rt", domain.PaymentStatusPending, domain.HtlcStatusWaitingForPreimage)))

	got, err := repo.GetByID(ctx, "ln-rt")
	require.NoError(t, err)
	assert.Equal(t, uint64(50000), got.Amount)
	assert.Equal(t, uint64(10), got.Fees)
	assert.Equal(t, domain.PaymentTypeReceive, got.PaymentType)
	assert.Equal(t, domain.PaymentStatusPending, got.Status)

	details, ok := got.Details.(domain.LightningDetails)
	require.True(t, ok)
	assert.Equal(t, "lnbc-ln-rt", details.Invoice)
	assert.Equal(t, "hash-ln-rt", details.PaymentHash)
	require.NotNil(t, details.Description)
	assert.Equal(t, "coffee", *details.Description)
	assert.Equal(t, domain.HtlcStatusWaitingForPreimage, details.Htlc.Status)
	assert.Equal(t, uint64(1700003600), details.Htlc.ExpiryTime)
	assert.Nil(t, details.Preimage)
}

func TestInsert_RoundTripSpark(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	payment := &domain.Payment{
		ID:          "spark-rt",
		PaymentType: domain.PaymentTypeSend,
		Status:      domain.PaymentStatusCompleted,
		Amount:      1234,
		Fees:        0,
		Timestamp:   1700000100,
		Details: domain.SparkDetails{
			InvoiceDetails: &domain.SparkInvoiceDetails{Invoice: "spark1abc", Description: strP("lunch")},
			ConversionInfo: &domain.ConversionInfo{
				FromAsset: "sat",
				ToAsset:   "usd-token",
				Status:    domain.ConversionStatusCompleted,
			},
		},
	}
	require.NoError(t, repo.Insert(ctx, payment))

	got, err := repo.GetByID(ctx, "spark-rt")
	require.NoError(t, err)
	details, ok := got.Details.(domain.SparkDetails)
	require.True(t, ok)
	require.NotNil(t, details.InvoiceDetails)
	assert.Equal(t, "spark1abc", details.InvoiceDetails.Invoice)
	require.NotNil(t, details.ConversionInfo)
	assert.Equal(t, domain.ConversionStatusCompleted, details.ConversionInfo.Status)
	assert.Nil(t, details.Htlc)
}

func TestInsert_RoundTripToken(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	payment := &domain.Payment{
		ID:          "token-rt",
		PaymentType: domain.PaymentTypeSend,
		Status:      domain.PaymentStatusCompleted,
		Amount:      9,
		Timestamp:   1700000200,
		Details: domain.TokenDetails{
			Metadata: domain.TokenMetadata{
				Identifier:      "usd-token",
				IssuerPublicKey: "03cafebabe",
				Name:            "USD Token",
				Ticker:          "USDT",
				Decimals:        8,
				MaxSupply:       "21000000000000000000",
			},
			TxHash: "tx-token",
			TxType: domain.TokenTxTypeTransfer,
		},
	}
	require.NoError(t, repo.Insert(ctx, payment))

	got, err := repo.GetByID(ctx, "token-rt")
	require.NoError(t, err)
	details, ok := got.Details.(domain.TokenDetails)
	require.True(t, ok)
	assert.Equal(t, "usd-token", details.Metadata.Identifier)
	assert.Equal(t, "21000000000000000000", details.Metadata.MaxSupply)
	assert.Equal(t, domain.TokenTxTypeTransfer, details.TxType)
}

func TestInsert_RoundTripOnchain(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &domain.Payment{
		ID: "w-1", PaymentType: domain.PaymentTypeSend, Status: domain.PaymentStatusCompleted,
		Amount: 100, Timestamp: 1, Details: domain.WithdrawDetails{TxID: "tx-w"},
	}))
	require.NoError(t, repo.Insert(ctx, &domain.Payment{
		ID: "d-1", PaymentType: domain.PaymentTypeReceive, Status: domain.PaymentStatusCompleted,
		Amount: 100, Timestamp: 2, Details: domain.DepositDetails{TxID: "tx-d"},
	}))

	withdraw, err := repo.GetByID(ctx, "w-1")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawDetails{TxID: "tx-w"}, withdraw.Details)

	deposit, err := repo.GetByID(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DepositDetails{TxID: "tx-d"}, deposit.Details)
}

func TestGetByID_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestInsert_MergeOnAbsenceKeepsPreimage(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := lightningPayment("ln-merge", domain.PaymentStatusPending, domain.HtlcStatusWaitingForPreimage)
	details := first.Details.(domain.LightningDetails)
	details.Preimage = strP("my-preimage")
	details.Htlc.Preimage = strP("my-preimage")
	details.Htlc.Status = domain.HtlcStatusSettled
	first.Details = details
	require.NoError(t, repo.Insert(ctx, first))

	// A later update carrying only newly known fields, no preimage.
	second := lightningPayment("ln-merge", domain.PaymentStatusCompleted, domain.HtlcStatusSettled)
	secondDetails := second.Details.(domain.LightningDetails)
	secondDetails.Description = nil
	second.Details = secondDetails
	require.NoError(t, repo.Insert(ctx, second))

	got, err := repo.GetByID(ctx, "ln-merge")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, got.Status)
	gotDetails := got.Details.(domain.LightningDetails)
	require.NotNil(t, gotDetails.Preimage)
	assert.Equal(t, "my-preimage", *gotDetails.Preimage)
	require.NotNil(t, gotDetails.Description)
	assert.Equal(t, "coffee", *gotDetails.Description)
}

func TestInsert_PreimageSettlesWaitingHtlc(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, lightningPayment("ln-settle", domain.PaymentStatusPending, domain.HtlcStatusWaitingForPreimage)))

	update := lightningPayment("ln-settle", domain.PaymentStatusCompleted, domain.HtlcStatusWaitingForPreimage)
	updateDetails := update.Details.(domain.LightningDetails)
	updateDetails.Preimage = strP("revealed")
	update.Details = updateDetails
	require.NoError(t, repo.Insert(ctx, update))

	got, err := repo.GetByID(ctx, "ln-settle")
	require.NoError(t, err)
	gotDetails := got.Details.(domain.LightningDetails)
	assert.Equal(t, domain.HtlcStatusSettled, gotDetails.Htlc.Status)
	require.NotNil(t, gotDetails.Preimage)
	assert.Equal(t, "revealed", *gotDetails.Preimage)
}

func TestGetByInvoice(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, lightningPayment("ln-inv", domain.PaymentStatusPending, domain.HtlcStatusWaitingForPreimage)))

	got, err := repo.GetByInvoice(ctx, "lnbc-ln-inv")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ln-inv", got.ID)

	miss, err := repo.GetByInvoice(ctx, "lnbc-unknown")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestList_TypeAndStatusFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	seed := []*domain.Payment{
		{ID: "p-1", PaymentType: domain.PaymentTypeReceive, Status: domain.PaymentStatusPending, Amount: 1, Timestamp: 1, Details: domain.SparkDetails{}},
		{ID: "p-2", PaymentType: domain.PaymentTypeReceive, Status: domain.PaymentStatusCompleted, Amount: 2, Timestamp: 2, Details: domain.SparkDetails{}},
		{ID: "p-3", PaymentType: domain.PaymentTypeSend, Status: domain.PaymentStatusPending, Amount: 3, Timestamp: 3, Details: domain.SparkDetails{}},
	}
	for _, p := range seed {
		require.NoError(t, repo.Insert(ctx, p))
	}

	got, err := repo.List(ctx, domain.ListPaymentsFilter{
		TypeFilter:   []domain.PaymentType{domain.PaymentTypeReceive},
		StatusFilter: []domain.PaymentStatus{domain.PaymentStatusPending},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p-1", got[0].ID)
}

func TestList_TimestampRangeAndOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, repo.Insert(ctx, &domain.Payment{
			ID: fmt.Sprintf("p-%d", i), PaymentType: domain.PaymentTypeSend,
			Status: domain.PaymentStatusCompleted, Amount: i, Timestamp: i * 100,
			Details: domain.SparkDetails{},
		}))
	}

	got, err := repo.List(ctx, domain.ListPaymentsFilter{
		FromTimestamp: u64P(200),
		ToTimestamp:   u64P(500),
		SortAscending: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "p-2", got[0].ID)
	assert.Equal(t, "p-4", got[2].ID)

	desc, err := repo.List(ctx, domain.ListPaymentsFilter{})
	require.NoError(t, err)
	require.Len(t, desc, 5)
	assert.Equal(t, "p-5", desc[0].ID)
	assert.Equal(t, "p-1", desc[4].ID)
}

func TestList_LimitAndOffset(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i := uint64(1); i <= 4; i++ {
		require.NoError(t, repo.Insert(ctx, &domain.Payment{
			ID: fmt.Sprintf("p-%d", i), PaymentType: domain.PaymentTypeSend,
			Status: domain.PaymentStatusCompleted, Amount: i, Timestamp: i,
			Details: domain.SparkDetails{},
		}))
	}

	limit := uint32(2)
	got, err := repo.List(ctx, domain.ListPaymentsFilter{
		SortAscending: true,
		Limit:         &limit,
		Offset:        1,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p-2", got[0].ID)
	assert.Equal(t, "p-3", got[1].ID)
}

func TestList_ExcludesChildren(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &domain.Payment{
		ID: "parent", PaymentType: domain.PaymentTypeSend, Status: domain.PaymentStatusCompleted,
		Amount: 10, Timestamp: 1, Details: domain.SparkDetails{},
	}))
	require.NoError(t, repo.Insert(ctx, &domain.Payment{
		ID: "child", PaymentType: domain.PaymentTypeReceive, Status: domain.PaymentStatusCompleted,
		Amount: 10, Timestamp: 2, Details: domain.SparkDetails{},
	}))
	require.NoError(t, repo.SetMetadata(ctx, "child", domain.Metadata{ParentPaymentID: strP("parent")}))

	got, err := repo.List(ctx, domain.ListPaymentsFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "parent", got[0].ID)
}

func TestList_LightningHtlcStatusFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, lightningPayment("ln-1", domain.PaymentStatusPending, domain.HtlcStatusWaitingForPreimage)))

	filter := domain.ListPaymentsFilter{
		DetailsFilter: []domain.PaymentDetailsFilter{
			domain.LightningDetailsFilter{HtlcStatuses: []domain.HtlcStatus{domain.HtlcStatusWaitingForPreimage}},
		},
	}
	got, err := repo.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ln-1", got[0].ID)

	// Settling the HTLC removes it from the claimable set.
	update := lightningPayment("ln-1", domain.PaymentStatusCompleted, domain.HtlcStatusSettled)
	updateDetails := update.Details.(domain.LightningDetails)
	updateDetails.Preimage = strP("preimage-1")
	update.Details = updateDetails
	require.NoError(t, repo.Insert(ctx, update))

	got, err = repo.List(ctx, filter)
	require.NoError(t, err)
	assert.Empty(t, got)

	settled, err := repo.GetByID(ctx, "ln-1")
	require.NoError(t, err)
	settledDetails := settled.Details.(domain.LightningDetails)
	require.NotNil(t, settledDetails.Preimage)
	assert.Equal(t, "preimage-1", *settledDetails.Preimage)
}

func TestList_DetailsFiltersCombineAsOr(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	lnOr := lightningPayment("ln-or", domain.PaymentStatusPending, domain.HtlcStatusWaitingForPreimage)
	lnOr.Timestamp = 1
	require.NoError(t, repo.Insert(ctx, lnOr))
	require.NoError(t, repo.Insert(ctx, &domain.Payment{
		ID: "spark-or", PaymentType: domain.PaymentTypeSend, Status: domain.PaymentStatusPending,
		Amount: 1, Timestamp: 2,
		Details: domain.SparkDetails{
			Htlc: &domain.HtlcDetails{PaymentHash: "h", ExpiryTime: 10, Status: domain.HtlcStatusWaitingForPreimage},
		},
	}))
	require.NoError(t, repo.Insert(ctx, &domain.Payment{
		ID: "token-or", PaymentType: domain.PaymentTypeSend, Status: domain.PaymentStatusPending,
		Amount: 1, Timestamp: 3,
		Details: domain.TokenDetails{
			Metadata: domain.TokenMetadata{Identifier: "tok"},
			TxHash:   "tx", TxType: domain.TokenTxTypeMint,
		},
	}))

	got, err := repo.List(ctx, domain.ListPaymentsFilter{
		SortAscending: true,
		DetailsFilter: []domain.PaymentDetailsFilter{
			domain.LightningDetailsFilter{HtlcStatuses: []domain.HtlcStatus{domain.HtlcStatusWaitingForPreimage}},
			domain.SparkDetailsFilter{HtlcStatuses: []domain.HtlcStatus{domain.HtlcStatusWaitingForPreimage}},
		},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ln-or", got[0].ID)
	assert.Equal(t, "spark-or", got[1].ID)
}

func TestList_TokenTxTypeFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i, txType := range []domain.TokenTxType{domain.TokenTxTypeTransfer, domain.TokenTxTypeMint} {
		require.NoError(t, repo.Insert(ctx, &domain.Payment{
			ID: fmt.Sprintf("tok-%d", i), PaymentType: domain.PaymentTypeSend,
			Status: domain.PaymentStatusCompleted, Amount: 1, Timestamp: uint64(i + 1),
			Details: domain.TokenDetails{
				Metadata: domain.TokenMetadata{Identifier: "tok"},
				TxHash:   fmt.Sprintf("tx-%d", i), TxType: txType,
			},
		}))
	}

	got, err := repo.List(ctx, domain.ListPaymentsFilter{
		DetailsFilter: []domain.PaymentDetailsFilter{
			domain.TokenDetailsFilter{TxTypes: []domain.TokenTxType{domain.TokenTxTypeMint}},
		},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tok-1", got[0].ID)
}

func TestList_AssetFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &domain.Payment{
		ID: "sats-pay", PaymentType: domain.PaymentTypeSend, Status: domain.PaymentStatusCompleted,
		Amount: 1, Timestamp: 1, Details: domain.SparkDetails{},
	}))
	require.NoError(t, repo.Insert(ctx, &domain.Payment{
		ID: "tok-pay", PaymentType: domain.PaymentTypeSend, Status: domain.PaymentStatusCompleted,
		Amount: 1, Timestamp: 2,
		Details: domain.TokenDetails{
			Metadata: domain.TokenMetadata{Identifier: "usd-token"},
			TxHash:   "tx", TxType: domain.TokenTxTypeTransfer,
		},
	}))

	sats, err := repo.List(ctx, domain.ListPaymentsFilter{AssetFilter: strP(domain.AssetSats)})
	require.NoError(t, err)
	require.Len(t, sats, 1)
	assert.Equal(t, "sats-pay", sats[0].ID)

	tokens, err := repo.List(ctx, domain.ListPaymentsFilter{AssetFilter: strP("usd-token")})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "tok-pay", tokens[0].ID)

	none, err := repo.List(ctx, domain.ListPaymentsFilter{AssetFilter: strP("other-token")})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestList_SparkRefundNeededFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &domain.Payment{
		ID: "refund-yes", PaymentType: domain.PaymentTypeSend, Status: domain.PaymentStatusFailed,
		Amount: 1, Timestamp: 1,
		Details: domain.SparkDetails{
			ConversionInfo: &domain.ConversionInfo{
				FromAsset: "sat", ToAsset: "usd-token",
				Status: domain.ConversionStatusRefundNeeded, RefundNeeded: true,
			},
		},
	}))
	require.NoError(t, repo.Insert(ctx, &domain.Payment{
		ID: "refund-no", PaymentType: domain.PaymentTypeSend, Status: domain.PaymentStatusCompleted,
		Amount: 1, Timestamp: 2, Details: domain.SparkDetails{},
	}))

	needRefund := true
	got, err := repo.List(ctx, domain.ListPaymentsFilter{
		DetailsFilter: []domain.PaymentDetailsFilter{
			domain.SparkDetailsFilter{ConversionRefundNeeded: &needRefund},
		},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "refund-yes", got[0].ID)
}

func TestSetMetadata_MergeOnAbsence(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, lightningPayment("ln-meta", domain.PaymentStatusPending, domain.HtlcStatusWaitingForPreimage)))

	require.NoError(t, repo.SetMetadata(ctx, "ln-meta", domain.Metadata{
		LnurlPayInfo: &domain.LnurlPayInfo{LnAddress: "alice@example.com", Domain: "example.com"},
	}))
	status := domain.ConversionStatusPending
	require.NoError(t, repo.SetMetadata(ctx, "ln-meta", domain.Metadata{
		ConversionStatus: &status,
	}))

	got, err := repo.GetMetadata(ctx, "ln-meta")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.LnurlPayInfo)
	assert.Equal(t, "alice@example.com", got.LnurlPayInfo.LnAddress)
	require.NotNil(t, got.ConversionStatus)
	assert.Equal(t, domain.ConversionStatusPending, *got.ConversionStatus)
}

func TestGetMetadata_Missing(t *testing.T) {
	repo := newTestRepository(t)

	got, err := repo.GetMetadata(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByParentIDs(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &domain.Payment{
		ID: "parent", PaymentType: domain.PaymentTypeSend, Status: domain.PaymentStatusFailed,
		Amount: 10, Timestamp: 1, Details: domain.SparkDetails{},
	}))
	for i := uint64(1); i <= 2; i++ {
		id := fmt.Sprintf("child-%d", i)
		require.NoError(t, repo.Insert(ctx, &domain.Payment{
			ID: id, PaymentType: domain.PaymentTypeReceive, Status: domain.PaymentStatusCompleted,
			Amount: 5, Timestamp: 10 - i, Details: domain.SparkDetails{},
		}))
		require.NoError(t, repo.SetMetadata(ctx, id, domain.Metadata{ParentPaymentID: strP("parent")}))
	}

	got, err := repo.GetByParentIDs(ctx, []string{"parent", "other"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	children := got["parent"]
	require.Len(t, children, 2)
	// Ascending timestamp.
	assert.Equal(t, "child-2", children[0].ID)
	assert.Equal(t, "child-1", children[1].ID)
}

func TestGetByParentIDs_ShortCircuits(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	got, err := repo.GetByParentIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.Insert(ctx, &domain.Payment{
		ID: "solo", PaymentType: domain.PaymentTypeSend, Status: domain.PaymentStatusCompleted,
		Amount: 1, Timestamp: 1, Details: domain.SparkDetails{},
	}))
	got, err = repo.GetByParentIDs(ctx, []string{"solo"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSetLnurlReceiveMetadata(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, lightningPayment("ln-lnurl", domain.PaymentStatusPending, domain.HtlcStatusWaitingForPreimage)))

	payload := json.RawMessage(`{"comment":"hello"}`)
	require.NoError(t, repo.SetLnurlReceiveMetadata(ctx, "ln-lnurl", payload))

	got, err := repo.GetByID(ctx, "ln-lnurl")
	require.NoError(t, err)
	details := got.Details.(domain.LightningDetails)
	assert.JSONEq(t, `{"comment":"hello"}`, string(details.LnurlReceiveData))

	// Replaces in place.
	require.NoError(t, repo.SetLnurlReceiveMetadata(ctx, "ln-lnurl", json.RawMessage(`{"comment":"bye"}`)))
	got, err = repo.GetByID(ctx, "ln-lnurl")
	require.NoError(t, err)
	details = got.Details.(domain.LightningDetails)
	assert.JSONEq(t, `{"comment":"bye"}`, string(details.LnurlReceiveData))
}

func TestList_LnurlPreimageFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, lightningPayment("ln-with", domain.PaymentStatusCompleted, domain.HtlcStatusSettled)))
	require.NoError(t, repo.SetMetadata(ctx, "ln-with", domain.Metadata{
		LnurlPayInfo: &domain.LnurlPayInfo{LnAddress: "a@b.c", Preimage: "lp-preimage"},
	}))
	require.NoError(t, repo.Insert(ctx, lightningPayment("ln-without", domain.PaymentStatusCompleted, domain.HtlcStatusSettled)))

	has := true
	got, err := repo.List(ctx, domain.ListPaymentsFilter{
		DetailsFilter: []domain.PaymentDetailsFilter{
			domain.LightningDetailsFilter{HasLnurlPreimage: &has},
		},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ln-with", got[0].ID)

	hasNot := false
	got, err = repo.List(ctx, domain.ListPaymentsFilter{
		DetailsFilter: []domain.PaymentDetailsFilter{
			domain.LightningDetailsFilter{HasLnurlPreimage: &hasNot},
		},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ln-without", got[0].ID)
}
