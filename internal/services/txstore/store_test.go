package txstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/internal/models"
	"daybook/internal/services/storage"
	"daybook/internal/services/txstore"
	mock_storage "daybook/internal/services/txstore/mocks"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func ptr[T any](v T) *T { return &v }

func tx(id, date, particulars string, sales, payment int64, typ models.TransactionType) models.Transaction {
	return models.Transaction{
		ID:             id,
		Date:           date,
		Particulars:    particulars,
		Sales:          d(sales),
		Payment:        d(payment),
		PaymentMethods: models.PaymentMethods{},
		Type:           typ,
	}
}

func openFileStore(t *testing.T) (*txstore.Store, storage.BlobStore) {
	t.Helper()
	blobs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	s, err := txstore.Open(context.Background(), blobs, zerolog.Nop())
	require.NoError(t, err)
	return s, blobs
}

func TestOpenMissingBlobIsEmpty(t *testing.T) {
	s, _ := openFileStore(t)

	assert.Equal(t, 0, s.Query(models.TransactionFilter{}).Len())
	assert.Empty(t, s.Ledgers())
	assert.Empty(t, s.ParticularsHistory(""))
}

func TestAddPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	s, blobs := openFileStore(t)

	require.NoError(t, s.Add(ctx, []models.Transaction{
		tx("a", "2024-01-01", "Acme", 1000, 0, models.Customer),
		tx("b", "2024-01-02", "Acme", 0, 400, models.Customer),
	}))

	reopened, err := txstore.Open(ctx, blobs, zerolog.Nop())
	require.NoError(t, err)

	l, err := reopened.Ledger("ACME")
	require.NoError(t, err)
	assert.True(t, l.TotalSales.Equal(d(1000)))
	assert.True(t, l.TotalPayments.Equal(d(400)))
	assert.True(t, l.CurrentBalance.Equal(d(600)))
	require.Len(t, l.Transactions, 2)
	assert.True(t, l.Transactions[0].Balance.Equal(d(1000)))
	assert.True(t, l.Transactions[1].Balance.Equal(d(600)))
}

func TestPersistedBlobHasNoLedgerAnnotations(t *testing.T) {
	ctx := context.Background()
	s, blobs := openFileStore(t)

	require.NoError(t, s.Add(ctx, []models.Transaction{tx("a", "2024-01-01", "Acme", 10, 0, models.Customer)}))

	raw, err := blobs.Get(ctx, txstore.BlobName)
	require.NoError(t, err)

	var stored []map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Len(t, stored, 1)
	assert.NotContains(t, stored[0], "balance")
	assert.NotContains(t, stored[0], "creditAmount")
	assert.Equal(t, "customer", stored[0]["type"])
}

func TestAddRejectsInvalidBatch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		batch   []models.Transaction
		wantErr error
	}{
		{
			name:    "negative sales",
			batch:   []models.Transaction{tx("a", "2024-01-01", "Acme", -1, 0, models.Customer)},
			wantErr: txstore.ErrInvalidAmount,
		},
		{
			name:    "bad date",
			batch:   []models.Transaction{tx("a", "01/02/2024", "Acme", 1, 0, models.Customer)},
			wantErr: txstore.ErrInvalidDate,
		},
		{
			name: "duplicate id",
			batch: []models.Transaction{
				tx("a", "2024-01-01", "Acme", 1, 0, models.Customer),
				tx("a", "2024-01-02", "Beta", 1, 0, models.Customer),
			},
			wantErr: txstore.ErrDuplicateID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := openFileStore(t)
			err := s.Add(ctx, tt.batch)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, s.Query(models.TransactionFilter{}).Len())
		})
	}
}

func TestQueryDateBoundaryInclusive(t *testing.T) {
	ctx := context.Background()
	s, _ := openFileStore(t)

	require.NoError(t, s.Add(ctx, []models.Transaction{
		tx("before", "2024-01-09", "Acme", 1, 0, models.Customer),
		tx("on", "2024-01-10", "Acme", 2, 0, models.Customer),
		tx("after", "2024-01-11", "Beta", 3, 0, models.Customer),
	}))

	got := s.Query(models.TransactionFilter{StartDate: "2024-01-10"})
	require.Equal(t, 2, got.Len())
	// Newest first
	assert.Equal(t, "after", got.Transactions[0].ID)
	assert.Equal(t, "on", got.Transactions[1].ID)

	got = s.Query(models.TransactionFilter{EndDate: "2024-01-10", Particulars: "acm"})
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "on", got.Transactions[0].ID)

	got = s.Query(models.TransactionFilter{Limit: 1})
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "after", got.Transactions[0].ID)
}

func TestQuerySameDateKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := openFileStore(t)

	require.NoError(t, s.Add(ctx, []models.Transaction{
		tx("first", "2024-01-01", "Acme", 1, 0, models.Customer),
		tx("second", "2024-01-01", "Beta", 1, 0, models.Customer),
		tx("third", "2024-01-01", "Gamma", 1, 0, models.Customer),
	}))

	got := s.Query(models.TransactionFilter{})
	ids := []string{got.Transactions[0].ID, got.Transactions[1].ID, got.Transactions[2].ID}
	assert.Equal(t, []string{"first", "second", "third"}, ids)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s, _ := openFileStore(t)
	require.NoError(t, s.Add(ctx, []models.Transaction{
		tx("a", "2024-01-01", "Acme", 1000, 0, models.Customer),
	}))

	updated, err := s.Update(ctx, "a", txstore.Patch{
		Particulars:    ptr("Acme Traders"),
		Payment:        ptr(d(250)),
		PaymentMethods: &models.PaymentMethods{"UPI": d(100), "Cash": decimal.Zero},
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme Traders", updated.Particulars)
	assert.True(t, updated.Sales.Equal(d(1000)))
	assert.True(t, updated.Payment.Equal(d(250)))
	assert.Equal(t, []string{"UPI"}, updated.PaymentMethods.Names())
	assert.Equal(t, models.Customer, updated.Type)

	// Ledgers are rebuilt under the new key
	_, err = s.Ledger("acme")
	assert.ErrorIs(t, err, txstore.ErrNotFound)
	l, err := s.Ledger("acme traders")
	require.NoError(t, err)
	assert.True(t, l.CurrentBalance.Equal(d(650)))

	// Both the old and the new name stay in history
	assert.Equal(t, []string{"Acme", "Acme Traders"}, s.ParticularsHistory(""))
}

func TestUpdateErrors(t *testing.T) {
	ctx := context.Background()
	s, _ := openFileStore(t)
	require.NoError(t, s.Add(ctx, []models.Transaction{
		tx("a", "2024-01-01", "Acme", 1000, 0, models.Customer),
	}))

	_, err := s.Update(ctx, "missing", txstore.Patch{Sales: ptr(d(1))})
	assert.ErrorIs(t, err, txstore.ErrNotFound)

	_, err = s.Update(ctx, "a", txstore.Patch{Sales: ptr(d(-5))})
	assert.ErrorIs(t, err, txstore.ErrInvalidAmount)

	_, err = s.Update(ctx, "a", txstore.Patch{PaymentMethods: &models.PaymentMethods{"Cash": d(-1)}})
	assert.ErrorIs(t, err, txstore.ErrInvalidAmount)

	_, err = s.Update(ctx, "a", txstore.Patch{Date: ptr("yesterday")})
	assert.ErrorIs(t, err, txstore.ErrInvalidDate)

	got := s.Snapshot()
	require.Len(t, got, 1)
	assert.True(t, got[0].Sales.Equal(d(1000)))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s, blobs := openFileStore(t)
	require.NoError(t, s.Add(ctx, []models.Transaction{
		tx("a", "2024-01-01", "Acme", 1000, 0, models.Customer),
	}))

	require.NoError(t, s.Clear(ctx))

	assert.Equal(t, 0, s.Query(models.TransactionFilter{}).Len())
	assert.Empty(t, s.Ledgers())
	assert.Empty(t, s.ParticularsHistory(""))

	_, err := blobs.Get(ctx, txstore.BlobName)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
}

func TestParticularsHistoryFilter(t *testing.T) {
	ctx := context.Background()
	s, _ := openFileStore(t)
	require.NoError(t, s.Add(ctx, []models.Transaction{
		tx("a", "2024-01-01", "Acme", 1, 0, models.Customer),
		tx("b", "2024-01-01", "ACME", 1, 0, models.Customer),
		tx("c", "2024-01-01", "Rent", 0, 50, models.Expense),
		tx("d", "2024-01-02", "Acme", 1, 0, models.Customer),
	}))

	assert.Equal(t, []string{"ACME", "Acme", "Rent"}, s.ParticularsHistory(""))
	assert.Equal(t, []string{"ACME", "Acme"}, s.ParticularsHistory("cm"))
	assert.Empty(t, s.ParticularsHistory("zzz"))
}

func TestOutstandingSkipsSettled(t *testing.T) {
	ctx := context.Background()
	s, _ := openFileStore(t)
	require.NoError(t, s.Add(ctx, []models.Transaction{
		tx("a", "2024-01-01", "Acme", 100, 100, models.Customer),
		tx("b", "2024-01-01", "Beta", 100, 0, models.Customer),
		tx("c", "2024-01-01", "Gamma", 0, 300, models.Customer),
	}))

	got := s.Outstanding()
	require.Len(t, got, 2)
	assert.Equal(t, "gamma", got[0].Key)
	assert.Equal(t, "beta", got[1].Key)
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	src, _ := openFileStore(t)
	require.NoError(t, src.Add(ctx, []models.Transaction{
		tx("a", "2024-01-01", "Acme", 1000, 0, models.Customer),
		tx("b", "2024-01-02", "Rent", 0, 70, models.Expense),
	}))

	data, err := src.Backup()
	require.NoError(t, err)

	dst, _ := openFileStore(t)
	require.NoError(t, dst.Restore(ctx, data))

	want, _ := json.Marshal(src.Snapshot())
	got, _ := json.Marshal(dst.Snapshot())
	assert.JSONEq(t, string(want), string(got))
	assert.Equal(t, []string{"Acme", "Rent"}, dst.ParticularsHistory(""))

	assert.ErrorIs(t, dst.Restore(ctx, []byte("not json")), txstore.ErrInvalidData)
	assert.Len(t, dst.Snapshot(), 2)

	dupes, _ := json.Marshal([]models.Transaction{
		tx("x", "2024-01-01", "Acme", 1, 0, models.Customer),
		tx("x", "2024-01-02", "Acme", 1, 0, models.Customer),
	})
	err = dst.Restore(ctx, dupes)
	assert.ErrorIs(t, err, txstore.ErrInvalidData)
	assert.ErrorIs(t, err, txstore.ErrDuplicateID)
	assert.Len(t, dst.Snapshot(), 2)
}

func TestPersistFailureLeavesStateUnchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	blobs := mock_storage.NewMockBlobStore(ctrl)
	blobs.EXPECT().Get(gomock.Any(), txstore.BlobName).Return(nil, storage.ErrBlobNotFound)

	s, err := txstore.Open(ctx, blobs, zerolog.Nop())
	require.NoError(t, err)

	blobs.EXPECT().Put(gomock.Any(), txstore.BlobName, gomock.Any()).Return(nil)
	require.NoError(t, s.Add(ctx, []models.Transaction{tx("a", "2024-01-01", "Acme", 100, 0, models.Customer)}))

	diskFull := errors.New("disk full")
	blobs.EXPECT().Put(gomock.Any(), txstore.BlobName, gomock.Any()).Return(diskFull).Times(2)

	err = s.Add(ctx, []models.Transaction{tx("b", "2024-01-02", "Beta", 50, 0, models.Customer)})
	assert.ErrorIs(t, err, diskFull)

	_, err = s.Update(ctx, "a", txstore.Patch{Sales: ptr(d(1))})
	assert.ErrorIs(t, err, diskFull)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Sales.Equal(d(100)))
	_, err = s.Ledger("beta")
	assert.ErrorIs(t, err, txstore.ErrNotFound)
	assert.Equal(t, []string{"Acme"}, s.ParticularsHistory(""))

	blobs.EXPECT().Delete(gomock.Any(), txstore.BlobName).Return(diskFull)
	assert.ErrorIs(t, s.Clear(ctx), diskFull)
	assert.Len(t, s.Snapshot(), 1)
}

func TestOpenPropagatesLocked(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	blobs := mock_storage.NewMockBlobStore(ctrl)
	blobs.EXPECT().Get(gomock.Any(), txstore.BlobName).Return(nil, storage.ErrLocked)

	_, err := txstore.Open(context.Background(), blobs, zerolog.Nop())
	assert.ErrorIs(t, err, storage.ErrLocked)
}

func TestDashboardExposureIgnoresFilter(t *testing.T) {
	ctx := context.Background()
	s, _ := openFileStore(t)
	require.NoError(t, s.Add(ctx, []models.Transaction{
		tx("a", "2024-01-01", "Acme", 1000, 0, models.Customer),
		tx("b", "2024-02-01", "Beta", 10, 0, models.Customer),
	}))

	filtered, ledgers := s.Dashboard(models.TransactionFilter{StartDate: "2024-02-01"})
	assert.Equal(t, 1, filtered.Len())
	assert.Len(t, ledgers, 2)
}

func TestLockDropsStateUntilReload(t *testing.T) {
	ctx := context.Background()
	s, _ := openFileStore(t)
	require.NoError(t, s.Add(ctx, []models.Transaction{tx("a", "2024-01-01", "Acme", 1000, 0, models.Customer)}))

	s.Lock()
	assert.True(t, s.Locked())
	assert.Equal(t, 0, s.Query(models.TransactionFilter{}).Len())
	assert.Empty(t, s.Ledgers())
	assert.Empty(t, s.Snapshot())
	assert.Empty(t, s.ParticularsHistory(""))

	_, err := s.Ledger("acme")
	assert.ErrorIs(t, err, storage.ErrLocked)
	_, err = s.Backup()
	assert.ErrorIs(t, err, storage.ErrLocked)
	assert.ErrorIs(t, s.Add(ctx, []models.Transaction{tx("b", "2024-01-02", "Beta", 1, 0, models.Customer)}), storage.ErrLocked)
	_, err = s.Update(ctx, "a", txstore.Patch{Sales: ptr(d(1))})
	assert.ErrorIs(t, err, storage.ErrLocked)
	assert.ErrorIs(t, s.Clear(ctx), storage.ErrLocked)
	assert.ErrorIs(t, s.Restore(ctx, []byte(`[]`)), storage.ErrLocked)

	require.NoError(t, s.Reload(ctx))
	assert.False(t, s.Locked())
	l, err := s.Ledger("acme")
	require.NoError(t, err)
	assert.True(t, l.CurrentBalance.Equal(d(1000)))
}
