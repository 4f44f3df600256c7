package metrics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/internal/models"
	"daybook/internal/services/dataloader"
	"daybook/internal/services/ledger"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestSummarizeCashInOfficeScenario(t *testing.T) {
	table := models.NewUploadedTable(
		[]string{"Particulars", "SALES", "PAYMENT", "Cash"},
		[]models.Row{
			{"Particulars": "Acme", "SALES": "1000", "PAYMENT": "0"},
			{"Particulars": "cash in office", "SALES": "0", "PAYMENT": "0", "Cash": "500"},
		},
	)
	txs := dataloader.ToTransactions(table, "2024-01-01", nil)

	summary := New().Summarize(models.NewTransactionSet(txs), ledger.Build(txs))

	assert.True(t, summary.CashInOffice.Equal(d(500)), "cashInOffice = %s", summary.CashInOffice)
	assert.True(t, summary.TotalSales.Equal(d(1000)))
	assert.True(t, summary.TotalPayment.IsZero())
	assert.True(t, summary.RunningBalance.Equal(d(1000)))
	assert.True(t, summary.PaymentMethodTotals["Cash"].Equal(d(500)))
	assert.Equal(t, 2, summary.TransactionCount)
	assert.True(t, summary.TotalOutstanding.Equal(d(1000)))
	assert.True(t, summary.TotalAdvances.IsZero())
}

func TestSummarizeCashInOfficeSubtractsPayment(t *testing.T) {
	txs := []models.Transaction{
		{Particulars: "Cash in office", Payment: d(120), Type: models.CashInOffice,
			PaymentMethods: models.PaymentMethods{"Cash": d(400), "UPI": d(100)}},
		// Payment channels on customer rows do not count toward cash in office
		{Particulars: "Acme", Type: models.Customer, PaymentMethods: models.PaymentMethods{"Cash": d(50)}},
	}

	summary := New().Summarize(models.NewTransactionSet(txs), nil)

	assert.True(t, summary.CashInOffice.Equal(d(380)))
	assert.True(t, summary.PaymentMethodTotals["Cash"].Equal(d(450)))
	assert.True(t, summary.TotalPayment.Equal(d(120)))
}

func TestSummarizeExposureIgnoresFilter(t *testing.T) {
	all := []models.Transaction{
		{ID: "1", Date: "2024-01-01", Particulars: "Acme", Sales: d(1000), Type: models.Customer},
		{ID: "2", Date: "2024-01-02", Particulars: "Beta", Payment: d(300), Type: models.Customer,
			PaymentMethods: models.PaymentMethods{"UPI": d(200)}},
		{ID: "3", Date: "2024-01-03", Particulars: "Gamma", Sales: d(50), Type: models.Customer},
		{ID: "4", Date: "2024-01-03", Particulars: "Rent", Payment: d(70), Type: models.Expense},
	}
	ledgers := ledger.Build(all)

	filtered := models.NewTransactionSet(all).Filter(models.TransactionFilter{StartDate: "2024-01-03"})
	require.Equal(t, 2, filtered.Len())

	summary := New().Summarize(filtered, ledgers)

	// Filtered totals
	assert.True(t, summary.TotalSales.Equal(d(50)))
	assert.True(t, summary.TotalPayment.Equal(d(70)))
	assert.True(t, summary.RunningBalance.Equal(d(-20)))

	// Global exposure
	assert.True(t, summary.TotalOutstanding.Equal(d(1050)))
	assert.True(t, summary.TotalAdvances.Equal(d(500)))

	var pos, neg decimal.Decimal
	for _, l := range ledgers {
		if l.CurrentBalance.IsPositive() {
			pos = pos.Add(l.CurrentBalance)
		} else {
			neg = neg.Add(l.CurrentBalance)
		}
	}
	assert.True(t, summary.TotalOutstanding.Equal(pos))
	assert.True(t, summary.TotalAdvances.Equal(neg.Neg()))
}

func TestSummarizeEmpty(t *testing.T) {
	summary := New().Summarize(models.NewTransactionSet(nil), nil)

	assert.Equal(t, 0, summary.TransactionCount)
	assert.True(t, summary.RunningBalance.IsZero())
	assert.Empty(t, summary.PaymentMethodTotals)
}
