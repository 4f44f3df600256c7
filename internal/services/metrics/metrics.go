package metrics

import (
	"github.com/shopspring/decimal"

	"daybook/internal/models"
)

// Service provides dashboard summary calculation
type Service struct{}

// New creates a new metrics service
func New() *Service {
	return &Service{}
}

// Summarize computes the dashboard figures. Totals come from the filtered
// transactions; outstanding and advances always come from the full ledger set.
func (s *Service) Summarize(filtered *models.TransactionSet, ledgers map[string]models.CustomerLedger) *models.DashboardSummary {
	summary := &models.DashboardSummary{
		TotalSales:          decimal.Zero,
		TotalPayment:        decimal.Zero,
		PaymentMethodTotals: make(map[string]decimal.Decimal),
		CashInOffice:        decimal.Zero,
		TransactionCount:    filtered.Len(),
		TotalOutstanding:    decimal.Zero,
		TotalAdvances:       decimal.Zero,
	}

	for _, t := range filtered.Transactions {
		summary.TotalSales = summary.TotalSales.Add(t.Sales)
		summary.TotalPayment = summary.TotalPayment.Add(t.Payment)

		for method, amount := range t.PaymentMethods {
			summary.PaymentMethodTotals[method] = summary.PaymentMethodTotals[method].Add(amount)
		}

		// Reconciliation delta: counted channels against the recorded payment
		if t.Type == models.CashInOffice {
			summary.CashInOffice = summary.CashInOffice.Add(t.PaymentMethods.Sum().Sub(t.Payment))
		}
	}

	summary.RunningBalance = summary.TotalSales.Sub(summary.TotalPayment)
	summary.TotalOutstanding, summary.TotalAdvances = Exposure(ledgers)

	return summary
}

// Exposure splits ledger balances into money owed by customers (outstanding) and
// money owed to them (advances). Both figures are non-negative.
func Exposure(ledgers map[string]models.CustomerLedger) (outstanding, advances decimal.Decimal) {
	outstanding, advances = decimal.Zero, decimal.Zero
	for _, l := range ledgers {
		switch {
		case l.CurrentBalance.IsPositive():
			outstanding = outstanding.Add(l.CurrentBalance)
		case l.CurrentBalance.IsNegative():
			advances = advances.Add(l.CurrentBalance.Abs())
		}
	}
	return outstanding, advances
}
