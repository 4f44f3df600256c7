package models

import "github.com/shopspring/decimal"

// BalanceStatus describes which side of zero a customer ledger sits on
type BalanceStatus string

const (
	Outstanding BalanceStatus = "outstanding" // customer owes money
	Advance     BalanceStatus = "advance"     // money owed to the customer
	Settled     BalanceStatus = "settled"
)

// StatusOf returns the balance status for a ledger balance
func StatusOf(balance decimal.Decimal) BalanceStatus {
	switch {
	case balance.IsPositive():
		return Outstanding
	case balance.IsNegative():
		return Advance
	}
	return Settled
}

// CustomerLedger is the running-balance history for one customer.
// It is derived from the transaction store and never persisted.
type CustomerLedger struct {
	Key                 string          `json:"key"`
	Particulars         string          `json:"particulars"`
	TotalSales          decimal.Decimal `json:"totalSales"`
	TotalPayments       decimal.Decimal `json:"totalPayments"`
	CurrentBalance      decimal.Decimal `json:"currentBalance"`
	Status              BalanceStatus   `json:"status"`
	TransactionCount    int             `json:"transactionCount"`
	LastTransactionDate string          `json:"lastTransactionDate"`
	Transactions        []Transaction   `json:"transactions"`
}

// DashboardSummary holds the aggregate figures for one dashboard query
type DashboardSummary struct {
	TotalSales          decimal.Decimal            `json:"totalSales"`
	TotalPayment        decimal.Decimal            `json:"totalPayment"`
	PaymentMethodTotals map[string]decimal.Decimal `json:"paymentMethodTotals"`
	CashInOffice        decimal.Decimal            `json:"cashInOffice"`
	RunningBalance      decimal.Decimal            `json:"runningBalance"`
	TransactionCount    int                        `json:"transactionCount"`

	// Computed over every customer ledger, regardless of the dashboard filter
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
	TotalAdvances    decimal.Decimal `json:"totalAdvances"`
}
