package models

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// DateLayout is the ISO calendar date format used for every transaction date
const DateLayout = "2006-01-02"

// TransactionType classifies a transaction. It is derived once at normalization.
type TransactionType string

const (
	Customer     TransactionType = "customer"
	Expense      TransactionType = "expense"
	CashInOffice TransactionType = "cash_in_office"
)

// Valid reports whether t is one of the known transaction types
func (t TransactionType) Valid() bool {
	switch t {
	case Customer, Expense, CashInOffice:
		return true
	}
	return false
}

// PaymentMethods maps a payment channel name (discovered from upload columns) to an amount
type PaymentMethods map[string]decimal.Decimal

// Sum returns the total over all channels
func (pm PaymentMethods) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range pm {
		total = total.Add(amount)
	}
	return total
}

// Names returns the channel names in sorted order
func (pm PaymentMethods) Names() []string {
	names := make([]string, 0, len(pm))
	for name := range pm {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Positive returns a copy holding only strictly positive entries
func (pm PaymentMethods) Positive() PaymentMethods {
	out := make(PaymentMethods, len(pm))
	for name, amount := range pm {
		if amount.IsPositive() {
			out[name] = amount
		}
	}
	return out
}

// Transaction represents a single recorded bookkeeping event
type Transaction struct {
	ID             string          `json:"id"`
	Date           string          `json:"date"`
	Particulars    string          `json:"particulars"`
	Sales          decimal.Decimal `json:"sales"`
	Payment        decimal.Decimal `json:"payment"`
	PaymentMethods PaymentMethods  `json:"paymentMethods"`
	Type           TransactionType `json:"type"`

	// Ledger annotations, only set on copies handed out inside a CustomerLedger
	CreditAmount *decimal.Decimal `json:"creditAmount,omitempty"`
	DebitAmount  *decimal.Decimal `json:"debitAmount,omitempty"`
	Balance      *decimal.Decimal `json:"balance,omitempty"`
}

// CustomerKey returns the case-insensitive grouping key for the particulars
func (t *Transaction) CustomerKey() string {
	return CustomerKey(t.Particulars)
}

// CustomerKey normalizes a particulars string into a ledger grouping key
func CustomerKey(particulars string) string {
	return strings.ToLower(strings.TrimSpace(particulars))
}

// Debit returns the amount paid against the customer's account: payment plus all channels
func (t *Transaction) Debit() decimal.Decimal {
	return t.Payment.Add(t.PaymentMethods.Sum())
}

// Clone returns a deep copy of the transaction
func (t Transaction) Clone() Transaction {
	methods := make(PaymentMethods, len(t.PaymentMethods))
	for name, amount := range t.PaymentMethods {
		methods[name] = amount
	}
	t.PaymentMethods = methods
	t.CreditAmount = cloneDecimal(t.CreditAmount)
	t.DebitAmount = cloneDecimal(t.DebitAmount)
	t.Balance = cloneDecimal(t.Balance)
	return t
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// TransactionFilter narrows a transaction query. Empty fields do not filter.
type TransactionFilter struct {
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Particulars string `json:"particulars,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// Matches reports whether t passes the date window and particulars substring
func (f TransactionFilter) Matches(t *Transaction) bool {
	if f.StartDate != "" && t.Date < f.StartDate {
		return false
	}
	if f.EndDate != "" && t.Date > f.EndDate {
		return false
	}
	if f.Particulars != "" &&
		!strings.Contains(strings.ToLower(t.Particulars), strings.ToLower(f.Particulars)) {
		return false
	}
	return true
}

// TransactionSet wraps a slice with filtering/aggregation methods
type TransactionSet struct {
	Transactions []Transaction
}

// NewTransactionSet creates a new TransactionSet from a slice
func NewTransactionSet(transactions []Transaction) *TransactionSet {
	return &TransactionSet{Transactions: transactions}
}

// Len returns the number of transactions
func (ts *TransactionSet) Len() int {
	return len(ts.Transactions)
}

// FilterByType returns transactions of the specified type
func (ts *TransactionSet) FilterByType(tt TransactionType) *TransactionSet {
	result := &TransactionSet{}
	for _, t := range ts.Transactions {
		if t.Type == tt {
			result.Transactions = append(result.Transactions, t)
		}
	}
	return result
}

// Filter returns the transactions matching f, in their current order
func (ts *TransactionSet) Filter(f TransactionFilter) *TransactionSet {
	result := &TransactionSet{}
	for i := range ts.Transactions {
		if f.Matches(&ts.Transactions[i]) {
			result.Transactions = append(result.Transactions, ts.Transactions[i])
		}
	}
	return result
}

// SortByDate sorts transactions by date ascending; same-date rows keep their order
func (ts *TransactionSet) SortByDate() *TransactionSet {
	sorted := ts.Copy()
	sort.SliceStable(sorted.Transactions, func(i, j int) bool {
		return sorted.Transactions[i].Date < sorted.Transactions[j].Date
	})
	return sorted
}

// SortByDateDesc sorts transactions by date descending; same-date rows keep their order
func (ts *TransactionSet) SortByDateDesc() *TransactionSet {
	sorted := ts.Copy()
	sort.SliceStable(sorted.Transactions, func(i, j int) bool {
		return sorted.Transactions[i].Date > sorted.Transactions[j].Date
	})
	return sorted
}

// Truncate returns at most n transactions; n <= 0 keeps everything
func (ts *TransactionSet) Truncate(n int) *TransactionSet {
	if n <= 0 || n >= len(ts.Transactions) {
		return ts
	}
	return &TransactionSet{Transactions: ts.Transactions[:n]}
}

// MaxDate returns the latest transaction date, or "" for an empty set
func (ts *TransactionSet) MaxDate() string {
	var max string
	for _, t := range ts.Transactions {
		if t.Date > max {
			max = t.Date
		}
	}
	return max
}

// ParticularsSet returns the sorted distinct particulars strings, casing preserved
func (ts *TransactionSet) ParticularsSet() []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range ts.Transactions {
		if !seen[t.Particulars] {
			seen[t.Particulars] = true
			names = append(names, t.Particulars)
		}
	}
	sort.Strings(names)
	return names
}

// Copy creates a deep copy of the TransactionSet
func (ts *TransactionSet) Copy() *TransactionSet {
	copied := make([]Transaction, len(ts.Transactions))
	for i, t := range ts.Transactions {
		copied[i] = t.Clone()
	}
	return &TransactionSet{Transactions: copied}
}
