// Package ledger derives per-customer running-balance ledgers from transactions.
package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"daybook/internal/models"
)

// maxWorkers bounds how many customer groups are built at once
const maxWorkers = 8

// Build groups every customer-typed transaction by its lower-cased trimmed particulars
// and builds one ledger per group. The input is not modified. Groups are independent,
// so they are built concurrently; each group's date order is deterministic.
func Build(transactions []models.Transaction) map[string]models.CustomerLedger {
	groups := make(map[string][]models.Transaction)
	var keys []string
	for _, t := range transactions {
		if t.Type != models.Customer {
			continue
		}
		key := t.CustomerKey()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], t)
	}

	built := make([]models.CustomerLedger, len(keys))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(maxWorkers)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			built[i] = buildGroup(key, groups[key])
			return nil
		})
	}
	// buildGroup never fails
	_ = g.Wait()

	ledgers := make(map[string]models.CustomerLedger, len(built))
	for _, l := range built {
		ledgers[l.Key] = l
	}
	return ledgers
}

// buildGroup computes one ledger from its transactions in insertion order
func buildGroup(key string, group []models.Transaction) models.CustomerLedger {
	totalSales := decimal.Zero
	totalPayments := decimal.Zero
	for i := range group {
		totalSales = totalSales.Add(group[i].Sales)
		totalPayments = totalPayments.Add(group[i].Debit())
	}

	sorted := models.NewTransactionSet(group).SortByDate().Transactions

	running := decimal.Zero
	for i := range sorted {
		credit := sorted[i].Sales
		debit := sorted[i].Debit()
		running = running.Add(credit).Sub(debit)

		balance := running
		sorted[i].CreditAmount = &credit
		sorted[i].DebitAmount = &debit
		sorted[i].Balance = &balance
	}

	current := totalSales.Sub(totalPayments)
	return models.CustomerLedger{
		Key:                 key,
		Particulars:         group[0].Particulars,
		TotalSales:          totalSales,
		TotalPayments:       totalPayments,
		CurrentBalance:      current,
		Status:              models.StatusOf(current),
		TransactionCount:    len(group),
		LastTransactionDate: sorted[len(sorted)-1].Date,
		Transactions:        sorted,
	}
}

// Sorted lists ledgers with the largest exposure first, regardless of sign.
// Equal exposures fall back to key order so the listing is stable.
func Sorted(ledgers map[string]models.CustomerLedger) []models.CustomerLedger {
	list := make([]models.CustomerLedger, 0, len(ledgers))
	for _, l := range ledgers {
		list = append(list, l)
	}
	sort.Slice(list, func(i, j int) bool {
		ai, aj := list[i].CurrentBalance.Abs(), list[j].CurrentBalance.Abs()
		if c := ai.Cmp(aj); c != 0 {
			return c > 0
		}
		return list[i].Key < list[j].Key
	})
	return list
}

// WithBalance keeps only ledgers whose balance is not settled
func WithBalance(ledgers []models.CustomerLedger) []models.CustomerLedger {
	var out []models.CustomerLedger
	for _, l := range ledgers {
		if !l.CurrentBalance.IsZero() {
			out = append(out, l)
		}
	}
	return out
}

// FilterByDate narrows a ledger's transaction list to an inclusive date window.
// Running balances keep the values computed over the full history.
func FilterByDate(l models.CustomerLedger, startDate, endDate string) models.CustomerLedger {
	f := models.TransactionFilter{StartDate: startDate, EndDate: endDate}
	l.Transactions = models.NewTransactionSet(l.Transactions).Filter(f).Transactions
	return l
}
