package classifier

import (
	"strings"

	"github.com/shopspring/decimal"

	"daybook/internal/models"
)

// CashInOfficeMarker identifies the daily physical-cash reconciliation row (lowercase)
const CashInOfficeMarker = "cash in office"

// Classify determines the transaction type. First match wins:
// a "cash in office" row, then any sale or positive payment channel, otherwise an expense.
func Classify(particulars string, sales decimal.Decimal, methods models.PaymentMethods) models.TransactionType {
	if IsCashInOffice(particulars) {
		return models.CashInOffice
	}
	if sales.IsPositive() || hasPositive(methods) {
		return models.Customer
	}
	return models.Expense
}

// ClassifyTransactions assigns a type to every transaction that does not carry one yet.
// Types already set are left alone; they never change after creation.
func ClassifyTransactions(transactions []models.Transaction) []models.Transaction {
	for i := range transactions {
		if transactions[i].Type != "" {
			continue
		}
		transactions[i].Type = Classify(
			transactions[i].Particulars,
			transactions[i].Sales,
			transactions[i].PaymentMethods,
		)
	}
	return transactions
}

// IsCashInOffice checks the particulars for the cash-in-office marker
func IsCashInOffice(particulars string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(particulars)), CashInOfficeMarker)
}

// hasPositive checks if any channel carries a positive amount
func hasPositive(methods models.PaymentMethods) bool {
	for _, amount := range methods {
		if amount.IsPositive() {
			return true
		}
	}
	return false
}
