package models

import (
	"strings"
	"time"
)

// Reserved spreadsheet columns; every other header is a payment method channel
const (
	ColumnParticulars = "Particulars"
	ColumnSales       = "SALES"
	ColumnPayment     = "PAYMENT"
)

// IsReservedColumn reports whether name is one of the fixed upload columns
func IsReservedColumn(name string) bool {
	return name == ColumnParticulars || name == ColumnSales || name == ColumnPayment
}

// Row is one uploaded data row keyed by column name
type Row map[string]string

// Blank reports whether every cell in the row is empty
func (r Row) Blank() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// UploadedTable is a parsed spreadsheet awaiting review
type UploadedTable struct {
	Columns        []string `json:"columns"`
	Rows           []Row    `json:"rows"`
	PaymentMethods []string `json:"paymentMethods"`
}

// NewUploadedTable builds a table from a header and rows, discovering payment method columns.
// A method column repeated in the header is listed once.
func NewUploadedTable(columns []string, rows []Row) *UploadedTable {
	var methods []string
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c == "" || IsReservedColumn(c) {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		methods = append(methods, c)
	}
	return &UploadedTable{Columns: columns, Rows: rows, PaymentMethods: methods}
}

// HasColumn reports whether name is part of the header
func (t *UploadedTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// StagedUpload is an uploaded table held for review before it is committed
type StagedUpload struct {
	ID         string            `json:"id"`
	Filename   string            `json:"filename"`
	UploadedAt time.Time         `json:"uploadedAt"`
	Table      *UploadedTable    `json:"table"`
	RowTypes   []TransactionType `json:"rowTypes"`
}
