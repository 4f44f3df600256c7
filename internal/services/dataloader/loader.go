package dataloader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"daybook/internal/models"
	"daybook/internal/services/classifier"
)

var (
	// ErrEmptySheet rejects an upload without a header and at least one data row
	ErrEmptySheet = errors.New("spreadsheet must have at least 2 rows (header + data)")
	// ErrUnsupportedFormat rejects files that are neither Excel nor CSV
	ErrUnsupportedFormat = errors.New("unsupported file type: upload an Excel (.xlsx, .xls) or CSV file")
)

// numericPrefix matches the leading number of a cell, the way spreadsheet users type it
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d{1,3})?`)

// maxAmount is the largest value a cell may hold; anything above reads as zero
var maxAmount = decimal.New(1, 15)

// IDFunc produces a transaction id for a row in a batch dated date
type IDFunc func(date string) string

// NewID combines the batch date with a random token
func NewID(date string) string {
	return date + "-" + uuid.NewString()
}

// ParseSpreadsheet decodes an uploaded file into a table. The format is picked from
// the file extension. The first worksheet is used for Excel workbooks.
func ParseSpreadsheet(filename string, r io.Reader) (*models.UploadedTable, error) {
	var (
		records [][]string
		err     error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls", ".xlsm":
		records, err = readWorkbook(r)
	case ".csv":
		records, err = readCSV(r)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	return BuildTable(records)
}

// BuildTable turns raw records (header first) into an UploadedTable, dropping blank rows
func BuildTable(records [][]string) (*models.UploadedTable, error) {
	if len(records) < 2 {
		return nil, ErrEmptySheet
	}

	header := make([]string, len(records[0]))
	for i, col := range records[0] {
		header[i] = strings.TrimSpace(col)
	}

	var rows []models.Row
	for _, record := range records[1:] {
		row := make(models.Row, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			// Ragged rows: anything past the end of the record is blank
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			} else {
				row[col] = ""
			}
		}
		if row.Blank() {
			continue
		}
		rows = append(rows, row)
	}

	return models.NewUploadedTable(header, rows), nil
}

// readWorkbook returns the cell grid of the first worksheet
func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("error opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("error reading sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// readCSV returns every record of a delimited text upload
func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading csv: %w", err)
	}
	return records, nil
}

// ToTransactions converts every table row into a transaction dated date.
// It never fails: unreadable amounts become zero and the row still yields a record.
func ToTransactions(table *models.UploadedTable, date string, newID IDFunc) []models.Transaction {
	if newID == nil {
		newID = NewID
	}

	transactions := make([]models.Transaction, 0, len(table.Rows))
	for _, row := range table.Rows {
		t := models.Transaction{
			ID:             newID(date),
			Date:           date,
			Particulars:    strings.TrimSpace(row[models.ColumnParticulars]),
			Sales:          ParseAmount(row[models.ColumnSales]),
			Payment:        ParseAmount(row[models.ColumnPayment]),
			PaymentMethods: paymentMethods(table, row),
		}
		transactions = append(transactions, t)
	}

	return classifier.ClassifyTransactions(transactions)
}

// PreviewTypes returns the type each row would receive if committed now
func PreviewTypes(table *models.UploadedTable) []models.TransactionType {
	types := make([]models.TransactionType, len(table.Rows))
	for i, row := range table.Rows {
		types[i] = classifier.Classify(
			row[models.ColumnParticulars],
			ParseAmount(row[models.ColumnSales]),
			paymentMethods(table, row),
		)
	}
	return types
}

// paymentMethods collects the strictly positive payment channel cells of a row
func paymentMethods(table *models.UploadedTable, row models.Row) models.PaymentMethods {
	methods := make(models.PaymentMethods)
	for _, method := range table.PaymentMethods {
		if amount := ParseAmount(row[method]); amount.IsPositive() {
			methods[method] = amount
		}
	}
	return methods
}

// ParseAmount reads the leading number of a cell, ignoring currency symbols and
// thousands separators. Blank, unreadable, negative and oversized values all read as zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.NewReplacer(",", "", "₹", "", "$", "", " ", "").Replace(strings.TrimSpace(s))

	match := numericPrefix.FindString(s)
	if match == "" {
		return decimal.Zero
	}

	amount, err := decimal.NewFromString(match)
	if err != nil || amount.IsNegative() || amount.GreaterThan(maxAmount) {
		return decimal.Zero
	}
	return amount
}
