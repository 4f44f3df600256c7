// Package export renders transaction lists as spreadsheets for download.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"daybook/internal/models"
)

// SheetName is the worksheet written by WriteXLSX
const SheetName = "Transactions"

// Supported download formats
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// ErrUnknownFormat is returned for anything other than xlsx or csv
var ErrUnknownFormat = errors.New("export format must be xlsx or csv")

// FixedColumns lead every export; payment method columns follow
var FixedColumns = []string{"Date", "Particulars", "Sales", "Payment", "Type"}

// Table is the shaped export shared by every serialization.
// Amount cells hold a decimal.Decimal, or nil where a row has no such payment method.
type Table struct {
	Header  []string
	Methods []string
	Rows    [][]any
}

// Rows shapes transactions into the export table. Method columns appear in the order
// they are first met; within one transaction methods are visited by name.
func Rows(transactions []models.Transaction) *Table {
	var methods []string
	seen := make(map[string]bool)
	for _, t := range transactions {
		for _, name := range t.PaymentMethods.Names() {
			if !seen[name] {
				seen[name] = true
				methods = append(methods, name)
			}
		}
	}

	header := make([]string, 0, len(FixedColumns)+len(methods))
	header = append(header, FixedColumns...)
	header = append(header, methods...)

	rows := make([][]any, 0, len(transactions))
	for _, t := range transactions {
		row := make([]any, 0, len(header))
		row = append(row, t.Date, t.Particulars, t.Sales, t.Payment, string(t.Type))
		for _, m := range methods {
			if amount, ok := t.PaymentMethods[m]; ok {
				row = append(row, amount)
			} else {
				row = append(row, nil)
			}
		}
		rows = append(rows, row)
	}

	return &Table{Header: header, Methods: methods, Rows: rows}
}

// Records flattens the table into strings, header first. Sparse cells are empty.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.Rows)+1)
	records = append(records, t.Header)
	for _, row := range t.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = cellString(cell)
		}
		records = append(records, record)
	}
	return records
}

// WriteCSV writes transactions as comma-separated text
func WriteCSV(w io.Writer, transactions []models.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Rows(transactions).Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes transactions as a single-sheet Excel workbook with numeric amount cells
func WriteXLSX(w io.Writer, transactions []models.Transaction) error {
	table := Rows(transactions)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(table.Header))
	for i, h := range table.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range table.Rows {
		values := make([]any, len(row))
		for j, cell := range row {
			if amount, ok := cell.(decimal.Decimal); ok {
				values[j] = amount.InexactFloat64()
			} else {
				values[j] = cell
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(table.Header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "A", 12); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Write dispatches on format
func Write(w io.Writer, format string, transactions []models.Transaction) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, transactions)
	case FormatCSV:
		return WriteCSV(w, transactions)
	}
	return ErrUnknownFormat
}

// ContentType returns the MIME type for a download format
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename names a download after the day it was produced
func Filename(format string, now time.Time) string {
	return fmt.Sprintf("transactions_%s.%s", now.Format(models.DateLayout), format)
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case decimal.Decimal:
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
