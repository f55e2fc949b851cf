package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerwell/ledgerwell/internal/model"
)

// Header is the CSV header for transaction exports.
const Header = "TransactionNumber,TransactionAmount,TransactionType,TransactionDate,TransactionTime,FromAccount,ToAccount"

const (
	numFields  = 7
	dateFormat = "2006-01-02"
	timeFormat = "15:04:05"
	colID      = 0
	colAmount  = 1
	colKind    = 2
	colDate    = 3
	colTime    = 4
	colFrom    = 5
	colTo      = 6
)

// ReadCSV reads records from an export. Owner and sub-second time are not
// part of the format and come back empty.
func ReadCSV(r io.Reader) ([]model.TransactionRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transaction CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var recs []model.TransactionRecord
	for i, row := range rows[1:] {
		rec, err := UnmarshalRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// WriteCSV writes recs to w, header first.
func WriteCSV(w io.Writer, recs []model.TransactionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, rec := range recs {
		if err := cw.Write(MarshalRecord(rec)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalRecord converts a record to a CSV row. Absent account references
// are written as empty fields.
func MarshalRecord(rec model.TransactionRecord) []string {
	row := make([]string, numFields)
	at := rec.OccurredAt.UTC()
	row[colID] = rec.ID
	row[colAmount] = model.FormatAmount(rec.Amount)
	row[colKind] = string(rec.Kind)
	row[colDate] = at.Format(dateFormat)
	row[colTime] = at.Format(timeFormat)
	row[colFrom] = rec.FromAccount
	row[colTo] = rec.ToAccount
	return row
}

// UnmarshalRecord converts a CSV row to a record.
func UnmarshalRecord(row []string) (model.TransactionRecord, error) {
	if len(row) != numFields {
		return model.TransactionRecord{}, fmt.Errorf("expected %d fields, got %d", numFields, len(row))
	}

	amount, err := decimal.NewFromString(row[colAmount])
	if err != nil {
		return model.TransactionRecord{}, fmt.Errorf("parsing amount %q: %w", row[colAmount], err)
	}
	kind, err := model.ParseKind(row[colKind])
	if err != nil {
		return model.TransactionRecord{}, err
	}
	at, err := time.Parse(dateFormat+" "+timeFormat, row[colDate]+" "+row[colTime])
	if err != nil {
		return model.TransactionRecord{}, fmt.Errorf("parsing timestamp %q %q: %w", row[colDate], row[colTime], err)
	}

	return model.TransactionRecord{
		ID:          row[colID],
		Amount:      amount,
		Kind:        kind,
		OccurredAt:  at,
		FromAccount: row[colFrom],
		ToAccount:   row[colTo],
	}, nil
}
