package parsers

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/username/optionstaxhub/backend/src/models"
	"github.com/username/optionstaxhub/backend/src/parsers/robinhood"
	"github.com/username/optionstaxhub/backend/src/parsers/snapshot"
)

// robinhoodRequired are the header columns that identify a Robinhood
// transaction history export.
var robinhoodRequired = []string{"Activity Date", "Instrument", "Trans Code", "Quantity", "Price"}

// snapshotRequired are the header columns that identify a simplified
// portfolio snapshot (case-insensitive).
var snapshotRequired = []string{"symbol", "quantity", "purchase_price", "current_price"}

// ParseUpload sniffs the CSV header, picks the matching parser and runs it.
// The today parameter anchors snapshot rows that carry no purchase date.
func ParseUpload(r io.Reader, today models.Date) (*ParseResult, error) {
	buffered := bufio.NewReader(r)
	headerLine, err := buffered.Peek(4096)
	if err != nil && err != io.EOF {
		return nil, err
	}

	header, err := readHeader(headerLine)
	if err != nil {
		return nil, ErrUnrecognizedFormat
	}

	switch {
	case containsAll(header, robinhoodRequired, false):
		return adapt(robinhood.NewParser().Parse(buffered))
	case containsAll(header, snapshotRequired, true):
		return adapt(snapshot.NewParser(today).Parse(buffered))
	default:
		return nil, ErrUnrecognizedFormat
	}
}

func readHeader(head []byte) ([]string, error) {
	line, _, _ := bytes.Cut(head, []byte("\n"))
	rec, err := csv.NewReader(bytes.NewReader(line)).Read()
	if err != nil {
		return nil, err
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	return rec, nil
}

func containsAll(header, required []string, caseInsensitive bool) bool {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		if caseInsensitive {
			col = strings.ToLower(col)
		}
		present[col] = true
	}
	for _, col := range required {
		if caseInsensitive {
			col = strings.ToLower(col)
		}
		if !present[col] {
			return false
		}
	}
	return true
}

func adapt(txns []models.Transaction, fallback map[string]float64, warnings []string, err error) (*ParseResult, error) {
	if err != nil {
		return nil, err
	}
	return &ParseResult{Transactions: txns, FallbackPrices: fallback, Warnings: warnings}, nil
}
