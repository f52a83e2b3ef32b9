package config

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/micro-nova/defect-tally/internal/models"
)

var (
	utf8BOM        = []byte("\xef\xbb\xbf")
	errNegative    = errors.New("negative count")
	errEmptyRecord = errors.New("empty record")
)

// EncodeSnapshot renders snap as a single CSV record with no header.
func EncodeSnapshot(snap models.Snapshot) []byte {
	rec := make([]string, len(snap))
	for i, v := range snap {
		rec[i] = strconv.Itoa(v)
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(rec) // writes into a bytes.Buffer cannot fail
	w.Flush()
	return buf.Bytes()
}

// DecodeSnapshot parses the first record of data. It returns nil when data
// holds no record. Fields that are not non-negative integers decode as 0 and
// are listed in the returned ParseError; a record that cannot be read at all
// yields a nil snapshot and a ParseError with Err set.
func DecodeSnapshot(data []byte) (models.Snapshot, *models.ParseError) {
	data = bytes.TrimPrefix(data, utf8BOM)
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rec, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.ParseError{Err: err}
	}
	if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
		return nil, &models.ParseError{Err: errEmptyRecord}
	}

	snap := make(models.Snapshot, len(rec))
	var bad []models.FieldError
	for i, field := range rec {
		field = strings.TrimSpace(field)
		n, err := strconv.Atoi(field)
		if err == nil && n < 0 {
			err = errNegative
		}
		if err != nil {
			bad = append(bad, models.FieldError{Column: i, Value: field, Err: err})
			continue
		}
		snap[i] = n
	}
	if len(bad) > 0 {
		return snap, &models.ParseError{Fields: bad}
	}
	return snap, nil
}
