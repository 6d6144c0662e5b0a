package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	// ColumnDefault is the column read when none is specified.
	ColumnDefault = "password"
)

var (
	// ErrFileNotFound is returned when the input file does not exist.
	ErrFileNotFound = errors.New("input file not found")
	// ErrColumnNotFound is returned when the header lacks the column.
	ErrColumnNotFound = errors.New("column not found")
	// ErrInvalidEncoding is returned when a password is not valid UTF-8.
	ErrInvalidEncoding = errors.New("invalid UTF-8")
)

// LoadPasswords reads the named column of a CSV file with a header row.
// Empty cells are skipped.
func LoadPasswords(path, column string) ([]string, error) {
	if path == "" {
		return nil, errors.New("input path required")
	}
	if column == "" {
		column = ColumnDefault
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("error opening input file %s: %w", path, err)
	}
	defer f.Close()

	list, err := ReadPasswords(f, column)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return list, nil
}

// ReadPasswords reads the named column from CSV content. The content must
// be UTF-8; a password holding invalid bytes fails the whole read.
func ReadPasswords(r io.Reader, column string) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s (empty input)", ErrColumnNotFound, column)
		}
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idx := slices.Index(header, column)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s (columns: %s)", ErrColumnNotFound, column, strings.Join(header, ", "))
	}

	list := make([]string, 0)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading record: %w", err)
		}
		if idx >= len(rec) || rec[idx] == "" {
			continue
		}
		if !utf8.ValidString(rec[idx]) {
			line, _ := cr.FieldPos(idx)
			return nil, fmt.Errorf("%w: %s at line %d", ErrInvalidEncoding, column, line)
		}
		list = append(list, rec[idx])
	}

	return list, nil
}
