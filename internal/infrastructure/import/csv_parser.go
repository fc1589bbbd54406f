package csvimport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxBytes bounds the size of an uploaded sheet
const DefaultMaxBytes = 5 << 20

// SheetReader reads a header-keyed CSV sheet exported from a spreadsheet
type SheetReader struct {
	delimiter  rune
	maxBytes   int64
	headerMap  map[string]int
	headers    []string
	currentRow int
	reader     *csv.Reader
}

// ReaderOption configures a SheetReader
type ReaderOption func(*SheetReader)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ReaderOption {
	return func(r *SheetReader) {
		r.delimiter = d
	}
}

// WithMaxBytes overrides DefaultMaxBytes
func WithMaxBytes(n int64) ReaderOption {
	return func(r *SheetReader) {
		r.maxBytes = n
	}
}

// NewSheetReader decodes the input and reads its header row.
// UTF-8 input may carry a byte order mark; UTF-16 input must.
func NewSheetReader(in io.Reader, opts ...ReaderOption) (*SheetReader, error) {
	r := &SheetReader{
		delimiter: ',',
		maxBytes:  DefaultMaxBytes,
		headerMap: make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}

	data, err := io.ReadAll(io.LimitReader(in, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, ErrFileTooLarge
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	data, err = decode(data)
	if err != nil {
		return nil, err
	}

	r.reader = csv.NewReader(bytes.NewReader(data))
	r.reader.Comma = r.delimiter
	r.reader.LazyQuotes = true
	r.reader.TrimLeadingSpace = true
	r.reader.FieldsPerRecord = -1

	if err := r.readHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

func decode(data []byte) ([]byte, error) {
	utf16 := bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF})
	if !utf16 && !utf8.Valid(data) {
		return nil, ErrInvalidEncoding
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return out, nil
}

func (r *SheetReader) readHeader() error {
	record, err := r.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	r.currentRow = 1

	r.headers = make([]string, len(record))
	for i, h := range record {
		key := normalizeHeader(h)
		r.headers[i] = key
		if key == "" {
			continue
		}
		if _, dup := r.headerMap[key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateHeader, key)
		}
		r.headerMap[key] = i
	}
	if len(r.headerMap) == 0 {
		return ErrMissingHeader
	}
	return nil
}

// normalizeHeader maps "Expense Account ID" and "expense_account_id" to the same key
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Join(strings.FieldsFunc(h, func(c rune) bool {
		return c == ' ' || c == '-' || c == '_'
	}), "_")
	return h
}

// Headers returns the normalized header names in column order
func (r *SheetReader) Headers() []string {
	return r.headers
}

// HasHeader reports whether the sheet has the given column
func (r *SheetReader) HasHeader(name string) bool {
	_, ok := r.headerMap[normalizeHeader(name)]
	return ok
}

// MissingHeaders returns the required columns the sheet lacks
func (r *SheetReader) MissingHeaders(required ...string) []string {
	var missing []string
	for _, name := range required {
		if !r.HasHeader(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Row is one data row keyed by normalized header
type Row struct {
	LineNumber int
	Data       map[string]string
}

// Get returns the trimmed value of a column
func (r *Row) Get(column string) string {
	return r.Data[column]
}

// IsEmpty reports whether every cell is blank
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// Next returns the next row, or io.EOF after the last one.
func (r *SheetReader) Next() (*Row, error) {
	record, err := r.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("row %d: %w", r.currentRow+1, err)
	}
	r.currentRow++

	row := &Row{LineNumber: r.currentRow, Data: make(map[string]string, len(r.headerMap))}
	for key, idx := range r.headerMap {
		if idx < len(record) {
			row.Data[key] = strings.TrimSpace(record[idx])
		} else {
			row.Data[key] = ""
		}
	}
	return row, nil
}
