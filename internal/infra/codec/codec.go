// Package codec translates registry records to and from delimited-text rows.
//
// Non-empty values are always quoted with embedded quotes doubled, so delimiters,
// quotes, and line breaks (including CR LF pairs) inside a value survive a round trip
// byte for byte. Empty values are written as empty cells.
package codec

import (
	"bytes"
	"strings"

	"github.com/totegamma/lostfound/internal/domain"
)

const (
	Delimiter = ','
	Quote     = '"'
	// BOM marks the registry file as UTF-8 for spreadsheet tools.
	BOM = "\uFEFF"

	rowTerminator = "\r\n"
)

// Header renders the column-name row.
func Header() string {
	return strings.Join(Columns(), string(Delimiter)) + rowTerminator
}

// EncodeRow renders one record as one row in column order.
func EncodeRow(r domain.Record) string {
	var b strings.Builder
	for i, c := range columns {
		if i > 0 {
			b.WriteByte(Delimiter)
		}
		writeCell(&b, c.get(&r))
	}
	b.WriteString(rowTerminator)
	return b.String()
}

func writeCell(b *strings.Builder, v string) {
	if v == "" {
		return
	}
	b.WriteByte(Quote)
	for i := 0; i < len(v); i++ {
		if v[i] == Quote {
			b.WriteByte(Quote)
		}
		b.WriteByte(v[i])
	}
	b.WriteByte(Quote)
}

// Encode renders the header followed by every record. The BOM is not included.
func Encode(records []domain.Record) []byte {
	var buf bytes.Buffer
	buf.WriteString(Header())
	for _, r := range records {
		buf.WriteString(EncodeRow(r))
	}
	return buf.Bytes()
}

// Decode parses a header and rows. An empty document yields no records.
func Decode(data []byte) ([]domain.Record, error) {
	text := strings.TrimPrefix(string(data), BOM)
	text = strings.TrimLeft(text, " \t\r\n")
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return []domain.Record{}, nil
	}

	rows, err := parse(text)
	if err != nil {
		return nil, err
	}

	if err := checkHeader(rows[0].cells); err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row.cells) != len(columns) {
			return nil, &SyntaxError{Line: row.line, Msg: "wrong number of fields"}
		}
		var r domain.Record
		for i, c := range columns {
			if err := c.set(&r, row.cells[i]); err != nil {
				return nil, &SyntaxError{Line: row.line, Msg: (&FieldValueError{Field: c.name, Value: row.cells[i], Err: err}).Error()}
			}
		}
		records = append(records, r)
	}
	return records, nil
}

// DecodeAll is the lenient form of Decode: malformed input yields an empty result.
func DecodeAll(data []byte) []domain.Record {
	records, err := Decode(data)
	if err != nil {
		return []domain.Record{}
	}
	return records
}

func checkHeader(cells []string) error {
	if len(cells) != len(columns) {
		return &SyntaxError{Line: 1, Msg: "header has wrong number of columns"}
	}
	for i, c := range columns {
		if !strings.EqualFold(strings.TrimSpace(cells[i]), c.name) {
			return &SyntaxError{Line: 1, Msg: "unexpected column " + cells[i] + ", want " + c.name}
		}
	}
	return nil
}
