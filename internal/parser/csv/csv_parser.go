// Package csv reads the pipe-delimited SEPA member files into raw text
// records. The reader is deliberately forgiving: the upstream feed ships
// ill-formed UTF-8, ragged rows, stray quotes, and a BOM on the first header
// cell, and none of those should fail a whole member file. Every cell is kept
// as a string (or nil for declared null markers); typed coercion belongs to
// the validator.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"sepaetl/pkg/records"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Options configures the member-file reader. Zero values get SEPA defaults.
type Options struct {
	// Comma is the field delimiter. The SEPA feed is pipe-delimited; when
	// zero, '|' is used.
	Comma rune

	// NullValues are cell contents mapped to nil after trimming. When nil,
	// the feed's conventional markers ("", "NULL", "null") are used.
	NullValues []string
}

// Parser reads one member file per call. It is safe to reuse across inputs
// but is not concurrency-safe.
type Parser struct {
	comma rune
	nulls map[string]struct{}
}

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser {
	comma := opt.Comma
	if comma == 0 {
		comma = '|'
	}
	nulls := opt.NullValues
	if nulls == nil {
		nulls = []string{"", "NULL", "null"}
	}
	set := make(map[string]struct{}, len(nulls))
	for _, n := range nulls {
		set[n] = struct{}{}
	}
	return &Parser{comma: comma, nulls: set}
}

// ReadTable reads a full member file and returns the canonical header names
// and the raw rows. Ill-formed UTF-8 bytes are replaced with U+FFFD before
// parsing so one bad byte cannot poison the decoder. Rows wider than the
// header are truncated; narrower rows leave the missing trailing cells nil.
func (p *Parser) ReadTable(r io.Reader) ([]string, []records.Record, error) {
	cr := csv.NewReader(transform.NewReader(r, runes.ReplaceIllFormed()))
	cr.Comma = p.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rawHeader, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("csv: empty member file")
		}
		return nil, nil, fmt.Errorf("csv: read header: %w", err)
	}
	header := canonicalHeader(rawHeader)

	var rows []records.Record
	for {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("csv: read row %d: %w", len(rows)+2, err)
		}
		rec := make(records.Record, len(header))
		for i, name := range header {
			if i >= len(cells) {
				rec[name] = nil
				continue
			}
			rec[name] = p.cell(cells[i])
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// cell trims a raw cell and maps declared null markers to nil.
func (p *Parser) cell(raw string) any {
	s := strings.TrimSpace(raw)
	if _, isNull := p.nulls[s]; isNull {
		return nil
	}
	return s
}

// canonicalHeader trims whitespace and BOM remnants from header cells. The
// feed occasionally carries the BOM into the first column name, which would
// otherwise break every lookup of "id_comercio".
func canonicalHeader(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimPrefix(h, utf8BOM)
		out[i] = strings.TrimSpace(h)
	}
	return out
}
