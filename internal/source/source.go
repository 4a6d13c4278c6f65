// Package source provides the raw tabular dataset the trainer learns from.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"exoplanet-classifier/internal/schema"

	"github.com/go-resty/resty/v2"
)

// ErrSourceUnavailable wraps every failure to obtain the dataset.
var ErrSourceUnavailable = errors.New("source unavailable")

// Source yields raw records keyed by column name.
type Source interface {
	Fetch(ctx context.Context) ([]schema.Record, error)
	String() string
}

// HTTPSource downloads a CSV table over HTTP.
type HTTPSource struct {
	url  string
	rest *resty.Client
}

// NewHTTP returns a source for url. A non-positive timeout falls back to 60s.
func NewHTTP(url string, timeout time.Duration) *HTTPSource {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(60 * time.Second)
	}
	r.SetHeader("Accept", "text/csv")
	return &HTTPSource{url: url, rest: r}
}

func (s *HTTPSource) String() string { return s.url }

// Fetch performs one GET without retries. Transport errors and non-2xx
// responses are reported as ErrSourceUnavailable.
func (s *HTTPSource) Fetch(ctx context.Context) ([]schema.Record, error) {
	resp, err := s.rest.R().
		SetContext(ctx).
		Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s returned %s", ErrSourceUnavailable, s.url, resp.Status())
	}

	records, err := ParseCSV(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return records, nil
}

// FileSource reads a CSV table from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) String() string { return s.Path }

func (s FileSource) Fetch(ctx context.Context) ([]schema.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()

	records, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return records, nil
}

// ParseCSV reads a header row followed by data rows. Lines starting with '#'
// are skipped. Cells are kept as trimmed strings; a row shorter than the
// header simply lacks the trailing columns.
func ParseCSV(r io.Reader) ([]schema.Record, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var records []schema.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		rec := make(schema.Record, len(columns))
		for i, cell := range row {
			if i >= len(columns) {
				break
			}
			rec[columns[i]] = strings.TrimSpace(cell)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Static serves a fixed set of records.
type Static []schema.Record

func (s Static) String() string { return "static" }

func (s Static) Fetch(ctx context.Context) ([]schema.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
