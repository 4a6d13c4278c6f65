package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# comment line from the archive
koi_period,koi_depth,koi_disposition
9.48,615.8,CONFIRMED
19.89,,CANDIDATE
"1.73","10829",FALSE POSITIVE
2.5
`

func TestParseCSV(t *testing.T) {
	records, err := ParseCSV(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "9.48", records[0]["koi_period"])
	assert.Equal(t, "CONFIRMED", records[0]["koi_disposition"])
	assert.Equal(t, "", records[1]["koi_depth"])
	assert.Equal(t, "FALSE POSITIVE", records[2]["koi_disposition"])

	_, ok := records[3]["koi_disposition"]
	assert.False(t, ok, "short row must not carry trailing columns")
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.Error(t, err)

	records, err := ParseCSV(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	src := NewHTTP(srv.URL, time.Second)
	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, srv.URL, src.String())
}

func TestHTTPSource_Unavailable(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewHTTP(srv.URL, time.Second).Fetch(context.Background())
		assert.True(t, errors.Is(err, ErrSourceUnavailable))
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewHTTP(url, time.Second).Fetch(context.Background())
		assert.True(t, errors.Is(err, ErrSourceUnavailable))
	})
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "koi.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	records, err := FileSource{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 4)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.csv")}.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}
