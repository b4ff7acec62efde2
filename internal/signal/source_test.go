package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vibration-diag/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestParseSamples(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		column  int
		sep     rune
		want    []float64
		wantErr error
	}{
		{
			name:   "two columns with header",
			input:  "time,data\n0.0,1.5\n0.1,-2.25\n0.2,3e-1\n",
			column: 1,
			sep:    ',',
			want:   []float64{1.5, -2.25, 0.3},
		},
		{
			name:   "blank and short lines skipped",
			input:  "0,1\n\n7\n0.2, 2\n",
			column: 1,
			sep:    ',',
			want:   []float64{1, 2},
		},
		{
			name:   "semicolon separator",
			input:  "0;4\n1;5\n",
			column: 1,
			sep:    ';',
			want:   []float64{4, 5},
		},
		{
			name:   "first column",
			input:  "0.5,a\n0.6,b\n",
			column: 0,
			sep:    ',',
			want:   []float64{0.5, 0.6},
		},
		{
			name:    "no numeric values",
			input:   "time,data\nx,y\n",
			column:  1,
			sep:     ',',
			wantErr: common.ErrFormat,
		},
		{
			name:    "single column layout",
			input:   "1\n2\n3\n",
			column:  1,
			sep:     ',',
			wantErr: common.ErrFormat,
		},
		{
			name:    "negative column",
			input:   "1,2\n",
			column:  -1,
			sep:     ',',
			wantErr: common.ErrInvalidArgument,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSamples(strings.NewReader(tc.input), tc.column, tc.sep)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDeltaSlice(t, tc.want, got, 1e-12)
		})
	}
}

func TestCSVSource_Read(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acc_00001.csv")
	writeFile(t, path, "0,1\n1,-1\n2,1\n3,-1\n")

	src := NewCSVSource(1, 0)
	samples, err := src.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -1, 1, -1}, samples)

	_, err = src.Read(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCSVSource_ReadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVSource(1, ',').Read(ctx, "whatever.csv")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCSVSource_Stat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acc_00001.csv")
	writeFile(t, path, "0,1\n")

	src := NewCSVSource(1, ',')
	stamp, err := src.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stamp.Size)
	assert.False(t, stamp.ModTime.IsZero())
	assert.Equal(t, `column=1 separator=','`, stamp.Layout)

	other, err := NewCSVSource(0, ';').Stat(path)
	require.NoError(t, err)
	assert.Equal(t, stamp.Size, other.Size)
	assert.NotEqual(t, stamp.Layout, other.Layout)

	_, err = src.Stat(dir)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = src.Stat(filepath.Join(dir, "nope.csv"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestHTTPSource_Read(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/acc_00001.csv":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("time,data\n0,2\n1,4\n"))
		case "/bad.csv":
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	src := NewHTTPSource(1, ',', 2*time.Second)

	samples, err := src.Read(context.Background(), server.URL+"/acc_00001.csv")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, samples)

	_, err = src.Read(context.Background(), server.URL+"/missing.csv")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = src.Read(context.Background(), server.URL+"/bad.csv")
	assert.ErrorIs(t, err, common.ErrFormat)
}

func TestRouter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0,9\n"))
	}))
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "acc_00001.csv")
	writeFile(t, path, "0,3\n")

	router := &Router{File: NewCSVSource(1, ','), Remote: NewHTTPSource(1, ',', time.Second)}

	local, err := router.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, local)

	remote, err := router.Read(context.Background(), server.URL+"/x.csv")
	require.NoError(t, err)
	assert.Equal(t, []float64{9}, remote)

	_, err = router.Stat(server.URL + "/x.csv")
	assert.ErrorIs(t, err, common.ErrNotFound)

	noRemote := &Router{File: NewCSVSource(1, ',')}
	_, err = noRemote.Read(context.Background(), server.URL+"/x.csv")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("http://host/a.csv"))
	assert.True(t, IsRemote("https://host/a.csv"))
	assert.False(t, IsRemote("/data/a.csv"))
	assert.False(t, IsRemote("httpdata/a.csv"))
}
