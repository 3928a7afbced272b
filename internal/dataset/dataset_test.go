package dataset

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wdbcRow renders one wdbc.data line whose features are base, base+1, ...
func wdbcRow(id int, diagnosis string, base float64) string {
	fields := []string{fmt.Sprint(id), diagnosis}
	for i := 0; i < len(FeatureNames); i++ {
		fields = append(fields, fmt.Sprintf("%g", base+float64(i)))
	}
	return strings.Join(fields, ",")
}

func sampleWDBC(n int) string {
	var lines []string
	for i := 0; i < n; i++ {
		d := "B"
		if i%3 == 0 {
			d = "M"
		}
		lines = append(lines, wdbcRow(842300+i, d, float64(i)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func TestFeatureNames(t *testing.T) {
	require.Len(t, FeatureNames, 30)
	assert.Equal(t, "mean radius", FeatureNames[0])
	assert.Equal(t, "radius error", FeatureNames[10])
	assert.Equal(t, "worst fractal dimension", FeatureNames[29])

	names := Names()
	names[0] = "changed"
	assert.Equal(t, "mean radius", FeatureNames[0], "Names must return a copy")
}

func TestLabelName(t *testing.T) {
	assert.Equal(t, "Malignant", LabelName(Malignant))
	assert.Equal(t, "Benign", LabelName(Benign))
}

func TestParseWDBC(t *testing.T) {
	ds, err := ParseWDBC(strings.NewReader(sampleWDBC(6)))
	require.NoError(t, err)

	require.Equal(t, 6, ds.Len())
	assert.Equal(t, []int{Malignant, Benign, Benign, Malignant, Benign, Benign}, ds.Y)
	require.Len(t, ds.X[2], 30)
	assert.Equal(t, 2.0, ds.X[2][0])
	assert.Equal(t, 31.0, ds.X[2][29])
}

func TestWriteWDBC_RoundTrip(t *testing.T) {
	in, err := ParseWDBC(strings.NewReader(sampleWDBC(5)))
	require.NoError(t, err)
	in.X[1][4] = 0.08474

	var buf strings.Builder
	require.NoError(t, WriteWDBC(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "1,M,0,1,2,"))

	out, err := Parse(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, in.Y, out.Y)
	assert.Equal(t, in.X, out.X)

	bad := &Dataset{X: [][]float64{{1, 2}}, Y: []int{0}}
	assert.Error(t, WriteWDBC(&buf, bad))
}

func TestParseWDBC_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "empty"},
		{"short row", "1,M,1.0,2.0\n", "expected 32 fields"},
		{"bad diagnosis", wdbcRow(1, "X", 0), "unknown diagnosis"},
		{"bad number", strings.Replace(wdbcRow(1, "M", 0), ",5,", ",abc,", 1), "mean compactness"},
		{"not finite", strings.Replace(wdbcRow(1, "B", 0), ",5,", ",NaN,", 1), "not finite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWDBC(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseCSV(t *testing.T) {
	header := append([]string{"id"}, FeatureNames...)
	header = append(header, "target")

	var rows []string
	rows = append(rows, strings.Join(header, ","))
	for i := 0; i < 4; i++ {
		vals := []string{fmt.Sprint(i)}
		for j := range FeatureNames {
			vals = append(vals, fmt.Sprint(i*100+j))
		}
		vals = append(vals, fmt.Sprint(i%2))
		rows = append(rows, strings.Join(vals, ","))
	}

	ds, err := ParseCSV(strings.NewReader(strings.Join(rows, "\n")))
	require.NoError(t, err)
	require.Equal(t, 4, ds.Len())
	assert.Equal(t, []int{0, 1, 0, 1}, ds.Y)
	assert.Equal(t, 301.0, ds.X[3][1])
}

func TestParseCSV_MissingColumns(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("mean radius,label\n1,0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")

	_, err = ParseCSV(strings.NewReader(strings.Join(FeatureNames, ",") + "\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label or target")
}

func TestParse_Sniffing(t *testing.T) {
	ds, err := Parse(strings.NewReader(sampleWDBC(3)))
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	csvInput := strings.Join(FeatureNames, ",") + ",label\n" + strings.TrimPrefix(wdbcRow(0, "", 1), "0,,") + ",1\n"
	ds, err = Parse(strings.NewReader(csvInput))
	require.NoError(t, err)
	assert.Equal(t, []int{Benign}, ds.Y)

	_, err = Parse(strings.NewReader("   \n"))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSplit(t *testing.T) {
	ds, err := ParseWDBC(strings.NewReader(sampleWDBC(10)))
	require.NoError(t, err)

	train, test, err := Split(ds, 0.2, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, train.Len())
	assert.Equal(t, 2, test.Len())

	// Every row lands in exactly one partition.
	seen := map[float64]int{}
	for _, row := range append(append([][]float64{}, train.X...), test.X...) {
		seen[row[0]]++
	}
	assert.Len(t, seen, 10)
	for k, c := range seen {
		assert.Equal(t, 1, c, "row %v seen %d times", k, c)
	}

	// Same seed, same split.
	train2, test2, err := Split(ds, 0.2, 2)
	require.NoError(t, err)
	assert.Equal(t, train.X, train2.X)
	assert.Equal(t, test.Y, test2.Y)

	// Ceil on the test partition.
	_, test3, err := Split(ds, 0.25, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, test3.Len())
}

func TestSplit_Invalid(t *testing.T) {
	ds, err := ParseWDBC(strings.NewReader(sampleWDBC(2)))
	require.NoError(t, err)

	_, _, err = Split(ds, 0, 1)
	assert.Error(t, err)
	_, _, err = Split(ds, 1, 1)
	assert.Error(t, err)
	_, _, err = Split(ds, 0.9, 1)
	assert.Error(t, err, "no rows left to train on")
}

func TestLoader_ReadsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wdbc.data")
	require.NoError(t, os.WriteFile(path, []byte(sampleWDBC(5)), 0o644))

	l := NewLoader(LoaderConfig{Path: path, Download: false})
	ds, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Len())
}

func TestLoader_MissingWithoutDownload(t *testing.T) {
	l := NewLoader(LoaderConfig{Path: filepath.Join(t.TempDir(), "absent.data")})
	_, err := l.Load(context.Background())
	assert.Error(t, err)
}

func TestLoader_DownloadsAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(sampleWDBC(7)))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "nested", "wdbc.data")
	l := NewLoader(LoaderConfig{Path: path, URL: srv.URL, Download: true, Timeout: 5 * time.Second})

	ds, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, ds.Len())
	assert.FileExists(t, path)

	ds, err = l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, ds.Len())
	assert.Equal(t, int32(1), hits.Load(), "second load must use the cached file")
}

func TestLoader_DownloadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "wdbc.data")
	l := NewLoader(LoaderConfig{Path: path, URL: srv.URL, Download: true, Timeout: 5 * time.Second})

	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.NoFileExists(t, path)
}

func TestLoader_UnparsableDownloadNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Write([]byte("<html>maintenance</html>"))
			return
		}
		w.Write([]byte(sampleWDBC(4)))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "wdbc.data")
	l := NewLoader(LoaderConfig{Path: path, URL: srv.URL, Download: true, Timeout: 5 * time.Second})

	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.NoFileExists(t, path)

	ds, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, int32(2), hits.Load())
	assert.FileExists(t, path)
}
