package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"hddpredict/serials"
	"hddpredict/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const header = "date,serial_number,model,capacity_bytes,failure,smart_5_raw,smart_22_raw,smart_220_normalized\n"

func writeDay(t *testing.T, dir, name string, rows ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	content := header + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func fixture(t *testing.T) Options {
	t.Helper()
	base := filepath.Join(t.TempDir(), "HDD_dataset")
	out := filepath.Join(t.TempDir(), "output")
	require.NoError(t, os.MkdirAll(out, 0755))

	opts := Options{
		Models:    []string{"ST4000DM000", "ST3000DM001"},
		Years:     []string{"2016", "2017"},
		BasePath:  base,
		OutputDir: out,
		Workers:   3,
	}
	require.NoError(t, serials.Write(opts.SerialsPath(), []string{"A", "B", "C"}))

	y16 := filepath.Join(base, "2016")
	writeDay(t, y16, "2016-01-01.csv",
		"2016-01-01,A,ST4000DM000,4000,0,1,9,100",
		"2016-01-01,B,ST3000DM001,3000,0,2,9,100",
		"2016-01-01,X,ST4000DM000,4000,0,3,9,100")
	writeDay(t, y16, "2016-01-02.csv",
		"2016-01-02,A,ST4000DM000,4000,1,5,9,100",
		"2016-01-02,C,HGST,4000,0,0,9,100")
	writeDay(t, y16, "2015-12-31.csv",
		"2015-12-31,A,ST4000DM000,4000,0,1,9,100")
	require.NoError(t, os.WriteFile(filepath.Join(y16, "README.csv"), []byte("junk"), 0644))
	// 2017 is deliberately absent.
	return opts
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"ST4000DM000", "ST3000DM001"}, ParseList(" ST4000DM000 , ST3000DM001,"))
	assert.Nil(t, ParseList(""))
}

func TestPaths(t *testing.T) {
	o := Options{Models: []string{"M1", "M2"}, Years: []string{"2016", "2017"}, Failed: true, OutputDir: "out"}
	assert.Equal(t, filepath.Join("out", "HDD_2016_2017_failed_M1_M2.npy"), o.SerialsPath())
	assert.Equal(t, filepath.Join("out", "HDD_2016_2017_failed_M1_M2_appended.sqlite"), o.OutputPath())
}

func TestNonStandardColumns(t *testing.T) {
	cols := []string{"date", "smart_22_raw", "smart_220_normalized", "smart_5_raw", "smart_x_raw", "smart_226_raw"}
	assert.Equal(t, []string{"smart_22_raw", "smart_220_normalized", "smart_226_raw"}, NonStandardColumns(cols))
}

func TestRunExtractsSelectedDrives(t *testing.T) {
	opts := fixture(t)
	e := NewExtractor(opts, zap.NewNop())

	msg, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Data saved to "+opts.OutputPath(), msg)

	out, err := store.Load(context.Background(), opts.OutputPath())
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "serial_number", "model", "capacity_bytes", "failure", "smart_5_raw"}, out.Columns())
	require.Equal(t, 3, out.Len())
	// file order first, then model order within a file
	assert.Equal(t, []string{"2016-01-01", "A", "ST4000DM000", "4000", "0", "1"}, out.Row(0))
	assert.Equal(t, []string{"2016-01-01", "B", "ST3000DM001", "3000", "0", "2"}, out.Row(1))
	assert.Equal(t, "1", out.Value(2, "failure"))

	p := e.Progress()
	assert.Equal(t, int64(2), p.FilesRead.Get())
	assert.Equal(t, int64(2), p.FilesSkipped.Get())
	// X is of a selected model but not in the serial set.
	assert.Equal(t, int64(4), p.RowsMatched.Get())
	assert.Equal(t, int64(3), p.RowsKept.Get())
}

func TestRunRequiresSerialSet(t *testing.T) {
	opts := fixture(t)
	require.NoError(t, os.Remove(opts.SerialsPath()))

	_, err := NewExtractor(opts, zap.NewNop()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required .npy file not found")
	assert.False(t, store.Exists(opts.OutputPath()))
}

func TestRunWithNoMatchesSavesEmptyTable(t *testing.T) {
	opts := fixture(t)
	opts.Models = []string{"WDC"}

	_, err := NewExtractor(opts, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	out, err := store.Load(context.Background(), opts.OutputPath())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func TestRunHonoursCancellation(t *testing.T) {
	opts := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(opts, zap.NewNop()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
