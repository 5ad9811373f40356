package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"hddpredict/serials"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeDay(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestInitThenTrainRejectsUnknownClassifier(t *testing.T) {
	dir := t.TempDir()
	_, err := runCmd(t, "init", dir, "--log-level", "production")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))

	_, err = runCmd(t, "train", "--config", filepath.Join(dir, "config.yaml"), "--classifier", "SVM")
	assert.ErrorContains(t, err, "unknown classifier")
}

func TestExtractRequiresModelAndYears(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "absent.yaml")
	_, err := runCmd(t, "extract", "--config", cfg, "--years", "2013")
	assert.ErrorContains(t, err, "--model")

	_, err = runCmd(t, "extract", "--config", cfg, "--model", "ST3000DM001")
	assert.ErrorContains(t, err, "--years")
}

func TestExtractWritesTable(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "HDD_dataset")
	out := filepath.Join(dir, "output")
	writeDay(t, filepath.Join(base, "2013"), "2013-04-10.csv",
		"date,serial_number,model,failure,smart_5_raw,smart_22_raw\n"+
			"2013-04-10,S1,ST3000DM001,0,1,9\n"+
			"2013-04-10,S2,ST3000DM001,0,2,9\n"+
			"2013-04-10,S3,OTHER,0,3,9\n")
	require.NoError(t, os.MkdirAll(out, 0755))
	require.NoError(t, serials.Write(filepath.Join(out, serials.FileName([]string{"2013"}, false, []string{"ST3000DM001"})), []string{"S1"}))

	stdout, err := runCmd(t, "extract", "--config", filepath.Join(dir, "absent.yaml"),
		"--model", "ST3000DM001", "--years", "2013", "--base_path", base, "--output_dir", out, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Data saved to")
	assert.FileExists(t, filepath.Join(out, "HDD_2013_all_ST3000DM001_appended.sqlite"))
}
