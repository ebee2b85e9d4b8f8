package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ukaji3/certissue-go/internal/config"
	"github.com/ukaji3/certissue-go/internal/render"
	"github.com/ukaji3/certissue-go/pkg/certissue"
	"github.com/ukaji3/certissue-go/pkg/certissue/models"
)

// writeBatch creates a folder with one workbook and the given images.
func writeBatch(t *testing.T, lines [][]interface{}, images ...string) string {
	t.Helper()
	dir := t.TempDir()

	f := excelize.NewFile()
	defer f.Close()
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		line := line
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &line))
	}
	require.NoError(t, f.SaveAs(filepath.Join(dir, "students.xlsx")))

	for _, name := range images {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("\x89PNG\r\n\x1a\n"+name), 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config-dir", t.TempDir()}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestPreviewCommand_JSON(t *testing.T) {
	dir := writeBatch(t, [][]interface{}{
		{"证书编号", "姓名"},
		{"A1", "Alice"},
		{"A2", "Bob"},
	}, "A1.png")

	out, err := execute(t, "preview", dir, "-o", "json")
	require.NoError(t, err)

	dec := json.NewDecoder(bytes.NewBufferString(out))
	var res map[string]any
	require.NoError(t, dec.Decode(&res))
	assert.Equal(t, float64(2), res["records"])
	assert.Equal(t, float64(1), res["attached"])

	var pv models.Preview
	require.NoError(t, dec.Decode(&pv))
	assert.Equal(t, []string{"证书编号", "姓名"}, pv.Headers)
	require.Len(t, pv.Rows, 2)
	assert.True(t, pv.Rows[0].HasImage())
	assert.False(t, pv.Rows[1].HasImage())
}

func TestPreviewCommand_StrictProblemsFail(t *testing.T) {
	dir := writeBatch(t, [][]interface{}{
		{"证书编号", "姓名"},
		{"A1", "Alice"},
	}, "A3.png")

	out, err := execute(t, "preview", dir)
	assert.ErrorIs(t, err, certissue.ErrMatch)
	assert.Contains(t, out, "A3.png")

	_, err = execute(t, "preview", dir, "--mode", "basic")
	assert.NoError(t, err)
}

func TestPreviewCommand_MissingKeyHeader(t *testing.T) {
	dir := writeBatch(t, [][]interface{}{
		{"编号", "姓名"},
		{"A1", "Alice"},
	})

	_, err := execute(t, "preview", dir)
	assert.ErrorIs(t, err, certissue.ErrFormat)

	_, err = execute(t, "preview", dir, "--key-header", "编号")
	assert.NoError(t, err)
}

func TestUploadCommand(t *testing.T) {
	var items []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/school/upload":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&items))
			_, _ = io.WriteString(w, `{"success":true,"certificate_file":"batch.zip"}`)
		case "/api/school/download/batch.zip":
			_, _ = io.WriteString(w, "zipdata")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := writeBatch(t, [][]interface{}{
		{"学号", "姓名"},
		{"S1", "Alice"},
	}, "S1.png", "S9.png")
	dest := t.TempDir()

	out, err := execute(t, "upload", dir, "--base-url", srv.URL, "--download", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "Certificates generated: batch.zip")

	require.Len(t, items, 1)
	assert.Equal(t, "S1", items[0]["id"])
	data := items[0]["data"].(map[string]any)
	assert.Equal(t, "Alice", data["姓名"])
	assert.Len(t, data["images"], 1)

	content, err := os.ReadFile(filepath.Join(dest, "batch.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zipdata", string(content))
}

func TestUploadCommand_GenerationFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false}`)
	}))
	defer srv.Close()

	dir := writeBatch(t, [][]interface{}{
		{"学号", "姓名"},
		{"S1", "Alice"},
		{"S2", "Bob"},
	}, "S1.png")
	out, err := execute(t, "upload", dir, "--base-url", srv.URL)
	assert.ErrorIs(t, err, certissue.ErrGenerationFailed)

	// The preview stays on screen when generation fails
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "view: S1.png")
	assert.Contains(t, out, render.NotUploaded)
}

func TestStageAndCheck(t *testing.T) {
	submitted := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		submitted++
		_, _ = io.WriteString(w, `{"success":true,"certificate_file":"staged.zip"}`)
	}))
	defer srv.Close()

	dir := writeBatch(t, [][]interface{}{
		{"证书编号", "姓名"},
		{"A1", "Alice"},
	}, "A1.png")
	db := filepath.Join(t.TempDir(), "sessions.db")

	out, err := execute(t, "stage", dir, "--session-db", db)
	require.NoError(t, err)
	id := lastField(out)
	require.NotEmpty(t, id)

	out, err = execute(t, "check", id, "--session-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Zero(t, submitted)

	out, err = execute(t, "check", id, "--session-db", db, "--submit", "--base-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "staged.zip")
	assert.Equal(t, 1, submitted)

	_, err = execute(t, "check", id, "--session-db", db)
	assert.Error(t, err, "session is removed after a successful submit")
}

func TestVerifyCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.VerifyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.TxHash == "0xgood" {
			_, _ = io.WriteString(w, `{"verified":true,"data":{"original_data":{"姓名":"Alice"},"images":[]}}`)
			return
		}
		_, _ = io.WriteString(w, `{"verified":false,"message":"hash mismatch"}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"tx_hash":"0xgood","original_data":{"姓名":"Alice"}}`), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte(`{"tx_hash":"0xbad","original_data":{"姓名":"Mallory"}}`), 0o644))

	out, err := execute(t, "verify", good, "--verify-url", srv.URL+"/verify")
	require.NoError(t, err)
	assert.Contains(t, out, "certificate verified")

	out, err = execute(t, "verify", good, bad, "--verify-url", srv.URL+"/verify")
	assert.ErrorIs(t, err, errNotVerified)
	assert.Contains(t, out, "hash mismatch")
}

// lastField returns the last whitespace-separated word of s.
func lastField(s string) string {
	fields := bytes.Fields([]byte(s))
	if len(fields) == 0 {
		return ""
	}
	return string(fields[len(fields)-1])
}

func TestConfigCommand(t *testing.T) {
	cfgDir := t.TempDir()

	out, err := execute(t, "--config-dir", cfgDir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "not written yet")
	assert.Contains(t, out, "strict")

	_, err = execute(t, "--config-dir", cfgDir, "config", "set", "reconcile.mode", "basic")
	require.NoError(t, err)
	_, err = execute(t, "--config-dir", cfgDir, "config", "set", "reconcile.mode", "loose")
	assert.Error(t, err)
	_, err = execute(t, "--config-dir", cfgDir, "config", "set", "no.such.key", "1")
	assert.ErrorIs(t, err, config.ErrUnknownKey)

	out, err = execute(t, "--config-dir", cfgDir, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "not written yet")
	assert.Contains(t, out, "basic")

	// The saved basic flow lets an unmatched image through
	dir := writeBatch(t, [][]interface{}{{"学号", "姓名"}, {"S1", "Alice"}}, "S9.png")
	out, err = execute(t, "--config-dir", cfgDir, "preview", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.NotContains(t, out, "S9.png")
}

func TestConfigInit(t *testing.T) {
	cfgDir := t.TempDir()

	out, err := execute(t, "--config-dir", cfgDir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(cfgDir, config.FileName))
	assert.FileExists(t, filepath.Join(cfgDir, config.FileName))
}
