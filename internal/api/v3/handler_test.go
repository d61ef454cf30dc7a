package v3

import (
	"bufio"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"cmpulse/internal/importer"
	"cmpulse/internal/model"
	"cmpulse/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.New(filepath.Join(t.TempDir(), "cmpulse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	r := gin.New()
	NewHandler(st, importer.Options{Workers: 2}, nil).RegisterRoutes(r.Group("/api"))
	return r, st
}

func workbookBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &rows[i]))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type upload struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, path string, uploads []upload, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, u := range uploads {
		part, err := w.CreateFormFile(u.field, u.name)
		require.NoError(t, err)
		_, err = part.Write(u.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func janeUploads(t *testing.T) []upload {
	return []upload{
		{field: "cc", name: "cc.xlsx", data: workbookBytes(t, [][]any{
			{"Team", "Mentor", "Class Consumption"},
			{"Alpha", "Jane Doe", "75%"},
		})},
		{field: "file", name: "up.xlsx", data: workbookBytes(t, [][]any{
			{"Name", "Upgrade"},
			{"jane doe", 22},
		})},
	}
}

func TestImport_RequiresScoringConfig(t *testing.T) {
	r, _ := newTestRouter(t)

	w := serve(r, multipartRequest(t, "/api/import", janeUploads(t), nil))
	assert.Equal(t, http.StatusPreconditionFailed, w.Code, w.Body.String())

	w = serve(r, multipartRequest(t, "/api/import", nil, map[string]string{"note": "x"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScoringConfig_Patch(t *testing.T) {
	r, _ := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/config/scoring", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	patch := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/api/config/scoring", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(r, req)
	}

	w = patch(`{"targets":{"cc":85},"aboveThreshold":110}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cfg model.ScoringConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, 85.0, cfg.Targets.CC)
	assert.Equal(t, 15.0, cfg.Targets.SC)
	assert.Equal(t, 110.0, cfg.AboveThreshold)

	assert.Equal(t, http.StatusBadRequest, patch(`{"warningThreshold":120}`).Code)
	assert.Equal(t, http.StatusBadRequest, patch(`{"weights":{"cc":-1}}`).Code)
	assert.Equal(t, http.StatusBadRequest, patch(`{"weights":{"cc":0,"sc":0,"up":0,"fixed":0}}`).Code)
	assert.Equal(t, http.StatusBadRequest, patch(`not json`).Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/config/scoring", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, 85.0, cfg.Targets.CC)
	assert.Equal(t, 90.0, cfg.WarningThreshold)
}

func TestImport_ReportAndReadSide(t *testing.T) {
	r, st := newTestRouter(t)
	require.NoError(t, st.SeedScoringConfig(t.Context(), model.DefaultScoringConfig()))

	w := serve(r, multipartRequest(t, "/api/import", janeUploads(t), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report model.IngestionReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Totals.Created)
	assert.Equal(t, 2, report.Totals.FilesProcessed)
	assert.Equal(t, 1, report.MentorCount)
	assert.Empty(t, report.Errors)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Initialized)
	assert.True(t, status.ScoringReady)
	assert.Equal(t, 1, status.Mentors)
	assert.Equal(t, 1, status.ImportRuns)
	assert.NotEmpty(t, status.LastImportAt)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var board model.Scoreboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board.Rows, 1)
	assert.Equal(t, "Jane Doe", board.Rows[0].DisplayName)
	assert.Equal(t, "Alpha", board.Rows[0].TeamName)
	require.NotNil(t, board.Rows[0].Values.UPPct)
	assert.Equal(t, 22.0, *board.Rows[0].Values.UPPct)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/metrics?date=12-03-2024", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/metrics?date=2001-01-01", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	assert.Empty(t, board.Rows)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/mentors", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"externalId":"JANE DOE"`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"upload"`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/export", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "scorecards-")
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Scorecards")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// 同一批文件再次导入不产生新记录
	w = serve(r, multipartRequest(t, "/api/import", janeUploads(t), nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Zero(t, report.Totals.Created)
	assert.Zero(t, report.Totals.Updated)
	assert.Equal(t, 1, report.Totals.SkippedDuplicate)
}

func TestImport_MappingOverride(t *testing.T) {
	r, st := newTestRouter(t)
	require.NoError(t, st.SeedScoringConfig(t.Context(), model.DefaultScoringConfig()))

	uploads := []upload{{field: "cc", name: "cc.xlsx", data: workbookBytes(t, [][]any{
		{"Mentor", "Weekly Number"},
		{"Jane Doe", "60"},
	})}}

	w := serve(r, multipartRequest(t, "/api/import", uploads, map[string]string{"mapping": `{"cc":{"ccPct":"Weekly Number"}}`}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report model.IngestionReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Totals.Created)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "Weekly Number", report.Sources[0].ColumnsMapped["ccPct"])

	w = serve(r, multipartRequest(t, "/api/import", uploads, map[string]string{"mapping": `{"nope":{}}`}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportStream_EndsWithDone(t *testing.T) {
	r, st := newTestRouter(t)
	require.NoError(t, st.SeedScoringConfig(t.Context(), model.DefaultScoringConfig()))

	w := serve(r, multipartRequest(t, "/api/import/stream", janeUploads(t), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var events []importer.ProgressEvent
	sc := bufio.NewScanner(bytes.NewReader(w.Body.Bytes()))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt importer.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt))
		events = append(events, evt)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, importer.EventStart, events[0].Type)
	assert.Equal(t, importer.EventDone, events[len(events)-1].Type)
}
