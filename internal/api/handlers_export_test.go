package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vessel-monitor/backend/internal/export"
	"github.com/vessel-monitor/backend/internal/models"
	"github.com/vessel-monitor/backend/internal/storage"
	"github.com/vessel-monitor/backend/internal/testutil"
)

func TestExportHandlers(t *testing.T) {
	_, reader := seedFleet(t)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	h := &Handlers{Export: NewExportHandler(store, export.NewCSVSink(store, 5, nil), reader)}

	// 1. Initially no exports
	rec := serve(t, h, http.MethodGet, "/api/exports")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	// 2. Create an export of the current snapshot
	rec = serve(t, h, http.MethodPost, "/api/exports")
	require.Equal(t, http.StatusCreated, rec.Code)
	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, 3, info.Rows)
	assert.True(t, strings.HasPrefix(info.Name, "vessels-"))

	// 3. It shows up in the listing
	rec = serve(t, h, http.MethodGet, "/api/exports")
	require.Equal(t, http.StatusOK, rec.Code)
	var files []models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 1)
	assert.Equal(t, info.ID, files[0].ID)

	// 4. Download returns the CSV as an attachment
	rec = serve(t, h, http.MethodGet, "/api/exports/"+info.ID+"/download")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), info.Name)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(export.CSVColumns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "ALPHA,111,10.5,20.25,14,"))
}

func TestExportHandlers_Errors(t *testing.T) {
	_, reader := seedFleet(t)
	store := testutil.NewMockStorage()

	h := &Handlers{Export: NewExportHandler(store, nil, reader)}

	rec := serve(t, h, http.MethodPost, "/api/exports")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(t, h, http.MethodGet, "/api/exports/missing/download")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, h, http.MethodGet, "/api/exports?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportHandlers_ListLimit(t *testing.T) {
	_, reader := seedFleet(t)
	store := testutil.NewMockStorage()
	for i := 0; i < 3; i++ {
		store.AddFile("", "", 1, []byte("x"))
	}

	h := &Handlers{Export: NewExportHandler(store, nil, reader)}
	rec := serve(t, h, http.MethodGet, "/api/exports?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var files []models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	assert.Len(t, files, 2)
}
