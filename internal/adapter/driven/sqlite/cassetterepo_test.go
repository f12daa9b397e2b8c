package sqlite

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
)

func makeInteraction(method, uri, body string, recordedAt time.Time) model.Interaction {
	return model.Interaction{
		ID: uri + "#" + method,
		Request: model.RecordedRequest{
			Method:  method,
			URI:     uri,
			Headers: http.Header{"Authorization": {model.DummyAccessToken}},
			Body:    "",
		},
		Response: model.RecordedResponse{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Headers:    http.Header{"Content-Type": {"application/json; charset=UTF-8"}},
			Body:       body,
		},
		RecordedAt: recordedAt,
	}
}

func TestCassetteRepo_SaveAndLoad(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCassetteRepo(db)
	ctx := context.Background()

	at := time.Date(2026, 5, 4, 10, 30, 0, 123456789, time.UTC)
	cas := &model.Cassette{
		Name: "client/test_open_by_key",
		Interactions: []model.Interaction{
			makeInteraction(http.MethodPost, "https://sheets.googleapis.com/v4/spreadsheets", `{"spreadsheetId":"abc"}`, at),
			makeInteraction(http.MethodGet, "https://sheets.googleapis.com/v4/spreadsheets/abc", `{"spreadsheetId":"abc"}`, at.Add(time.Second)),
		},
	}

	require.NoError(t, repo.Save(ctx, cas))

	got, err := repo.Load(ctx, cas.Name)
	require.NoError(t, err)
	assert.Equal(t, cas, got)
}

func TestCassetteRepo_LoadMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCassetteRepo(db)

	_, err := repo.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, driven.ErrCassetteNotFound)
}

func TestCassetteRepo_LoadEmptyCassette(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCassetteRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &model.Cassette{Name: "empty"}))

	got, err := repo.Load(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got.Interactions)
}

func TestCassetteRepo_SaveReplaces(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCassetteRepo(db)
	ctx := context.Background()
	at := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, &model.Cassette{Name: "c", Interactions: []model.Interaction{
		makeInteraction(http.MethodGet, "https://example.com/a", "a", at),
		makeInteraction(http.MethodGet, "https://example.com/b", "b", at),
	}}))
	require.NoError(t, repo.Save(ctx, &model.Cassette{Name: "c", Interactions: []model.Interaction{
		makeInteraction(http.MethodGet, "https://example.com/c", "c", at),
	}}))

	got, err := repo.Load(ctx, "c")
	require.NoError(t, err)
	require.Len(t, got.Interactions, 1)
	assert.Equal(t, "c", got.Interactions[0].Response.Body)
}

func TestCassetteRepo_SaveRequiresName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCassetteRepo(db)

	assert.Error(t, repo.Save(context.Background(), &model.Cassette{}))
}

func TestCassetteRepo_ListAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCassetteRepo(db)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, repo.Save(ctx, &model.Cassette{Name: "worksheet/test_update", Interactions: []model.Interaction{
		makeInteraction(http.MethodPut, "https://example.com/x", "", at),
	}}))
	require.NoError(t, repo.Save(ctx, &model.Cassette{Name: "client/test_create"}))

	names, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"client/test_create", "worksheet/test_update"}, names)

	require.NoError(t, repo.Delete(ctx, "worksheet/test_update"))
	require.NoError(t, repo.Delete(ctx, "worksheet/test_update"))

	names, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"client/test_create"}, names)

	counts, err := repo.CountInteractions(ctx, "https://example.com/")
	require.NoError(t, err)
	assert.Empty(t, counts, "interactions must cascade with their cassette")
}

func TestCassetteRepo_CountInteractions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCassetteRepo(db)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, repo.Save(ctx, &model.Cassette{Name: "a", Interactions: []model.Interaction{
		makeInteraction(http.MethodGet, "https://sheets.googleapis.com/v4/spreadsheets/1", "", at),
		makeInteraction(http.MethodGet, "https://sheets.googleapis.com/v4/spreadsheets/2", "", at),
		makeInteraction(http.MethodDelete, "https://www.googleapis.com/drive/v3/files/1", "", at),
	}}))
	require.NoError(t, repo.Save(ctx, &model.Cassette{Name: "b", Interactions: []model.Interaction{
		makeInteraction(http.MethodPost, "https://sheets.googleapis.com/v4/spreadsheets", "", at),
	}}))

	counts, err := repo.CountInteractions(ctx, "https://sheets.googleapis.com/")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{http.MethodGet: 2, http.MethodPost: 1}, counts)
}

func TestNewDB_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cassettes.db")
	ctx := context.Background()

	db, err := NewDB(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	version, err := RunMigrations(db.Writer)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	version, err = RunMigrations(db.Writer)
	require.NoError(t, err, "re-running migrations is a no-op")
	assert.Equal(t, uint(1), version)
	assert.Equal(t, path, db.Path())
}
