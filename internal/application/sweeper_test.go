package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gosheets/internal/application"
	"github.com/ericfisherdev/gosheets/internal/domain/model"
)

type mockSheetsClient struct {
	files     []model.SpreadsheetFile
	listErr   error
	deleteErr map[string]error

	mu      sync.Mutex
	query   string
	deleted []string
}

func (m *mockSheetsClient) CreateSpreadsheet(_ context.Context, title string) (*model.Spreadsheet, error) {
	return &model.Spreadsheet{ID: "new", Title: title}, nil
}

func (m *mockSheetsClient) OpenByKey(_ context.Context, id string) (*model.Spreadsheet, error) {
	return &model.Spreadsheet{ID: id}, nil
}

func (m *mockSheetsClient) DeleteSpreadsheet(_ context.Context, id string) error {
	if err := m.deleteErr[id]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockSheetsClient) ListSpreadsheetFiles(_ context.Context, nameContains string) ([]model.SpreadsheetFile, error) {
	m.query = nameContains
	return m.files, m.listErr
}

func TestSweeper_DeletesOnlyPrefixed(t *testing.T) {
	client := &mockSheetsClient{files: []model.SpreadsheetFile{
		{ID: "3", Name: "Test WorksheetTest"},
		{ID: "1", Name: "Test ClientTest"},
		{ID: "2", Name: "Budget (Test copy)"},
	}}

	sw := application.NewSweeper(client, 2, nil)
	deleted, err := sw.Sweep(context.Background(), "Test ")

	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, deleted)
	assert.ElementsMatch(t, []string{"1", "3"}, client.deleted)
	assert.Equal(t, "Test ", client.query)
}

func TestSweeper_Candidates(t *testing.T) {
	client := &mockSheetsClient{files: []model.SpreadsheetFile{
		{ID: "1", Name: "Test A"},
		{ID: "2", Name: "Other"},
	}}

	files, err := application.NewSweeper(client, 0, nil).Candidates(context.Background(), "Test")

	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "1", files[0].ID)
	assert.Empty(t, client.deleted)
}

func TestSweeper_EmptyPrefixRejected(t *testing.T) {
	_, err := application.NewSweeper(&mockSheetsClient{}, 1, nil).Sweep(context.Background(), "")
	assert.Error(t, err)
}

func TestSweeper_ListError(t *testing.T) {
	boom := errors.New("list failed")
	_, err := application.NewSweeper(&mockSheetsClient{listErr: boom}, 1, nil).Sweep(context.Background(), "Test")
	assert.ErrorIs(t, err, boom)
}

func TestSweeper_DeleteErrorReported(t *testing.T) {
	boom := errors.New("forbidden")
	client := &mockSheetsClient{
		files:     []model.SpreadsheetFile{{ID: "1", Name: "Test A"}},
		deleteErr: map[string]error{"1": boom},
	}

	deleted, err := application.NewSweeper(client, 1, nil).Sweep(context.Background(), "Test")

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, deleted)
}
