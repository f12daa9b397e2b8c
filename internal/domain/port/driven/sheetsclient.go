package driven

import (
	"context"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
)

// SheetsClient defines the spreadsheet operations used by the application layer.
type SheetsClient interface {
	CreateSpreadsheet(ctx context.Context, title string) (*model.Spreadsheet, error)
	OpenByKey(ctx context.Context, spreadsheetID string) (*model.Spreadsheet, error)
	DeleteSpreadsheet(ctx context.Context, spreadsheetID string) error
	ListSpreadsheetFiles(ctx context.Context, nameContains string) ([]model.SpreadsheetFile, error)
}
