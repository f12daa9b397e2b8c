package sheets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
)

// spreadsheetJSON is the Sheets v4 spreadsheet resource.
type spreadsheetJSON struct {
	SpreadsheetID  string `json:"spreadsheetId"`
	SpreadsheetURL string `json:"spreadsheetUrl"`
	Properties     struct {
		Title    string `json:"title"`
		Locale   string `json:"locale"`
		TimeZone string `json:"timeZone"`
	} `json:"properties"`
	Sheets []sheetJSON `json:"sheets"`
}

type sheetJSON struct {
	Properties sheetPropertiesJSON `json:"properties"`
}

type sheetPropertiesJSON struct {
	SheetID        int64              `json:"sheetId"`
	Title          string             `json:"title"`
	Index          int                `json:"index"`
	GridProperties gridPropertiesJSON `json:"gridProperties"`
}

type gridPropertiesJSON struct {
	RowCount    int `json:"rowCount"`
	ColumnCount int `json:"columnCount"`
}

// CreateSpreadsheet creates a new spreadsheet with a single default worksheet.
func (c *Client) CreateSpreadsheet(ctx context.Context, title string) (*model.Spreadsheet, error) {
	body := map[string]any{
		"properties": map[string]any{"title": title},
	}

	resp, err := c.Request(ctx, model.Request{Method: http.MethodPost, Path: "spreadsheets", Body: body})
	if err != nil {
		return nil, fmt.Errorf("creating spreadsheet %q: %w", title, err)
	}

	var s spreadsheetJSON
	if err := resp.JSON(&s); err != nil {
		return nil, fmt.Errorf("creating spreadsheet %q: %w", title, err)
	}

	c.logger.Info("spreadsheet created", "spreadsheet_id", s.SpreadsheetID, "title", title)

	return mapSpreadsheet(s), nil
}

// OpenByKey fetches the spreadsheet with the given ID.
func (c *Client) OpenByKey(ctx context.Context, spreadsheetID string) (*model.Spreadsheet, error) {
	resp, err := c.Request(ctx, model.Request{
		Method: http.MethodGet,
		Path:   "spreadsheets/" + url.PathEscape(spreadsheetID),
	})
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet %s: %w", spreadsheetID, err)
	}

	var s spreadsheetJSON
	if err := resp.JSON(&s); err != nil {
		return nil, fmt.Errorf("opening spreadsheet %s: %w", spreadsheetID, err)
	}

	return mapSpreadsheet(s), nil
}

// AddWorksheet adds a worksheet with the given grid size to a spreadsheet.
func (c *Client) AddWorksheet(ctx context.Context, spreadsheetID, title string, rows, cols int) (*model.Worksheet, error) {
	body := map[string]any{
		"requests": []any{
			map[string]any{
				"addSheet": map[string]any{
					"properties": map[string]any{
						"title": title,
						"gridProperties": map[string]any{
							"rowCount":    rows,
							"columnCount": cols,
						},
					},
				},
			},
		},
	}

	resp, err := c.Request(ctx, model.Request{
		Method: http.MethodPost,
		Path:   "spreadsheets/" + url.PathEscape(spreadsheetID) + ":batchUpdate",
		Body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("adding worksheet %q to %s: %w", title, spreadsheetID, err)
	}

	var out struct {
		Replies []struct {
			AddSheet *sheetJSON `json:"addSheet"`
		} `json:"replies"`
	}
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("adding worksheet %q to %s: %w", title, spreadsheetID, err)
	}
	if len(out.Replies) == 0 || out.Replies[0].AddSheet == nil {
		return nil, fmt.Errorf("adding worksheet %q to %s: empty batchUpdate reply", title, spreadsheetID)
	}

	ws := mapWorksheet(out.Replies[0].AddSheet.Properties)
	return &ws, nil
}

// mapSpreadsheet converts the wire resource to the domain model.
func mapSpreadsheet(s spreadsheetJSON) *model.Spreadsheet {
	worksheets := make([]model.Worksheet, 0, len(s.Sheets))
	for _, sh := range s.Sheets {
		worksheets = append(worksheets, mapWorksheet(sh.Properties))
	}

	return &model.Spreadsheet{
		ID:         s.SpreadsheetID,
		Title:      s.Properties.Title,
		Locale:     s.Properties.Locale,
		TimeZone:   s.Properties.TimeZone,
		URL:        s.SpreadsheetURL,
		Worksheets: worksheets,
	}
}

func mapWorksheet(p sheetPropertiesJSON) model.Worksheet {
	return model.Worksheet{
		ID:          p.SheetID,
		Title:       p.Title,
		Index:       p.Index,
		RowCount:    p.GridProperties.RowCount,
		ColumnCount: p.GridProperties.ColumnCount,
	}
}
