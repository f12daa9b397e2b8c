package sheets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
)

// valueRangeJSON is the Sheets v4 ValueRange resource.
type valueRangeJSON struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values,omitempty"`
}

type updateValuesJSON struct {
	UpdatedRange   string `json:"updatedRange"`
	UpdatedRows    int    `json:"updatedRows"`
	UpdatedColumns int    `json:"updatedColumns"`
	UpdatedCells   int    `json:"updatedCells"`
}

// GetValues reads the cell values of an A1 range.
func (c *Client) GetValues(ctx context.Context, spreadsheetID, a1Range string) (*model.ValueRange, error) {
	resp, err := c.Request(ctx, model.Request{
		Method: http.MethodGet,
		Path:   valuesPath(spreadsheetID, a1Range, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("getting values %s!%s: %w", spreadsheetID, a1Range, err)
	}

	var vr valueRangeJSON
	if err := resp.JSON(&vr); err != nil {
		return nil, fmt.Errorf("getting values %s!%s: %w", spreadsheetID, a1Range, err)
	}

	return &model.ValueRange{
		Range:          vr.Range,
		MajorDimension: vr.MajorDimension,
		Values:         vr.Values,
	}, nil
}

// UpdateValues overwrites an A1 range with row-major values.
func (c *Client) UpdateValues(ctx context.Context, spreadsheetID, a1Range string, values [][]any) (*model.UpdateResult, error) {
	resp, err := c.Request(ctx, model.Request{
		Method: http.MethodPut,
		Path:   valuesPath(spreadsheetID, a1Range, ""),
		Params: url.Values{"valueInputOption": {"RAW"}},
		Body:   valueRangeJSON{Range: a1Range, MajorDimension: "ROWS", Values: values},
	})
	if err != nil {
		return nil, fmt.Errorf("updating values %s!%s: %w", spreadsheetID, a1Range, err)
	}

	var out updateValuesJSON
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("updating values %s!%s: %w", spreadsheetID, a1Range, err)
	}

	return mapUpdate(out), nil
}

// AppendValues appends rows after the last row of the table found in a1Range.
func (c *Client) AppendValues(ctx context.Context, spreadsheetID, a1Range string, values [][]any) (*model.UpdateResult, error) {
	resp, err := c.Request(ctx, model.Request{
		Method: http.MethodPost,
		Path:   valuesPath(spreadsheetID, a1Range, ":append"),
		Params: url.Values{"valueInputOption": {"RAW"}},
		Body:   valueRangeJSON{Range: a1Range, MajorDimension: "ROWS", Values: values},
	})
	if err != nil {
		return nil, fmt.Errorf("appending values %s!%s: %w", spreadsheetID, a1Range, err)
	}

	var out struct {
		Updates updateValuesJSON `json:"updates"`
	}
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("appending values %s!%s: %w", spreadsheetID, a1Range, err)
	}

	return mapUpdate(out.Updates), nil
}

// ClearValues clears the values of an A1 range, keeping formatting.
func (c *Client) ClearValues(ctx context.Context, spreadsheetID, a1Range string) (string, error) {
	resp, err := c.Request(ctx, model.Request{
		Method: http.MethodPost,
		Path:   valuesPath(spreadsheetID, a1Range, ":clear"),
		Body:   map[string]any{},
	})
	if err != nil {
		return "", fmt.Errorf("clearing values %s!%s: %w", spreadsheetID, a1Range, err)
	}

	var out struct {
		ClearedRange string `json:"clearedRange"`
	}
	if err := resp.JSON(&out); err != nil {
		return "", fmt.Errorf("clearing values %s!%s: %w", spreadsheetID, a1Range, err)
	}

	return out.ClearedRange, nil
}

func valuesPath(spreadsheetID, a1Range, action string) string {
	return "spreadsheets/" + url.PathEscape(spreadsheetID) + "/values/" + url.PathEscape(a1Range) + action
}

func mapUpdate(u updateValuesJSON) *model.UpdateResult {
	return &model.UpdateResult{
		UpdatedRange:   u.UpdatedRange,
		UpdatedRows:    u.UpdatedRows,
		UpdatedColumns: u.UpdatedColumns,
		UpdatedCells:   u.UpdatedCells,
	}
}
