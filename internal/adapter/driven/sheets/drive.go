package sheets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

type driveFileJSON struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedTime  time.Time `json:"createdTime"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

// ListSpreadsheetFiles lists non-trashed spreadsheets visible to the credential
// whose name contains nameContains. An empty nameContains lists all of them.
// It follows nextPageToken until every page has been read.
func (c *Client) ListSpreadsheetFiles(ctx context.Context, nameContains string) ([]model.SpreadsheetFile, error) {
	q := fmt.Sprintf("mimeType='%s' and trashed=false", spreadsheetMimeType)
	if nameContains != "" {
		q += fmt.Sprintf(" and name contains '%s'", escapeQuery(nameContains))
	}

	params := url.Values{
		"q":                         {q},
		"pageSize":                  {strconv.Itoa(c.pageSize)},
		"fields":                    {"nextPageToken,files(id,name,createdTime,modifiedTime)"},
		"supportsAllDrives":         {"true"},
		"includeItemsFromAllDrives": {"true"},
	}

	files := []model.SpreadsheetFile{}
	for page := 1; ; page++ {
		resp, err := c.Request(ctx, model.Request{
			Method: http.MethodGet,
			Path:   c.driveURLFor("files"),
			Params: params,
		})
		if err != nil {
			return nil, fmt.Errorf("listing spreadsheet files (page %d): %w", page, err)
		}

		var out struct {
			NextPageToken string          `json:"nextPageToken"`
			Files         []driveFileJSON `json:"files"`
		}
		if err := resp.JSON(&out); err != nil {
			return nil, fmt.Errorf("listing spreadsheet files (page %d): %w", page, err)
		}

		for _, f := range out.Files {
			files = append(files, mapFile(f))
		}

		if out.NextPageToken == "" {
			break
		}
		params.Set("pageToken", out.NextPageToken)
	}

	return files, nil
}

// DeleteSpreadsheet permanently deletes a spreadsheet through the Drive API.
func (c *Client) DeleteSpreadsheet(ctx context.Context, spreadsheetID string) error {
	_, err := c.Request(ctx, model.Request{
		Method: http.MethodDelete,
		Path:   c.driveURLFor("files/" + spreadsheetID),
		Params: url.Values{"supportsAllDrives": {"true"}},
	})
	if err != nil {
		return fmt.Errorf("deleting spreadsheet %s: %w", spreadsheetID, err)
	}

	c.logger.Info("spreadsheet deleted", "spreadsheet_id", spreadsheetID)
	return nil
}

// CopySpreadsheet copies a spreadsheet under a new title.
func (c *Client) CopySpreadsheet(ctx context.Context, spreadsheetID, title string) (*model.SpreadsheetFile, error) {
	resp, err := c.Request(ctx, model.Request{
		Method: http.MethodPost,
		Path:   c.driveURLFor("files/" + spreadsheetID + "/copy"),
		Params: url.Values{"supportsAllDrives": {"true"}},
		Body:   map[string]any{"name": title, "mimeType": spreadsheetMimeType},
	})
	if err != nil {
		return nil, fmt.Errorf("copying spreadsheet %s: %w", spreadsheetID, err)
	}

	var f driveFileJSON
	if err := resp.JSON(&f); err != nil {
		return nil, fmt.Errorf("copying spreadsheet %s: %w", spreadsheetID, err)
	}

	file := mapFile(f)
	return &file, nil
}

func mapFile(f driveFileJSON) model.SpreadsheetFile {
	return model.SpreadsheetFile{
		ID:           f.ID,
		Name:         f.Name,
		CreatedTime:  f.CreatedTime,
		ModifiedTime: f.ModifiedTime,
	}
}

// escapeQuery escapes a literal for use inside a single-quoted Drive query string.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
