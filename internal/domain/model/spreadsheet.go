package model

import "time"

// Spreadsheet is a spreadsheet document and its worksheets.
type Spreadsheet struct {
	ID         string
	Title      string
	Locale     string
	TimeZone   string
	URL        string
	Worksheets []Worksheet
}

// Worksheet is a single tab inside a spreadsheet.
type Worksheet struct {
	ID          int64
	Title       string
	Index       int
	RowCount    int
	ColumnCount int
}

// WorksheetByTitle returns the worksheet with the given title, or nil.
func (s *Spreadsheet) WorksheetByTitle(title string) *Worksheet {
	for i := range s.Worksheets {
		if s.Worksheets[i].Title == title {
			return &s.Worksheets[i]
		}
	}
	return nil
}

// ValueRange is a block of cell values in A1 notation.
type ValueRange struct {
	Range          string
	MajorDimension string
	Values         [][]any
}

// SpreadsheetFile is the Drive-side view of a spreadsheet document.
type SpreadsheetFile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedTime  time.Time `json:"created_time"`
	ModifiedTime time.Time `json:"modified_time"`
}

// UpdateResult summarizes a write to a range of cells.
type UpdateResult struct {
	UpdatedRange   string
	UpdatedRows    int
	UpdatedColumns int
	UpdatedCells   int
}
