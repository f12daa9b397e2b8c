package sheetstest

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

func (s *Server) spreadsheetJSON(sp *spreadsheet) map[string]any {
	sheets := make([]any, 0, len(sp.sheets))
	for _, sh := range sp.sheets {
		sheets = append(sheets, map[string]any{"properties": sheetPropertiesJSON(sh)})
	}
	return map[string]any{
		"spreadsheetId":  sp.id,
		"spreadsheetUrl": s.URL + "/spreadsheets/d/" + sp.id + "/edit",
		"properties": map[string]any{
			"title":    sp.title,
			"locale":   "en_US",
			"timeZone": "Etc/GMT",
		},
		"sheets": sheets,
	}
}

func sheetPropertiesJSON(sh sheet) map[string]any {
	return map[string]any{
		"sheetId": sh.id,
		"title":   sh.title,
		"index":   sh.index,
		"gridProperties": map[string]any{
			"rowCount":    sh.rows,
			"columnCount": sh.cols,
		},
	}
}

func fileJSON(sp *spreadsheet) map[string]any {
	return map[string]any{
		"id":           sp.id,
		"name":         sp.title,
		"mimeType":     spreadsheetMimeType,
		"createdTime":  sp.created.Format(time.RFC3339Nano),
		"modifiedTime": sp.modified.Format(time.RFC3339Nano),
	}
}

func (s *Server) createSpreadsheet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Properties struct {
			Title string `json:"title"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload received.", "INVALID_ARGUMENT")
		return
	}
	if body.Properties.Title == "" {
		body.Properties.Title = "Untitled spreadsheet"
	}

	s.mu.Lock()
	sp := s.addLocked(body.Properties.Title)
	out := s.spreadsheetJSON(sp)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSpreadsheet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	sp, ok := s.spreadsheets[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Requested entity was not found.", "NOT_FOUND")
		return
	}
	etag := fmt.Sprintf(`"%s-%d"`, sp.id, sp.version)
	if r.Header.Get("If-None-Match") == etag {
		s.notModified++
		s.mu.Unlock()
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	out := s.spreadsheetJSON(sp)
	s.mu.Unlock()

	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) spreadsheetAction(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(chi.URLParam(r, "id"), ":batchUpdate")
	if !ok {
		writeError(w, http.StatusNotFound, "Method not found.", "NOT_FOUND")
		return
	}

	var body struct {
		Requests []struct {
			AddSheet *struct {
				Properties struct {
					Title          string `json:"title"`
					GridProperties struct {
						RowCount    int `json:"rowCount"`
						ColumnCount int `json:"columnCount"`
					} `json:"gridProperties"`
				} `json:"properties"`
			} `json:"addSheet"`
		} `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload received.", "INVALID_ARGUMENT")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.spreadsheets[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Requested entity was not found.", "NOT_FOUND")
		return
	}

	replies := make([]any, 0, len(body.Requests))
	for _, req := range body.Requests {
		if req.AddSheet == nil {
			replies = append(replies, map[string]any{})
			continue
		}
		p := req.AddSheet.Properties
		for _, sh := range sp.sheets {
			if sh.title == p.Title {
				writeError(w, http.StatusBadRequest,
					fmt.Sprintf("Invalid requests[0].addSheet: A sheet with the name %q already exists. Please enter another name.", p.Title),
					"INVALID_ARGUMENT")
				return
			}
		}
		sh := sheet{
			id:    s.nextSheetID,
			title: p.Title,
			index: len(sp.sheets),
			rows:  p.GridProperties.RowCount,
			cols:  p.GridProperties.ColumnCount,
		}
		s.nextSheetID++
		sp.sheets = append(sp.sheets, sh)
		replies = append(replies, map[string]any{
			"addSheet": map[string]any{"properties": sheetPropertiesJSON(sh)},
		})
	}
	sp.touch()

	writeJSON(w, http.StatusOK, map[string]any{"spreadsheetId": sp.id, "replies": replies})
}

func (sp *spreadsheet) touch() {
	sp.version++
	sp.modified = time.Now().UTC().Truncate(time.Millisecond)
}

// valuesTarget resolves the spreadsheet and unescaped A1 range of a values
// request. It writes the error response and returns false when lookup fails.
func (s *Server) valuesTarget(w http.ResponseWriter, r *http.Request) (*spreadsheet, string, bool) {
	rng, err := url.PathUnescape(chi.URLParam(r, "range"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unable to parse range.", "INVALID_ARGUMENT")
		return nil, "", false
	}
	sp, ok := s.spreadsheets[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Requested entity was not found.", "NOT_FOUND")
		return nil, "", false
	}
	return sp, rng, true
}

func (s *Server) getValues(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, rng, ok := s.valuesTarget(w, r)
	if !ok {
		return
	}

	out := map[string]any{"range": rng, "majorDimension": "ROWS"}
	if vals := sp.values[rng]; len(vals) > 0 {
		out["values"] = vals
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeValues(r *http.Request) ([][]any, error) {
	var body struct {
		Values [][]any `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Values, nil
}

func updateSummary(rng string, values [][]any) map[string]any {
	cols, cells := 0, 0
	for _, row := range values {
		cols = max(cols, len(row))
		cells += len(row)
	}
	return map[string]any{
		"updatedRange":   rng,
		"updatedRows":    len(values),
		"updatedColumns": cols,
		"updatedCells":   cells,
	}
}

func (s *Server) updateValues(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("valueInputOption") == "" {
		writeError(w, http.StatusBadRequest, "'valueInputOption' is required but not specified", "INVALID_ARGUMENT")
		return
	}
	values, err := decodeValues(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload received.", "INVALID_ARGUMENT")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sp, rng, ok := s.valuesTarget(w, r)
	if !ok {
		return
	}
	sp.values[rng] = values
	sp.touch()

	summary := updateSummary(rng, values)
	summary["spreadsheetId"] = sp.id
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) valuesAction(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "range")
	switch {
	case strings.HasSuffix(raw, ":append"):
		s.appendValues(w, r)
	case strings.HasSuffix(raw, ":clear"):
		s.clearValues(w, r)
	default:
		writeError(w, http.StatusNotFound, "Method not found.", "NOT_FOUND")
	}
}

func (s *Server) appendValues(w http.ResponseWriter, r *http.Request) {
	values, err := decodeValues(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload received.", "INVALID_ARGUMENT")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sp, rng, ok := s.valuesTarget(w, r)
	if !ok {
		return
	}
	rng = strings.TrimSuffix(rng, ":append")
	sp.values[rng] = append(sp.values[rng], values...)
	sp.touch()

	writeJSON(w, http.StatusOK, map[string]any{
		"spreadsheetId": sp.id,
		"tableRange":    rng,
		"updates":       updateSummary(rng, values),
	})
}

func (s *Server) clearValues(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, rng, ok := s.valuesTarget(w, r)
	if !ok {
		return
	}
	rng = strings.TrimSuffix(rng, ":clear")
	delete(sp.values, rng)
	sp.touch()

	writeJSON(w, http.StatusOK, map[string]any{"spreadsheetId": sp.id, "clearedRange": rng})
}

// nameContains extracts the value of a "name contains '...'" clause from a
// Drive query, or "" when the query has none.
func nameContains(q string) string {
	const clause = "name contains '"
	i := strings.Index(q, clause)
	if i < 0 {
		return ""
	}
	rest := q[i+len(clause):]

	var b strings.Builder
	for j := 0; j < len(rest); j++ {
		switch rest[j] {
		case '\\':
			if j+1 < len(rest) {
				j++
				b.WriteByte(rest[j])
			}
		case '\'':
			return b.String()
		default:
			b.WriteByte(rest[j])
		}
	}
	return b.String()
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	contains := nameContains(query.Get("q"))

	pageSize, err := strconv.Atoi(query.Get("pageSize"))
	if err != nil || pageSize <= 0 {
		pageSize = 100
	}
	offset := 0
	if tok := query.Get("pageToken"); tok != "" {
		if offset, err = strconv.Atoi(tok); err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "Invalid Value", "INVALID_ARGUMENT")
			return
		}
	}

	s.mu.Lock()
	matched := make([]map[string]any, 0, len(s.order))
	for _, id := range s.order {
		sp := s.spreadsheets[id]
		if contains == "" || strings.Contains(sp.title, contains) {
			matched = append(matched, fileJSON(sp))
		}
	}
	s.mu.Unlock()

	out := map[string]any{"kind": "drive#fileList"}
	end := min(offset+pageSize, len(matched))
	if offset < end {
		out["files"] = matched[offset:end]
	} else {
		out["files"] = []any{}
	}
	if end < len(matched) {
		out["nextPageToken"] = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileID")

	s.mu.Lock()
	_, ok := s.spreadsheets[id]
	if ok {
		s.removeLocked(id)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "File not found: "+id+".", "NOT_FOUND")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) copyFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileID")

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload received.", "INVALID_ARGUMENT")
		return
	}

	s.mu.Lock()
	src, ok := s.spreadsheets[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "File not found: "+id+".", "NOT_FOUND")
		return
	}
	name := body.Name
	if name == "" {
		name = "Copy of " + src.title
	}
	dst := s.addLocked(name)
	dst.sheets = append([]sheet(nil), src.sheets...)
	dst.values = maps.Clone(src.values)
	out := fileJSON(dst)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}
