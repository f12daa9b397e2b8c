// Package report summarizes recorded cassettes as Markdown and sanitized HTML.
package report

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
)

var (
	// Raw HTML passes through goldmark and is cleaned by the UGC policy.
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	htmlSanitizer = bluemonday.UGCPolicy()
)

// Summary aggregates the interactions of one cassette.
type Summary struct {
	Name         string         `json:"name"`
	Interactions int            `json:"interactions"`
	ByMethod     map[string]int `json:"by_method"`
	ByStatus     map[int]int    `json:"by_status"`
	RateLimited  int            `json:"rate_limited"`
	Failed       int            `json:"failed"`
	FirstAt      time.Time      `json:"first_recorded_at,omitzero"`
	LastAt       time.Time      `json:"last_recorded_at,omitzero"`
}

// Summarize counts a cassette's interactions by method and status. A response
// counts as rate limited when its error body carries the too-many-requests code.
func Summarize(cas *model.Cassette) Summary {
	s := Summary{
		Name:         cas.Name,
		Interactions: len(cas.Interactions),
		ByMethod:     make(map[string]int),
		ByStatus:     make(map[int]int),
	}

	for _, in := range cas.Interactions {
		s.ByMethod[in.Request.Method]++
		s.ByStatus[in.Response.StatusCode]++

		if in.Response.StatusCode >= http.StatusBadRequest {
			s.Failed++
			if model.NewAPIError(in.Response.StatusCode, []byte(in.Response.Body)).RateLimited() {
				s.RateLimited++
			}
		}

		if at := in.RecordedAt; !at.IsZero() {
			if s.FirstAt.IsZero() || at.Before(s.FirstAt) {
				s.FirstAt = at
			}
			if at.After(s.LastAt) {
				s.LastAt = at
			}
		}
	}

	return s
}

// Markdown renders a cassette as a Markdown document: a summary followed by
// one table row per interaction and the messages of failed responses.
func Markdown(cas *model.Cassette) string {
	s := Summarize(cas)
	var b strings.Builder

	fmt.Fprintf(&b, "# Cassette `%s`\n\n", cas.Name)
	fmt.Fprintf(&b, "- **Interactions:** %d\n", s.Interactions)
	fmt.Fprintf(&b, "- **Failed:** %d\n", s.Failed)
	fmt.Fprintf(&b, "- **Rate limited:** %d\n", s.RateLimited)
	if !s.FirstAt.IsZero() {
		fmt.Fprintf(&b, "- **Recorded:** %s to %s\n", s.FirstAt.Format(time.RFC3339), s.LastAt.Format(time.RFC3339))
	}
	if len(s.ByMethod) > 0 {
		methods := make([]string, 0, len(s.ByMethod))
		for m, n := range s.ByMethod {
			methods = append(methods, fmt.Sprintf("%s %d", m, n))
		}
		slices.Sort(methods)
		fmt.Fprintf(&b, "- **Methods:** %s\n", strings.Join(methods, ", "))
	}

	if len(cas.Interactions) == 0 {
		b.WriteString("\n_No interactions recorded._\n")
		return b.String()
	}

	b.WriteString("\n| # | Method | Path | Status | Request bytes | Response bytes |\n")
	b.WriteString("|---:|---|---|---:|---:|---:|\n")
	for i, in := range cas.Interactions {
		fmt.Fprintf(&b, "| %d | %s | `%s` | %d | %d | %d |\n",
			i+1,
			in.Request.Method,
			escapeCell(displayPath(in.Request.URI)),
			in.Response.StatusCode,
			len(in.Request.Body),
			len(in.Response.Body),
		)
	}

	var failures []string
	for i, in := range cas.Interactions {
		if in.Response.StatusCode < http.StatusBadRequest {
			continue
		}
		apiErr := model.NewAPIError(in.Response.StatusCode, []byte(in.Response.Body))
		failures = append(failures, fmt.Sprintf("%d. **#%d** %s", len(failures)+1, i+1, escapeInline(apiErr.Error())))
	}
	if len(failures) > 0 {
		b.WriteString("\n## Failed responses\n\n")
		b.WriteString(strings.Join(failures, "\n"))
		b.WriteString("\n")
	}

	return b.String()
}

// HTML writes the cassette report to w as sanitized HTML.
func HTML(w io.Writer, cas *model.Cassette) error {
	out, err := markdownToHTML(Markdown(cas))
	if err != nil {
		return fmt.Errorf("rendering report for %q: %w", cas.Name, err)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("writing html report: %w", err)
	}
	return nil
}

// markdownToHTML converts GFM source to sanitized HTML.
func markdownToHTML(src string) ([]byte, error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}
	return htmlSanitizer.SanitizeBytes(buf.Bytes()), nil
}

// displayPath strips scheme and host from a recorded URI.
func displayPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return uri
	}
	if u.RawQuery != "" {
		return u.EscapedPath() + "?" + u.RawQuery
	}
	return u.EscapedPath()
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "`", "'").Replace(s)
}

func escapeInline(s string) string {
	return strings.NewReplacer("<", "&lt;", ">", "&gt;", "|", `\|`).Replace(s)
}
