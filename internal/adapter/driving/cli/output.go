package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// printer writes command results either as indented JSON or as plain text.
type printer struct {
	w       io.Writer
	jsonOut bool
}

func (p printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) linef(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}
