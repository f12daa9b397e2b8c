package cassette

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// decodeBody decodes body according to a Content-Encoding header value. It
// reports false when the encoding is identity or not supported, in which case
// body is returned unchanged.
func decodeBody(encoding string, body []byte) ([]byte, bool, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, false, fmt.Errorf("gzip reader: %w", err)
		}
		defer zr.Close()
		return readDecoded(zr)
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(body))
		defer fr.Close()
		return readDecoded(fr)
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, false, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		return readDecoded(zr)
	default:
		return body, false, nil
	}
}

func readDecoded(r io.Reader) ([]byte, bool, error) {
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("decoding body: %w", err)
	}
	return out, true, nil
}
