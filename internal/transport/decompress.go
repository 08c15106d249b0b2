package transport

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"sidedoor/internal/types"
)

// decompressBody decodes a gzip or brotli body in place and drops the
// Content-Encoding header. Unknown encodings pass through untouched.
func decompressBody(resp *types.RawResponse) error {
	decoded, changed, err := decodeContentEncoding(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return err
	}
	if changed {
		resp.Body = decoded
		resp.Header.Del("Content-Encoding")
	}
	return nil
}

// decodeContentEncoding returns the decoded body for the given encoding.
// The second return value reports whether any decoding happened.
func decodeContentEncoding(encoding string, body []byte) ([]byte, bool, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, false, fmt.Errorf("gzip body: %w", err)
		}
		defer zr.Close()
		decoded, err := io.ReadAll(zr)
		if err != nil {
			return nil, false, fmt.Errorf("gzip body: %w", err)
		}
		return decoded, true, nil
	case "br":
		decoded, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, false, fmt.Errorf("brotli body: %w", err)
		}
		return decoded, true, nil
	default:
		return body, false, nil
	}
}
