package transport

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// DecodeChunked decodes HTTP chunked transfer coding from a complete byte
// buffer. It is deliberately lenient: a malformed or missing size line ends
// decoding and returns the bytes decoded so far, never an error. A chunk
// whose declared size runs past the buffer yields whatever data is present.
func DecodeChunked(b []byte) []byte {
	out := make([]byte, 0, len(b))
	pos := 0

	for {
		line, next, ok := cutLine(b, pos)
		if !ok {
			return out
		}

		// Chunk extensions after ';' are ignored
		sizeField, _, _ := strings.Cut(line, ";")
		size, err := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
		if err != nil || size < 0 {
			return out
		}
		if size == 0 {
			return out
		}

		pos = next
		end := pos + int(size)
		if end > len(b) {
			return append(out, b[pos:]...)
		}

		out = append(out, b[pos:end]...)
		pos = end

		// Skip the chunk's trailing line terminator
		if pos < len(b) && b[pos] == '\r' {
			pos++
		}
		if pos < len(b) && b[pos] == '\n' {
			pos++
		}
	}
}

// EncodeChunked renders a payload as chunked transfer coding with chunks of
// at most chunkSize bytes, terminated by the zero-size chunk
func EncodeChunked(b []byte, chunkSize int) []byte {
	if chunkSize <= 0 {
		chunkSize = len(b)
		if chunkSize == 0 {
			chunkSize = 1
		}
	}

	var out bytes.Buffer
	for len(b) > 0 {
		n := chunkSize
		if n > len(b) {
			n = len(b)
		}
		fmt.Fprintf(&out, "%x\r\n", n)
		out.Write(b[:n])
		out.WriteString("\r\n")
		b = b[n:]
	}
	out.WriteString("0\r\n\r\n")

	return out.Bytes()
}

// cutLine returns the line starting at pos (without its terminator) and the
// offset just past it. Accepts CRLF or bare LF.
func cutLine(b []byte, pos int) (string, int, bool) {
	if pos >= len(b) {
		return "", pos, false
	}

	idx := bytes.IndexByte(b[pos:], '\n')
	if idx < 0 {
		return "", pos, false
	}

	line := b[pos : pos+idx]
	line = bytes.TrimSuffix(line, []byte("\r"))

	return string(line), pos + idx + 1, true
}
