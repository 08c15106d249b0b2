package transport

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"sidedoor/internal/types"
)

// parseState tracks progress through the raw response bytes
type parseState int

const (
	stateStatusLine parseState = iota
	stateHeaders
	stateBody
	stateDone
)

// responseParser is an explicit state machine over a complete byte buffer.
// Line endings may be CRLF or bare LF.
type responseParser struct {
	buf   []byte
	pos   int
	state parseState
	resp  *types.RawResponse
}

// ParseResponse parses a complete HTTP/1.1 response captured off the wire.
// The body is whatever follows the header separator; if the response is
// chunked it is decoded with the lenient chunk decoder.
func ParseResponse(raw []byte) (*types.RawResponse, error) {
	p := &responseParser{
		buf:  raw,
		resp: &types.RawResponse{Header: make(http.Header)},
	}

	for p.state != stateDone {
		var err error
		switch p.state {
		case stateStatusLine:
			err = p.readStatusLine()
		case stateHeaders:
			err = p.readHeaders()
		case stateBody:
			p.readBody()
		}
		if err != nil {
			return nil, err
		}
	}

	return p.resp, nil
}

func (p *responseParser) readStatusLine() error {
	line, ok := p.readLine()
	if !ok {
		return fmt.Errorf("%w: missing status line", types.ErrMalformedResponse)
	}

	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return fmt.Errorf("%w: bad status line %q", types.ErrMalformedResponse, line)
	}

	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("%w: bad status code %q", types.ErrMalformedResponse, fields[1])
	}

	p.resp.StatusCode = code
	p.state = stateHeaders
	return nil
}

func (p *responseParser) readHeaders() error {
	for {
		line, ok := p.readLine()
		if !ok {
			return fmt.Errorf("%w: unterminated headers", types.ErrMalformedResponse)
		}

		if line == "" {
			p.state = stateBody
			return nil
		}

		name, value, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: bad header line %q", types.ErrMalformedResponse, line)
		}

		p.resp.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
}

func (p *responseParser) readBody() {
	rest := p.buf[p.pos:]
	if isChunked(p.resp.Header) {
		p.resp.Body = DecodeChunked(rest)
	} else {
		p.resp.Body = rest
	}
	p.pos = len(p.buf)
	p.state = stateDone
}

// readLine consumes up to and including the next LF, trimming a trailing CR
func (p *responseParser) readLine() (string, bool) {
	idx := bytes.IndexByte(p.buf[p.pos:], '\n')
	if idx < 0 {
		return "", false
	}

	line := p.buf[p.pos : p.pos+idx]
	p.pos += idx + 1

	return string(bytes.TrimSuffix(line, []byte("\r"))), true
}

func isChunked(header http.Header) bool {
	for _, value := range header.Values("Transfer-Encoding") {
		if strings.Contains(strings.ToLower(value), "chunked") {
			return true
		}
	}
	return false
}
