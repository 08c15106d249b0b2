package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sidedoor/internal/types"
)

func TestParseResponse(t *testing.T) {
	t.Run("Plain response", func(t *testing.T) {
		raw := "HTTP/1.1 200 OK\r\n" +
			"Content-Type: application/json\r\n" +
			"X-Trace: a\r\n" +
			"X-Trace: b\r\n" +
			"\r\n" +
			`{"ok":true}`

		resp, err := ParseResponse([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, []string{"a", "b"}, resp.Header.Values("X-Trace"))
		assert.Equal(t, `{"ok":true}`, string(resp.Body))
	})

	t.Run("Header names are case-insensitive", func(t *testing.T) {
		raw := "HTTP/1.1 204 No Content\r\ncontent-type: text/plain\r\n\r\n"

		resp, err := ParseResponse([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, 204, resp.StatusCode)
		assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
		assert.Empty(t, resp.Body)
	})

	t.Run("Bare LF line endings", func(t *testing.T) {
		raw := "HTTP/1.1 404 Not Found\nContent-Type: text/html\n\nmissing"

		resp, err := ParseResponse([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
		assert.Equal(t, "missing", string(resp.Body))
	})

	t.Run("Chunked body is decoded", func(t *testing.T) {
		raw := "HTTP/1.1 200 OK\r\n" +
			"Transfer-Encoding: chunked\r\n" +
			"\r\n" +
			"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"

		resp, err := ParseResponse([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "Wikipedia", string(resp.Body))
	})

	t.Run("Missing status line", func(t *testing.T) {
		_, err := ParseResponse([]byte("no line terminator at all"))
		assert.ErrorIs(t, err, types.ErrMalformedResponse)
	})

	t.Run("Garbage status line", func(t *testing.T) {
		_, err := ParseResponse([]byte("GARBAGE\r\n\r\n"))
		assert.ErrorIs(t, err, types.ErrMalformedResponse)
	})

	t.Run("Non-numeric status code", func(t *testing.T) {
		_, err := ParseResponse([]byte("HTTP/1.1 abc OK\r\n\r\n"))
		assert.ErrorIs(t, err, types.ErrMalformedResponse)
	})

	t.Run("Unterminated headers", func(t *testing.T) {
		_, err := ParseResponse([]byte("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n"))
		assert.ErrorIs(t, err, types.ErrMalformedResponse)
	})

	t.Run("Header line without colon", func(t *testing.T) {
		_, err := ParseResponse([]byte("HTTP/1.1 200 OK\r\nbogus header\r\n\r\n"))
		assert.ErrorIs(t, err, types.ErrMalformedResponse)
	})
}

func TestReadRawResponse(t *testing.T) {
	t.Run("Reads to EOF", func(t *testing.T) {
		raw := "HTTP/1.1 200 OK\r\n\r\nbody"
		got, err := readRawResponse(strings.NewReader(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, string(got))
	})

	t.Run("Rejects stream without header separator", func(t *testing.T) {
		_, err := readRawResponse(strings.NewReader("HTTP/1.1 200 OK\r\n"))
		assert.ErrorIs(t, err, types.ErrMalformedResponse)
	})
}
