package transport

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"sidedoor/internal/types"
)

func TestSerializeRequest(t *testing.T) {
	t.Run("GET without body", func(t *testing.T) {
		req := &types.Request{
			Method: http.MethodGet,
			Header: http.Header{"Accept": []string{"application/json"}},
		}

		wire := string(serializeRequest(req, "api.example.test", "/v1/items?page=2"))

		assert.True(t, strings.HasPrefix(wire, "GET /v1/items?page=2 HTTP/1.1\r\n"))
		assert.Contains(t, wire, "Host: api.example.test\r\n")
		assert.Contains(t, wire, "Connection: close\r\n")
		assert.Contains(t, wire, "Accept: application/json\r\n")
		assert.NotContains(t, wire, "Content-Length")
		assert.True(t, strings.HasSuffix(wire, "\r\n\r\n"))
	})

	t.Run("POST with body gets Content-Length", func(t *testing.T) {
		body := []byte(`{"name":"x"}`)
		req := &types.Request{
			Method: http.MethodPost,
			Body:   body,
		}

		wire := string(serializeRequest(req, "api.example.test", "/v1/items"))

		assert.True(t, strings.HasPrefix(wire, "POST /v1/items HTTP/1.1\r\n"))
		assert.Contains(t, wire, "Content-Length: 12\r\n")
		assert.True(t, strings.HasSuffix(wire, "\r\n\r\n"+string(body)))
	})

	t.Run("Defaults to GET and root path", func(t *testing.T) {
		wire := string(serializeRequest(&types.Request{}, "api.example.test", ""))
		assert.True(t, strings.HasPrefix(wire, "GET / HTTP/1.1\r\n"))
	})

	t.Run("Managed headers cannot be overridden", func(t *testing.T) {
		req := &types.Request{
			Header: http.Header{
				"Host":           []string{"evil.test"},
				"Connection":     []string{"keep-alive"},
				"Content-Length": []string{"9999"},
			},
		}

		wire := string(serializeRequest(req, "api.example.test", "/"))

		assert.Contains(t, wire, "Host: api.example.test\r\n")
		assert.NotContains(t, wire, "evil.test")
		assert.NotContains(t, wire, "keep-alive")
		assert.NotContains(t, wire, "9999")
	})
}
