package transport

import (
	"bytes"
	"fmt"
	"net/http"

	"sidedoor/internal/types"
)

// serializeRequest renders the request as HTTP/1.1 wire bytes. The Host
// header carries the logical hostname, never the dialed address, and every
// request closes its connection.
func serializeRequest(req *types.Request, hostname, requestURI string) []byte {
	var b bytes.Buffer

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if requestURI == "" {
		requestURI = "/"
	}

	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, requestURI)
	fmt.Fprintf(&b, "Host: %s\r\n", hostname)
	b.WriteString("Connection: close\r\n")

	for key, values := range req.Header {
		if isManagedHeader(key) {
			continue
		}
		for _, value := range values {
			fmt.Fprintf(&b, "%s: %s\r\n", key, value)
		}
	}

	if len(req.Body) > 0 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(req.Body))
	}

	b.WriteString("\r\n")
	b.Write(req.Body)

	return b.Bytes()
}

// isManagedHeader reports whether the transport owns the header itself
func isManagedHeader(key string) bool {
	switch http.CanonicalHeaderKey(key) {
	case "Host", "Connection", "Content-Length":
		return true
	}
	return false
}
