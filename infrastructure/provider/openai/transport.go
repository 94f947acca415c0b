package openai

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httputil"
	"time"
)

// capture collects the verbatim provider response for one call. The
// transport fills it before any JSON or SSE parsing happens, so the
// recorded bytes are exactly what crossed the wire.
type capture struct {
	headers     []byte
	body        []byte
	requestAt   time.Time
	respondedAt time.Time
}

type captureKey struct{}

func withCapture(ctx context.Context) (context.Context, *capture) {
	c := &capture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

// recordingTransport wraps a RoundTripper and records the raw response
// into the capture carried by the request context. The whole body is
// drained here; downstream consumers read from the buffered copy.
type recordingTransport struct {
	base http.RoundTripper
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c, _ := req.Context().Value(captureKey{}).(*capture)
	if c != nil {
		c.requestAt = time.Now().UTC()
	}

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if c != nil {
		c.respondedAt = time.Now().UTC()
		headers, dumpErr := httputil.DumpResponse(resp, false)
		if dumpErr == nil {
			c.headers = headers
		}
		c.body = body
	}
	return resp, nil
}
