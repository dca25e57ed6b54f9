package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrServerStatus is returned by HTTP activities for 5xx responses, so a
// retry policy can retry them.
var ErrServerStatus = errors.New("server error status")

// HTTPRequest describes the request issued by an HTTP activity.
//
// URL, Body and header values may reference instance variables with
// ${name}; unknown variables expand to the empty string.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string

	// Client defaults to a plain http.Client; use WithTimeout on the
	// activity to bound each attempt.
	Client *http.Client
}

// HTTP creates an activity that issues req and completes with
//
//	status_code  int
//	headers      map[string]any (single values flattened)
//	body         string
//
// Only GET and POST are supported. Responses with status 500 and above
// fail with ErrServerStatus.
func HTTP(name string, req HTTPRequest) *Activity {
	return Do(name, func(ctx context.Context, vars Variables) (any, error) {
		return doHTTP(ctx, req, vars)
	})
}

func doHTTP(ctx context.Context, hr HTTPRequest, vars Variables) (map[string]any, error) {
	urlStr := expand(hr.URL, vars)
	if urlStr == "" {
		return nil, fmt.Errorf("url is required")
	}

	method := "GET"
	if hr.Method != "" {
		method = strings.ToUpper(hr.Method)
	}
	if method != "GET" && method != "POST" {
		return nil, fmt.Errorf("unsupported HTTP method: %s (supported: GET, POST)", method)
	}

	var body io.Reader
	if hr.Body != "" {
		body = bytes.NewBufferString(expand(hr.Body, vars))
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range hr.Headers {
		req.Header.Set(key, expand(value, vars))
	}

	client := hr.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrServerStatus, method, urlStr, resp.StatusCode)
	}

	headers := make(map[string]any, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = values
		}
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        string(respBody),
	}, nil
}

// expand replaces ${name} with the string form of vars[name].
func expand(s string, vars Variables) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:start])
		if v, ok := vars[s[start+2:start+end]]; ok && v != nil {
			fmt.Fprint(&b, v)
		}
		s = s[start+end+1:]
	}
}
