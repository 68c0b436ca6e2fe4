package client

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/apitestkit/apitest/packages/crypto"
)

// Response is an immutable view of a completed request: status, headers,
// body, and the Set-Cookie jar split into encrypted and plain sets.
type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration

	plainCookies     map[string]string
	encryptedCookies map[string]string
}

func newResponse(httpResp *http.Response, body []byte, duration time.Duration) *Response {
	headers := make(map[string]string)
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	plain := make(map[string]string)
	encrypted := make(map[string]string)
	for _, c := range httpResp.Cookies() {
		if crypto.IsEncrypted(c.Value) {
			encrypted[c.Name] = c.Value
		} else {
			plain[c.Name] = c.Value
		}
	}

	return &Response{
		StatusCode:       httpResp.StatusCode,
		Status:           httpResp.Status,
		Headers:          headers,
		Body:             body,
		Duration:         duration,
		plainCookies:     plain,
		encryptedCookies: encrypted,
	}
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Header returns a header value by case-insensitive name lookup.
func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Location returns the redirect target, empty when absent.
func (r *Response) Location() string {
	return r.Header("Location")
}

// PlainCookie looks up an unencrypted Set-Cookie value by name.
func (r *Response) PlainCookie(name string) (string, bool) {
	v, ok := r.plainCookies[name]
	return v, ok
}

// EncryptedCookie looks up an encrypted Set-Cookie value by name. The
// returned value is still ciphertext.
func (r *Response) EncryptedCookie(name string) (string, bool) {
	v, ok := r.encryptedCookies[name]
	return v, ok
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), "application/json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
