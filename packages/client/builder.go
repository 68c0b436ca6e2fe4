package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	neturl "net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/apitestkit/apitest/packages/crypto"
)

type formField struct {
	name  string
	value string
}

type fileField struct {
	name string
	path string
}

// RequestBuilder accumulates a complete request specification through
// chained calls and executes it exactly once via End. Configuration errors
// are recorded on the first failing call and surfaced by End, so chains stay
// fluent. A builder must not be shared across goroutines.
type RequestBuilder struct {
	client *Client

	method  string
	url     string
	headers http.Header
	query   neturl.Values

	body    any
	hasBody bool

	contentType string
	accept      string

	cookies []*http.Cookie
	fields  []formField
	files   []fileField

	sessionValues map[string]any

	loginUser   any
	loginScheme string
	hasLogin    bool

	basicUser string
	basicPass string
	hasBasic  bool

	timeout time.Duration

	err       error
	finalized bool
}

func newRequestBuilder(c *Client, method, url string) *RequestBuilder {
	return &RequestBuilder{
		client:  c,
		method:  method,
		url:     url,
		headers: make(http.Header),
		query:   make(neturl.Values),
	}
}

// fail records the first configuration error; later calls keep it.
func (b *RequestBuilder) fail(err error) *RequestBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Err returns the first error recorded by a chained call, if any.
func (b *RequestBuilder) Err() error {
	return b.err
}

// stale rejects chained calls arriving after the builder was finalized. The
// recorded error is observable via Err.
func (b *RequestBuilder) stale(op string) bool {
	if b.finalized {
		b.fail(&ConfigurationError{Op: op, Reason: "request already finalized"})
	}
	return b.finalized
}

// Header adds or overwrites a header. Names are case-insensitive and the
// last write wins.
func (b *RequestBuilder) Header(key, value string) *RequestBuilder {
	if b.stale("header") {
		return b
	}
	b.headers.Set(key, value)
	return b
}

// Send sets the request body. Strings and byte slices are sent verbatim;
// anything else is JSON-encoded at finalize time. Mutually exclusive with
// Field and Attach.
func (b *RequestBuilder) Send(body any) *RequestBuilder {
	if b.stale("send") {
		return b
	}
	if len(b.fields) > 0 || len(b.files) > 0 {
		return b.fail(&ConfigurationError{Op: "send", Reason: "request already has multipart fields"})
	}
	if b.hasBody {
		return b.fail(&ConfigurationError{Op: "send", Reason: "request body already set"})
	}
	b.body = body
	b.hasBody = true
	return b
}

// Query merges a parameter map into the URL query. Nested maps and slices
// render with bracket notation, e.g. user[name]=virk.
func (b *RequestBuilder) Query(params map[string]any) *RequestBuilder {
	if b.stale("query") {
		return b
	}
	for _, k := range sortedKeys(params) {
		appendQuery(b.query, k, params[k])
	}
	return b
}

// QueryParam appends one query parameter. Keys are repeatable.
func (b *RequestBuilder) QueryParam(key, value string) *RequestBuilder {
	if b.stale("queryParam") {
		return b
	}
	b.query.Add(key, value)
	return b
}

// Type sets the Content-Type header from an alias (json, form, ...) or a
// literal MIME string.
func (b *RequestBuilder) Type(contentType string) *RequestBuilder {
	if b.stale("type") {
		return b
	}
	b.contentType = resolveType(contentType)
	return b
}

// Accept sets the Accept header from an alias or a literal MIME string.
func (b *RequestBuilder) Accept(acceptType string) *RequestBuilder {
	if b.stale("accept") {
		return b
	}
	b.accept = resolveType(acceptType)
	return b
}

// Cookie adds an encrypted cookie. The value is encrypted immediately using
// the client's encrypter; without one the builder records an EncryptionError.
func (b *RequestBuilder) Cookie(key, value string) *RequestBuilder {
	if b.stale("cookie") {
		return b
	}
	if b.client.encrypter == nil {
		return b.fail(&crypto.EncryptionError{Reason: "no encrypter configured; set an application key"})
	}

	encrypted, err := b.client.encrypter.Encrypt(value)
	if err != nil {
		return b.fail(err)
	}

	b.cookies = append(b.cookies, &http.Cookie{Name: key, Value: encrypted})
	return b
}

// PlainCookie adds a cookie without encryption.
func (b *RequestBuilder) PlainCookie(key, value string) *RequestBuilder {
	if b.stale("plainCookie") {
		return b
	}
	b.cookies = append(b.cookies, &http.Cookie{Name: key, Value: value})
	return b
}

// Field adds a multipart form field, switching the request to multipart
// encoding. Mutually exclusive with Send.
func (b *RequestBuilder) Field(name, value string) *RequestBuilder {
	if b.stale("field") {
		return b
	}
	if b.hasBody {
		return b.fail(&ConfigurationError{Op: "field", Reason: "request already has a body"})
	}
	b.fields = append(b.fields, formField{name: name, value: value})
	return b
}

// Attach adds a multipart file upload. The file is read at finalize time;
// a missing file fails End with FileNotFoundError before any network call.
func (b *RequestBuilder) Attach(name, path string) *RequestBuilder {
	if b.stale("attach") {
		return b
	}
	if b.hasBody {
		return b.fail(&ConfigurationError{Op: "attach", Reason: "request already has a body"})
	}
	b.files = append(b.files, fileField{name: name, path: path})
	return b
}

// Session pre-seeds a server-side session entry for this request. Requires
// the client to be configured with a session store.
func (b *RequestBuilder) Session(key string, value any) *RequestBuilder {
	if b.stale("session") {
		return b
	}
	if b.client.sessions == nil {
		return b.fail(&ConfigurationError{Op: "session", Reason: "no session store configured"})
	}
	if b.sessionValues == nil {
		b.sessionValues = make(map[string]any)
	}
	b.sessionValues[key] = value
	return b
}

// LoginVia authenticates the simulated client as user before the request
// executes. An empty scheme uses the authenticator's default guard.
func (b *RequestBuilder) LoginVia(user any, scheme string) *RequestBuilder {
	if b.stale("loginVia") {
		return b
	}
	if b.client.auth == nil {
		return b.fail(&ConfigurationError{Op: "loginVia", Reason: "no authenticator configured"})
	}
	b.loginUser = user
	b.loginScheme = scheme
	b.hasLogin = true
	return b
}

// BasicAuth authenticates with HTTP basic credentials.
func (b *RequestBuilder) BasicAuth(username, password string) *RequestBuilder {
	if b.stale("basicAuth") {
		return b
	}
	b.basicUser = username
	b.basicPass = password
	b.hasBasic = true
	return b
}

// Timeout overrides the client timeout for this request.
func (b *RequestBuilder) Timeout(d time.Duration) *RequestBuilder {
	if b.stale("timeout") {
		return b
	}
	b.timeout = d
	return b
}

// End finalizes the request: validates the accumulated configuration, issues
// the request, and returns the response. A builder can be finalized at most
// once.
func (b *RequestBuilder) End() (*Response, error) {
	return b.EndContext(context.Background())
}

// EndContext is End with a caller-supplied context.
func (b *RequestBuilder) EndContext(ctx context.Context) (*Response, error) {
	if b.finalized {
		return nil, &ConfigurationError{Op: "end", Reason: "request already finalized"}
	}
	b.finalized = true

	if b.err != nil {
		return nil, b.err
	}
	if b.hasBody && (len(b.fields) > 0 || len(b.files) > 0) {
		return nil, &ConfigurationError{Op: "end", Reason: "body and multipart fields are mutually exclusive"}
	}

	target, err := b.client.resolveURL(b.url)
	if err != nil {
		return nil, err
	}
	target = b.buildURL(target)

	// Attachments must resolve to readable files before anything is sent.
	for _, f := range b.files {
		info, err := os.Stat(f.path)
		if err != nil {
			return nil, &FileNotFoundError{Field: f.name, Path: f.path, Err: err}
		}
		if info.IsDir() {
			return nil, &FileNotFoundError{Field: f.name, Path: f.path}
		}
	}

	timeout := b.timeout
	if timeout <= 0 {
		timeout = b.client.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cookies, headers, err := b.prepareCredentials(ctx)
	if err != nil {
		return nil, err
	}

	body, contentType, err := b.buildBody()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, b.method, target, body)
	if err != nil {
		return nil, &ConfigurationError{Op: "end", Reason: err.Error()}
	}

	for k, v := range b.client.defaultHeaders {
		req.Header.Set(k, v)
	}
	for k, vs := range b.headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if b.accept != "" {
		req.Header.Set("Accept", b.accept)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if b.hasBasic {
		req.SetBasicAuth(b.basicUser, b.basicPass)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	if b.client.limiter != nil {
		if err := b.client.limiter.Wait(ctx); err != nil {
			return nil, &TimeoutError{URL: target, Err: err}
		}
	}

	start := time.Now()
	httpResp, err := b.client.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, classifyTransportError(target, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(target, err)
	}

	if b.client.recorder != nil {
		b.client.recorder.Record(b.route(), duration)
	}

	return newResponse(httpResp, respBody, duration), nil
}

// buildURL appends the accumulated query parameters to the target URL.
func (b *RequestBuilder) buildURL(target string) string {
	if len(b.query) == 0 {
		return target
	}

	u, err := neturl.Parse(target)
	if err != nil {
		return target
	}

	q := u.Query()
	for k, vs := range b.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// prepareCredentials runs login simulation and session seeding, returning
// the cookies and headers to attach.
func (b *RequestBuilder) prepareCredentials(ctx context.Context) ([]*http.Cookie, map[string]string, error) {
	cookies := b.cookies
	headers := make(map[string]string)

	sessionValues := make(map[string]any, len(b.sessionValues))
	for k, v := range b.sessionValues {
		sessionValues[k] = v
	}

	if b.hasLogin {
		cred, err := b.client.auth.Login(ctx, b.loginUser, b.loginScheme)
		if err != nil {
			return nil, nil, err
		}
		for k, v := range cred.Headers {
			headers[k] = v
		}
		for k, v := range cred.SessionValues {
			sessionValues[k] = v
		}
	}

	if len(sessionValues) > 0 {
		if b.client.sessions == nil {
			return nil, nil, &ConfigurationError{Op: "session", Reason: "no session store configured"}
		}

		id, err := b.client.sessions.Create(ctx, sessionValues)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to seed session: %w", err)
		}

		value := id
		if b.client.encrypter != nil {
			value, err = b.client.encrypter.Encrypt(id)
			if err != nil {
				return nil, nil, err
			}
		}
		cookies = append(cookies, &http.Cookie{Name: b.client.sessionCookie, Value: value})
	}

	return cookies, headers, nil
}

// buildBody encodes the request body, returning the reader and the implied
// Content-Type (empty when the caller's choice should stand).
func (b *RequestBuilder) buildBody() (io.Reader, string, error) {
	if len(b.fields) > 0 || len(b.files) > 0 {
		return b.buildMultipartBody()
	}

	if !b.hasBody {
		return nil, b.contentType, nil
	}

	contentType := b.contentType

	switch body := b.body.(type) {
	case string:
		if contentType == "" {
			contentType = typeAliases["json"]
		}
		return bytes.NewBufferString(body), contentType, nil
	case []byte:
		if contentType == "" {
			contentType = typeAliases["json"]
		}
		return bytes.NewBuffer(body), contentType, nil
	}

	if contentType == typeAliases["form"] {
		values := make(neturl.Values)
		switch m := b.body.(type) {
		case map[string]string:
			for k, v := range m {
				values.Set(k, v)
			}
		case map[string]any:
			for k, v := range m {
				values.Set(k, fmt.Sprintf("%v", v))
			}
		default:
			return nil, "", &ConfigurationError{Op: "send", Reason: fmt.Sprintf("form body must be a map, got %T", b.body)}
		}
		return bytes.NewBufferString(values.Encode()), contentType, nil
	}

	encoded, err := json.Marshal(b.body)
	if err != nil {
		return nil, "", &ConfigurationError{Op: "send", Reason: fmt.Sprintf("body is not JSON-serializable: %v", err)}
	}
	if contentType == "" {
		contentType = typeAliases["json"]
	}
	return bytes.NewBuffer(encoded), contentType, nil
}

func (b *RequestBuilder) buildMultipartBody() (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, field := range b.fields {
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, "", err
		}
	}

	for _, f := range b.files {
		file, err := os.Open(f.path)
		if err != nil {
			return nil, "", &FileNotFoundError{Field: f.name, Path: f.path, Err: err}
		}

		part, err := writer.CreateFormFile(f.name, filepath.Base(f.path))
		if err != nil {
			file.Close()
			return nil, "", err
		}

		_, err = io.Copy(part, file)
		file.Close()
		if err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

// route is the metrics label for this request, method plus the path as the
// test wrote it.
func (b *RequestBuilder) route() string {
	path := b.url
	if u, err := neturl.Parse(b.url); err == nil && u.Path != "" {
		path = u.Path
	}
	return b.method + " " + path
}

// classifyTransportError splits transport failures into timeouts and other
// network errors.
func classifyTransportError(target string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{URL: target, Err: err}
	}

	var urlErr *neturl.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &TimeoutError{URL: target, Err: err}
	}

	return &NetworkError{URL: target, Err: err}
}
