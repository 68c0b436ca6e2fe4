package assert

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/apitestkit/apitest/packages/client"
	"github.com/apitestkit/apitest/packages/crypto"
)

// Failure describes one failed assertion. It implements error; a nil return
// from an assertion method means the check passed.
type Failure struct {
	Assertion string
	Expected  any
	Actual    any
	Message   string
}

func (f *Failure) Error() string {
	return f.Message
}

func newFailure(assertion string, expected, actual any, format string, args ...any) *Failure {
	return &Failure{
		Assertion: assertion,
		Expected:  expected,
		Actual:    actual,
		Message:   fmt.Sprintf("%s: %s", assertion, fmt.Sprintf(format, args...)),
	}
}

// T is the subset of *testing.T used to report bound failures.
type T interface {
	Helper()
	Errorf(format string, args ...any)
}

// Assertions wraps a received response and exposes checks against it. Checks
// return nil on pass; with a bound reporter every failure is also written to
// the test.
type Assertions struct {
	resp *client.Response
	enc  crypto.Encrypter
	t    T
}

// Option configures an Assertions.
type Option func(*Assertions)

// WithEncrypter supplies the encrypter used to decrypt cookie values.
func WithEncrypter(e crypto.Encrypter) Option {
	return func(a *Assertions) {
		a.enc = e
	}
}

// WithReporter binds a testing.T so failures are reported automatically.
func WithReporter(t T) Option {
	return func(a *Assertions) {
		a.t = t
	}
}

// New wraps a response for assertion.
func New(resp *client.Response, opts ...Option) *Assertions {
	a := &Assertions{resp: resp}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Assertions) report(err error) error {
	if err != nil && a.t != nil {
		a.t.Helper()
		a.t.Errorf("%s", err.Error())
	}
	return err
}

// Status checks the status code for exact equality.
func (a *Assertions) Status(code int) error {
	if a.resp.StatusCode == code {
		return nil
	}
	return a.report(newFailure("status", code, a.resp.StatusCode,
		"expected status %d, got %d", code, a.resp.StatusCode))
}

// Text checks the raw body for exact string equality.
func (a *Assertions) Text(expected string) error {
	actual := a.resp.BodyString()
	if actual == expected {
		return nil
	}
	return a.report(newFailure("text", expected, actual,
		"expected body %q, got %q", expected, actual))
}

// Header checks a header by case-insensitive name for exact value equality.
func (a *Assertions) Header(name, value string) error {
	actual := a.resp.Header(name)
	if actual == value {
		return nil
	}
	return a.report(newFailure("header", value, actual,
		"expected header %s to be %q, got %q", name, value, actual))
}

// Redirect checks for a 3xx status and an exact Location match.
func (a *Assertions) Redirect(url string) error {
	if !a.resp.IsRedirect() {
		return a.report(newFailure("redirect", url, a.resp.StatusCode,
			"expected a redirect to %s, got status %d", url, a.resp.StatusCode))
	}
	location := a.resp.Location()
	if location != url {
		return a.report(newFailure("redirect", url, location,
			"expected redirect to %s, got %s", url, location))
	}
	return nil
}

// JSON checks the parsed body against expected by deep equality. Extra keys
// in the actual body are a failure. The message names the first structural
// difference.
func (a *Assertions) JSON(expected any) error {
	actualValue, failure := a.parseBody("json")
	if failure != nil {
		return a.report(failure)
	}

	expectedValue, err := normalize(expected)
	if err != nil {
		return a.report(newFailure("json", expected, actualValue,
			"expected value is not JSON-serializable: %v", err))
	}

	if msg, ok := diff("body", expectedValue, actualValue); !ok {
		return a.report(newFailure("json", expectedValue, actualValue, "%s", msg))
	}
	return nil
}

// JSONSubset checks that every key and element present in expected matches
// the actual body; extra keys and elements in the actual body are ignored.
// Array elements are matched by in-order best-fit search: each expected
// element must match some actual element, in the same relative order.
func (a *Assertions) JSONSubset(expected any) error {
	actualValue, failure := a.parseBody("jsonSubset")
	if failure != nil {
		return a.report(failure)
	}

	expectedValue, err := normalize(expected)
	if err != nil {
		return a.report(newFailure("jsonSubset", expected, actualValue,
			"expected value is not JSON-serializable: %v", err))
	}

	if msg, ok := subsetDiff("body", expectedValue, actualValue); !ok {
		return a.report(newFailure("jsonSubset", expectedValue, actualValue, "%s", msg))
	}
	return nil
}

// Errors checks structured validation-error entries by subset rule: each
// expected entry must subset-match some entry in the body, in any order. The
// body may be a bare array or an object with an "errors" array.
func (a *Assertions) Errors(expected any) error {
	actualValue, failure := a.parseBody("errors")
	if failure != nil {
		return a.report(failure)
	}

	entries, ok := errorEntries(actualValue)
	if !ok {
		return a.report(newFailure("errors", expected, actualValue,
			"body does not contain a validation error list"))
	}

	expectedValue, err := normalize(expected)
	if err != nil {
		return a.report(newFailure("errors", expected, actualValue,
			"expected value is not JSON-serializable: %v", err))
	}

	expectedList, ok := expectedValue.([]any)
	if !ok {
		expectedList = []any{expectedValue}
	}

	for i, want := range expectedList {
		found := false
		for _, entry := range entries {
			if _, ok := subsetDiff("entry", want, entry); ok {
				found = true
				break
			}
		}
		if !found {
			return a.report(newFailure("errors", want, entries,
				"no error entry matches expected[%d]: %v", i, want))
		}
	}
	return nil
}

// Cookie checks an encrypted cookie: it must exist, decrypt, and equal value.
// A decryption failure surfaces as a DecryptionError rather than a Failure.
func (a *Assertions) Cookie(key, value string) error {
	ciphertext, ok := a.resp.EncryptedCookie(key)
	if !ok {
		if _, plain := a.resp.PlainCookie(key); plain {
			return a.report(newFailure("cookie", value, nil,
				"cookie %q is set but not encrypted", key))
		}
		return a.report(newFailure("cookie", value, nil, "cookie %q is not set", key))
	}

	if a.enc == nil {
		return a.report(newFailure("cookie", value, nil,
			"no encrypter configured to decrypt cookie %q", key))
	}

	plaintext, err := a.enc.Decrypt(ciphertext)
	if err != nil {
		return a.report(err)
	}

	if plaintext != value {
		return a.report(newFailure("cookie", value, plaintext,
			"expected cookie %q to be %q, got %q", key, value, plaintext))
	}
	return nil
}

// PlainCookie checks an unencrypted cookie for existence and value equality.
func (a *Assertions) PlainCookie(key, value string) error {
	actual, ok := a.resp.PlainCookie(key)
	if !ok {
		return a.report(newFailure("plainCookie", value, nil, "cookie %q is not set", key))
	}
	if actual != value {
		return a.report(newFailure("plainCookie", value, actual,
			"expected cookie %q to be %q, got %q", key, value, actual))
	}
	return nil
}

// CookieExists checks that an encrypted cookie is present.
func (a *Assertions) CookieExists(key string) error {
	if _, ok := a.resp.EncryptedCookie(key); ok {
		return nil
	}
	return a.report(newFailure("cookieExists", key, nil, "cookie %q is not set", key))
}

// PlainCookieExists checks that a plain cookie is present.
func (a *Assertions) PlainCookieExists(key string) error {
	if _, ok := a.resp.PlainCookie(key); ok {
		return nil
	}
	return a.report(newFailure("plainCookieExists", key, nil, "cookie %q is not set", key))
}

// BodyPath checks one value inside the JSON body addressed by a gjson path,
// e.g. "user.name" or "items.0.id".
func (a *Assertions) BodyPath(path string, expected any) error {
	result := gjson.GetBytes(a.resp.Body, path)
	if !result.Exists() {
		return a.report(newFailure("bodyPath", expected, nil,
			"path %q does not exist in body", path))
	}

	expectedValue, err := normalize(expected)
	if err != nil {
		return a.report(newFailure("bodyPath", expected, result.Value(),
			"expected value is not JSON-serializable: %v", err))
	}

	if msg, ok := diff(path, expectedValue, result.Value()); !ok {
		return a.report(newFailure("bodyPath", expectedValue, result.Value(), "%s", msg))
	}
	return nil
}

// JSONSchema validates the body against a JSON Schema file.
func (a *Assertions) JSONSchema(schemaPath string) error {
	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		return a.report(newFailure("jsonSchema", schemaPath, nil,
			"failed to read schema file: %v", err))
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaData)
	documentLoader := gojsonschema.NewBytesLoader(a.resp.Body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return a.report(newFailure("jsonSchema", schemaPath, a.resp.BodyString(),
			"schema validation error: %v", err))
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return a.report(newFailure("jsonSchema", schemaPath, a.resp.BodyString(),
		"schema validation failed: %v", msgs))
}

// parseBody returns the parsed JSON body, or a Failure describing why it
// could not be parsed. Malformed bodies report as failures, not crashes.
func (a *Assertions) parseBody(assertion string) (any, *Failure) {
	value, err := a.resp.BodyJSON()
	if err != nil {
		return nil, newFailure(assertion, nil, a.resp.BodyString(),
			"body is not valid JSON: %v", err)
	}
	return value, nil
}

// errorEntries extracts the validation-error list from a parsed body.
func errorEntries(body any) ([]any, bool) {
	switch v := body.(type) {
	case []any:
		return v, true
	case map[string]any:
		if list, ok := v["errors"].([]any); ok {
			return list, true
		}
	}
	return nil, false
}
