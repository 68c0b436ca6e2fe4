package assert

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apitestkit/apitest/packages/client"
	"github.com/apitestkit/apitest/packages/crypto"
)

func jsonResponse(statusCode int, body string) *client.Response {
	return &client.Response{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}
}

func TestStatus(t *testing.T) {
	a := New(jsonResponse(200, `{}`))

	assert.NoError(t, a.Status(200))

	err := a.Status(404)
	require.Error(t, err)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "status", failure.Assertion)
	assert.Contains(t, failure.Message, "expected status 404, got 200")
}

func TestText(t *testing.T) {
	a := New(&client.Response{StatusCode: 200, Body: []byte("Hello world")})

	assert.NoError(t, a.Text("Hello world"))
	assert.Error(t, a.Text("Hello"))
}

func TestHeader_CaseInsensitive(t *testing.T) {
	a := New(&client.Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	assert.NoError(t, a.Header("content-type", "application/json"))
	assert.NoError(t, a.Header("CONTENT-TYPE", "application/json"))
	assert.Error(t, a.Header("Content-Type", "text/html"))
	assert.Error(t, a.Header("X-Missing", "anything"))
}

func TestRedirect(t *testing.T) {
	redirect := &client.Response{
		StatusCode: 302,
		Headers:    map[string]string{"Location": "/there"},
	}

	assert.NoError(t, New(redirect).Redirect("/there"))

	err := New(redirect).Redirect("/elsewhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/there")

	notRedirect := jsonResponse(200, `{}`)
	err = New(notRedirect).Redirect("/there")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 200")
}

func TestJSON_Exact(t *testing.T) {
	a := New(jsonResponse(200, `{"id": 1, "title": "Adonis 101"}`))

	assert.NoError(t, a.JSON(map[string]any{"id": 1, "title": "Adonis 101"}))
}

func TestJSON_ExtraKeyFails(t *testing.T) {
	a := New(jsonResponse(200, `{"id": 1, "title": "Adonis 101"}`))

	err := a.JSON(map[string]any{"id": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unexpected key "title"`)
}

func TestJSON_FirstDiffNamed(t *testing.T) {
	a := New(jsonResponse(200, `{"user": {"name": "virk", "age": 30}}`))

	err := a.JSON(map[string]any{"user": map[string]any{"name": "nikk", "age": 30}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at body.user.name")
	assert.Contains(t, err.Error(), "expected nikk, got virk")
}

func TestJSON_MalformedBodyIsDiffNotCrash(t *testing.T) {
	a := New(jsonResponse(200, `{not json`))

	err := a.JSON(map[string]any{"a": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body is not valid JSON")
}

func TestJSONSubset_ObjectMatch(t *testing.T) {
	a := New(jsonResponse(200, `{"a": 1, "b": 2}`))

	assert.NoError(t, a.JSONSubset(map[string]any{"a": 1}))
	assert.Error(t, a.JSONSubset(map[string]any{"a": 2}))
	assert.Error(t, a.JSONSubset(map[string]any{"c": 1}))
}

func TestJSONSubset_NestedObjects(t *testing.T) {
	a := New(jsonResponse(200, `{"user": {"name": "virk", "posts": 10, "meta": {"admin": true}}}`))

	assert.NoError(t, a.JSONSubset(map[string]any{
		"user": map[string]any{"meta": map[string]any{"admin": true}},
	}))
}

func TestJSONSubset_ArrayBestFit(t *testing.T) {
	body := `[
		{"title": "First", "tags": ["x"]},
		{"title": "Adonis 101", "body": "Blog post content"},
		{"title": "Last"}
	]`
	a := New(jsonResponse(200, body))

	// Extra actual elements before, between, and after do not fail.
	assert.NoError(t, a.JSONSubset([]any{
		map[string]any{"title": "Adonis 101"},
	}))
	assert.NoError(t, a.JSONSubset([]any{
		map[string]any{"title": "First"},
		map[string]any{"title": "Last"},
	}))
}

func TestJSONSubset_ArrayRelativeOrderRequired(t *testing.T) {
	a := New(jsonResponse(200, `[{"n": 1}, {"n": 2}]`))

	err := a.JSONSubset([]any{
		map[string]any{"n": 2},
		map[string]any{"n": 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no element matches")
}

func TestErrors_SubsetByField(t *testing.T) {
	body := `[
		{"field": "email", "validation": "required", "message": "email is required"},
		{"field": "password", "validation": "min", "message": "password too short"}
	]`
	a := New(jsonResponse(422, body))

	assert.NoError(t, a.Errors([]map[string]any{
		{"field": "password", "validation": "min"},
	}))
	assert.Error(t, a.Errors([]map[string]any{
		{"field": "password", "validation": "required"},
	}))
}

func TestErrors_WrappedList(t *testing.T) {
	a := New(jsonResponse(422, `{"errors": [{"field": "email", "validation": "required"}]}`))

	assert.NoError(t, a.Errors([]map[string]any{{"field": "email"}}))
}

func TestErrors_NotAList(t *testing.T) {
	a := New(jsonResponse(200, `{"ok": true}`))

	err := a.Errors([]map[string]any{{"field": "email"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation error list")
}

func TestBodyPath(t *testing.T) {
	a := New(jsonResponse(200, `{"user": {"name": "virk"}, "items": [{"id": 7}]}`))

	assert.NoError(t, a.BodyPath("user.name", "virk"))
	assert.NoError(t, a.BodyPath("items.0.id", 7))
	assert.Error(t, a.BodyPath("user.name", "nikk"))
	assert.Error(t, a.BodyPath("user.missing", "x"))
}

func TestJSONSchema(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "post.schema.json")
	schema := `{
		"type": "object",
		"required": ["title"],
		"properties": {"title": {"type": "string"}}
	}`
	require.NoError(t, os.WriteFile(schemaPath, []byte(schema), 0644))

	assert.NoError(t, New(jsonResponse(200, `{"title": "Adonis 101"}`)).JSONSchema(schemaPath))

	err := New(jsonResponse(200, `{"title": 42}`)).JSONSchema(schemaPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")

	err = New(jsonResponse(200, `{}`)).JSONSchema(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

// cookieResponse round-trips a response through the client so the Set-Cookie
// jar is populated the same way production responses are.
func cookieResponse(t *testing.T, enc crypto.Encrypter) *client.Response {
	t.Helper()

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		encrypted, err := enc.Encrypt("cart-123")
		require.NoError(t, err)

		http.SetCookie(w, &http.Cookie{Name: "cartTotal", Value: encrypted})
		http.SetCookie(w, &http.Cookie{Name: "theme", Value: "dark"})
	})

	c := client.NewClient(client.WithHandler(r), client.WithEncrypter(enc))
	resp, err := c.Get("/").End()
	require.NoError(t, err)
	return resp
}

func TestCookieAssertions(t *testing.T) {
	enc, err := crypto.New("app-secret")
	require.NoError(t, err)

	resp := cookieResponse(t, enc)
	a := New(resp, WithEncrypter(enc))

	assert.NoError(t, a.Cookie("cartTotal", "cart-123"))
	assert.NoError(t, a.CookieExists("cartTotal"))
	assert.NoError(t, a.PlainCookie("theme", "dark"))
	assert.NoError(t, a.PlainCookieExists("theme"))

	assert.Error(t, a.Cookie("cartTotal", "cart-999"))
	assert.Error(t, a.Cookie("theme", "dark")) // set, but not encrypted
	assert.Error(t, a.CookieExists("missing"))
	assert.Error(t, a.PlainCookie("theme", "light"))
	assert.Error(t, a.PlainCookieExists("missing"))
}

func TestCookie_DecryptionErrorDistinct(t *testing.T) {
	enc, err := crypto.New("app-secret")
	require.NoError(t, err)
	otherEnc, err := crypto.New("different-key")
	require.NoError(t, err)

	resp := cookieResponse(t, enc)

	// Asserting with the wrong key is a decryption failure, not a value
	// mismatch.
	err = New(resp, WithEncrypter(otherEnc)).Cookie("cartTotal", "cart-123")
	require.Error(t, err)
	assert.True(t, crypto.IsDecryptionError(err))

	var failure *Failure
	assert.False(t, errors.As(err, &failure))
}

type recordingT struct {
	helperCalls int
	messages    []string
}

func (r *recordingT) Helper() { r.helperCalls++ }

func (r *recordingT) Errorf(format string, args ...any) {
	r.messages = append(r.messages, format)
}

func TestWithReporter(t *testing.T) {
	rec := &recordingT{}
	a := New(jsonResponse(200, `{}`), WithReporter(rec))

	require.NoError(t, a.Status(200))
	assert.Empty(t, rec.messages)

	require.Error(t, a.Status(404))
	assert.Len(t, rec.messages, 1)
}

// Full round trip from the testing guide: request a post listing, assert
// status and body subset.
func TestScenario_PostListing(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/posts", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "title": "Adonis 101", "body": "Blog post content"},
		})
	})

	c := client.NewClient(client.WithHandler(r))
	resp, err := c.Get("/posts").Accept("json").End()
	require.NoError(t, err)

	a := New(resp, WithReporter(t))
	assert.NoError(t, a.Status(200))
	assert.NoError(t, a.JSONSubset([]any{
		map[string]any{"title": "Adonis 101", "body": "Blog post content"},
	}))
}
