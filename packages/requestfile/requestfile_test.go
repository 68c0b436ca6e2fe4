package requestfile

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apitestkit/apitest/packages/client"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "request.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
method: POST
url: /posts
headers:
  accept: application/json
body:
  title: Adonis 101
expect:
  status: 201
`)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "POST", f.Method)
	assert.Equal(t, "/posts", f.URL)
	assert.Equal(t, "application/json", f.Headers["accept"])
	assert.Equal(t, 201, f.Expect.Status)
}

func TestLoad_DefaultsToGet(t *testing.T) {
	f, err := Load(writeFile(t, "url: /posts\n"))
	require.NoError(t, err)
	assert.Equal(t, "GET", f.Method)
}

func TestLoad_MissingURL(t *testing.T) {
	_, err := Load(writeFile(t, "method: GET\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url is required")
}

func TestLoad_FailuresAreLoadErrors(t *testing.T) {
	cases := map[string]func(t *testing.T) string{
		"missing file": func(t *testing.T) string { return "/nonexistent/request.yaml" },
		"invalid yaml": func(t *testing.T) string { return writeFile(t, "url: [\n") },
		"missing url":  func(t *testing.T) string { return writeFile(t, "method: GET\n") },
	}

	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(path(t))
			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.NotEmpty(t, loadErr.Path)
		})
	}
}

func postsApp() http.Handler {
	r := chi.NewRouter()
	r.Get("/posts", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "title": "Adonis 101", "body": "Blog post content"},
		})
	})
	return r
}

func TestSendAndEvaluate_Pass(t *testing.T) {
	f, err := Load(writeFile(t, `
url: /posts
accept: json
expect:
  status: 200
  headers:
    content-type: application/json
  jsonSubset:
    - title: Adonis 101
`))
	require.NoError(t, err)

	c := client.NewClient(client.WithHandler(postsApp()))
	resp, err := f.Send(c)
	require.NoError(t, err)

	assert.Empty(t, f.Evaluate(resp))
}

func TestSendAndEvaluate_Failures(t *testing.T) {
	f, err := Load(writeFile(t, `
url: /posts
expect:
  status: 404
  jsonSubset:
    - title: Missing Post
`))
	require.NoError(t, err)

	c := client.NewClient(client.WithHandler(postsApp()))
	resp, err := f.Send(c)
	require.NoError(t, err)

	failures := f.Evaluate(resp)
	assert.Len(t, failures, 2)
}

func TestEvaluate_NoExpectBlock(t *testing.T) {
	f := &File{URL: "/posts"}
	assert.Empty(t, f.Evaluate(&client.Response{StatusCode: 500}))
}
