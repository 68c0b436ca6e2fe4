// Package requestfile loads one-off request definitions from YAML files for
// the apitest CLI and turns them into client requests with an optional
// expectation block.
package requestfile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apitestkit/apitest/packages/assert"
	"github.com/apitestkit/apitest/packages/client"
)

// File is one request definition.
type File struct {
	Method       string            `yaml:"method"`
	URL          string            `yaml:"url"`
	Headers      map[string]string `yaml:"headers"`
	Query        map[string]any    `yaml:"query"`
	Body         any               `yaml:"body"`
	Type         string            `yaml:"type"`
	Accept       string            `yaml:"accept"`
	Cookies      map[string]string `yaml:"cookies"`      // encrypted
	PlainCookies map[string]string `yaml:"plainCookies"` // sent as-is
	Session      map[string]any    `yaml:"session"`
	BasicAuth    *BasicAuth        `yaml:"basicAuth"`
	Timeout      int               `yaml:"timeout"` // milliseconds
	Expect       *Expect           `yaml:"expect"`
}

// BasicAuth holds HTTP basic credentials.
type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Expect describes the response checks to run after the request completes.
type Expect struct {
	Status     int               `yaml:"status"`
	Text       string            `yaml:"text"`
	Headers    map[string]string `yaml:"headers"`
	JSON       any               `yaml:"json"`
	JSONSubset any               `yaml:"jsonSubset"`
	Redirect   string            `yaml:"redirect"`
	Schema     string            `yaml:"schema"`
}

// LoadError reports an unreadable or invalid request file, as opposed to a
// failure sending the request it defines.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request file %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("request file %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads and validates a request definition.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "cannot read", Err: err}
	}

	f := &File{Method: "GET"}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, &LoadError{Path: path, Reason: "invalid YAML", Err: err}
	}

	if f.URL == "" {
		return nil, &LoadError{Path: path, Reason: "url is required"}
	}
	return f, nil
}

// Send executes the defined request with the given client.
func (f *File) Send(c *client.Client) (*client.Response, error) {
	b := c.Request(f.Method, f.URL)

	for k, v := range f.Headers {
		b.Header(k, v)
	}
	if len(f.Query) > 0 {
		b.Query(f.Query)
	}
	if f.Type != "" {
		b.Type(f.Type)
	}
	if f.Accept != "" {
		b.Accept(f.Accept)
	}
	for k, v := range f.Cookies {
		b.Cookie(k, v)
	}
	for k, v := range f.PlainCookies {
		b.PlainCookie(k, v)
	}
	for k, v := range f.Session {
		b.Session(k, v)
	}
	if f.BasicAuth != nil {
		b.BasicAuth(f.BasicAuth.Username, f.BasicAuth.Password)
	}
	if f.Body != nil {
		b.Send(f.Body)
	}
	if f.Timeout > 0 {
		b.Timeout(time.Duration(f.Timeout) * time.Millisecond)
	}

	return b.End()
}

// Evaluate runs the expectation block against a response and returns one
// error per failed check. A nil Expect passes vacuously.
func (f *File) Evaluate(resp *client.Response, opts ...assert.Option) []error {
	if f.Expect == nil {
		return nil
	}

	a := assert.New(resp, opts...)
	var failures []error

	collect := func(err error) {
		if err != nil {
			failures = append(failures, err)
		}
	}

	if f.Expect.Status != 0 {
		collect(a.Status(f.Expect.Status))
	}
	if f.Expect.Text != "" {
		collect(a.Text(f.Expect.Text))
	}
	for name, value := range f.Expect.Headers {
		collect(a.Header(name, value))
	}
	if f.Expect.JSON != nil {
		collect(a.JSON(f.Expect.JSON))
	}
	if f.Expect.JSONSubset != nil {
		collect(a.JSONSubset(f.Expect.JSONSubset))
	}
	if f.Expect.Redirect != "" {
		collect(a.Redirect(f.Expect.Redirect))
	}
	if f.Expect.Schema != "" {
		collect(a.JSONSchema(f.Expect.Schema))
	}

	return failures
}
