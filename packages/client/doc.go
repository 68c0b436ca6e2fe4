// Package client provides the HTTP test client: a fluent request builder
// finalized by End, dispatching either over the network or in-process
// against an http.Handler.
//
// A builder accumulates method, URL, headers, query, body, cookies,
// multipart fields, session seeds, and authentication intent, then executes
// exactly once:
//
//	resp, err := c.Get("/posts").
//		Accept("json").
//		LoginVia(user, "session").
//		End()
//
// Cookie encryption, session seeding, and login simulation delegate to the
// crypto, session, and auth packages, injected via client options.
package client
