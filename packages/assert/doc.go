// Package assert provides response assertions for the HTTP test client.
//
// Supported checks:
//   - Status code, raw body text, headers (case-insensitive), redirects
//   - JSON deep equality and recursive subset matching
//   - Validation-error entry matching by subset rule
//   - Encrypted and plain cookie value/existence checks
//   - Single-value body lookups via gjson paths
//   - JSON Schema validation
//
// Each check returns nil on pass, or an error carrying the assertion name,
// expected, and actual values. Bind a *testing.T with WithReporter to have
// failures reported to the test runner automatically.
package assert
