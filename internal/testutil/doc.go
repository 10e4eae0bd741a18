// Package testutil holds helpers shared by the test suites: temp-dir
// fixtures, a deterministic trace ID source and an event log for ordering
// assertions in concurrency tests.
package testutil
