// Package shared provides common utilities and test helpers used across the ehrqa codebase.
// It serves as a central location for shared functionality that doesn't belong to any
// specific domain or architectural layer.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - A buffered slog handler for asserting on structured logs
//   - CSV fixtures shaped like the EHR extracts the QA pipeline checks
//   - Helpers for writing fixtures into a test's temporary directory
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    path := testutil.WriteFixture(t, t.TempDir(), "ehr.csv", testutil.EHRSampleCSV)
//	    // ...
//	    testutil.AssertNoErrors(t, logs)
//	}
//
// testutil only depends on the standard library so that every internal package,
// including the lowest layers, can use it from its tests.
package shared
