package testutil

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// AssertEqual fails the test with a readable diff if expected and actual are
// not equal. Options are passed on to go-cmp, e.g. to ignore timestamps.
func AssertEqual(t testing.TB, expected, actual interface{}, opts ...cmp.Option) {
	t.Helper()
	if diff := cmp.Diff(expected, actual, opts...); diff != "" {
		FatalMsgf(t, "values differ (-expected +actual):\n%s", diff)
	}
}

// AssertMsg asserts that the given condition holds, failing with the given
// message if it doesn't
func AssertMsg(t testing.TB, cond bool, message string) {
	t.Helper()
	if !cond {
		FailMsgf(t, "Assertion error: %s", message)
	}
}

// AssertMsgf assert that the given condition holds, failing with the given
// format string and args if it doesn't
func AssertMsgf(t testing.TB, cond bool, format string, args ...interface{}) {
	t.Helper()
	AssertMsg(t, cond, fmt.Sprintf(format, args...))
}
