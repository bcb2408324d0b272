package testutil

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

// AssertDiffEqual is assert.Equal reporting a cmp.Diff, which reads better for maps.
func AssertDiffEqual(t *testing.T, expected, actual any, msgAndArgs ...any) bool {
	t.Helper()
	diff := cmp.Diff(expected, actual)
	if diff != "" {
		assert.Fail(t, fmt.Sprintf("Not equal (-expected +actual):\n%s", diff), msgAndArgs...)
		return false
	}
	return true
}

func RequireDiffEqual(t *testing.T, expected, actual any, msgAndArgs ...any) {
	t.Helper()
	if AssertDiffEqual(t, expected, actual, msgAndArgs...) {
		return
	}
	t.FailNow()
}
