package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// GoldenHelper checks generated files such as snapshots and reports against
// copies stored under dir. Run the tests with UPDATE_GOLDEN=true to refresh them.
type GoldenHelper struct {
	t          *testing.T
	dir        string
	updateMode bool
}

func NewGoldenHelper(t *testing.T, dir string) *GoldenHelper {
	t.Helper()
	return &GoldenHelper{t: t, dir: dir, updateMode: os.Getenv("UPDATE_GOLDEN") == "true"}
}

// AssertGolden fails the test when actual differs from the golden file name.
// Line endings are normalized so checkouts with CRLF still compare equal.
func (g *GoldenHelper) AssertGolden(name string, actual []byte) {
	g.t.Helper()

	path := filepath.Join(g.dir, name)
	if g.updateMode {
		require.NoError(g.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(g.t, os.WriteFile(path, actual, 0o644))
		g.t.Logf("updated %s", path)
		return
	}

	want, err := os.ReadFile(path)
	require.NoError(g.t, err, "missing golden file, rerun with UPDATE_GOLDEN=true")
	require.Equal(g.t, unixLines(string(want)), unixLines(string(actual)), "output differs from %s", path)
}

func (g *GoldenHelper) AssertGoldenString(name, actual string) {
	g.t.Helper()
	g.AssertGolden(name, []byte(actual))
}

func unixLines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
