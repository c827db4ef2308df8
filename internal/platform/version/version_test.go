package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.NotEmpty(t, info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestUserAgent(t *testing.T) {
	origVersion, origCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = origVersion, origCommit })

	Version, Commit = "dev", "unknown"
	assert.Equal(t, "spot95/dev", UserAgent())

	Version, Commit = "1.4.0", "3f2c1ab9d0e4"
	assert.Equal(t, "spot95/1.4.0 (3f2c1ab)", UserAgent())
}
