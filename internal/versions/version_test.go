package versions

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfoWithValues(t *testing.T) {
	t.Parallel()

	info := getVersionInfoWithValues("1.2.3", "abcdef1234567890", "2026-03-01T12:00:00Z")
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abcdef1234567890", info.Commit)
	assert.Equal(t, "2026-03-01 12:00:00 UTC", info.BuildDate)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Contains(t, info.Platform, runtime.GOOS)
}

func TestGetVersionInfoDevBuild(t *testing.T) {
	t.Parallel()

	info := getVersionInfoWithValues("dev", "abcdef1234567890", unknownStr)
	assert.Equal(t, "build-abcdef12", info.Version)
}
