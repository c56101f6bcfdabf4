package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStrings(t *testing.T) {
	assert.Equal(t, "0.3.0", Version())

	old := GitCommit
	t.Cleanup(func() { GitCommit = old })

	GitCommit = ""
	assert.Equal(t, "0.3.0", GetVersionString())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, "0.3.0 (0123456)", GetVersionString())

	full := GetFullVersionString()
	assert.Contains(t, full, "nftminter v0.3.0")
	assert.Contains(t, full, "commit: 0123456")
	assert.Contains(t, full, runtime.Version())
}
