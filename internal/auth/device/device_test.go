package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestComputeFingerprintStable(t *testing.T) {
	s := NewService(true)
	first := s.ComputeFingerprint(chromeUA)
	second := s.ComputeFingerprint(chromeUA)

	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestComputeFingerprintIgnoresPatchVersion(t *testing.T) {
	s := NewService(true)
	a := s.ComputeFingerprint("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.1.5 Safari/537.36")
	assert.Equal(t, s.ComputeFingerprint(chromeUA), a, "only the major version feeds the fingerprint")
}

func TestComputeFingerprintDisabled(t *testing.T) {
	s := NewService(false)
	assert.Empty(t, s.ComputeFingerprint(chromeUA))
}

func TestComputeFingerprintEmptyUA(t *testing.T) {
	s := NewService(true)
	assert.Empty(t, s.ComputeFingerprint(""))
}

func TestDifferentBrowsersDiffer(t *testing.T) {
	s := NewService(true)
	firefox := s.ComputeFingerprint("Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
	assert.NotEqual(t, s.ComputeFingerprint(chromeUA), firefox)
}
