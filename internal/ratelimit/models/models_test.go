package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyString(t *testing.T) {
	k := NewKey(KeyPrefixIP, "203.0.113.7", ClassLogin, "/auth/login")
	assert.Equal(t, "ip:203.0.113.7:login:/auth/login", k.String())
}

func TestKeysDifferPerRoute(t *testing.T) {
	a := NewKey(KeyPrefixUser, "42", ClassStandard, "/accounts/42")
	b := NewKey(KeyPrefixUser, "42", ClassStandard, "/auth/me")
	assert.NotEqual(t, a.String(), b.String(), "limits are per-endpoint, not global")
}
