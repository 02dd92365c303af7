package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAddress(t *testing.T) {
	addr, err := NewAddress("Alice.Smith@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "Alice.Smith@example.com", addr.FullAddress())
	assert.Equal(t, "Alice.Smith", addr.LocalPart())
	assert.Equal(t, "example.com", addr.Domain())
}

func TestNewAddressRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "@", "user@", "@domain", "no-at-sign", "a b@example.com", "a@bad_domain..com"} {
		_, err := NewAddress(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestParsePathNullReversePath(t *testing.T) {
	addr, err := ParsePath("<>", true)
	require.NoError(t, err)
	assert.Nil(t, addr)
}

func TestParsePathBrackets(t *testing.T) {
	addr, err := ParsePath("<a@example.com>", true)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", addr.FullAddress())

	_, err = ParsePath("a@example.com", true)
	assert.Error(t, err, "bare path must be rejected when brackets are enforced")

	addr, err = ParsePath("a@example.com", false)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", addr.FullAddress())
}

func TestParsePathStripsSourceRoute(t *testing.T) {
	addr, err := ParsePath("<@relay.example.com:user@example.org>", true)
	require.NoError(t, err)
	assert.Equal(t, "user@example.org", addr.FullAddress())
}
