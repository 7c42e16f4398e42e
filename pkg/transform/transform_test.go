// SPDX-License-Identifier: Apache-2.0
package transform

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryHasGzipAndZstd(t *testing.T) {
	r := DefaultRegistry()

	gz, ok := r.Get("gzip")
	require.True(t, ok)
	assert.Equal(t, "gzip", gz.Name())

	zs, ok := r.Get("zstd")
	require.True(t, ok)
	assert.Equal(t, "zstd", zs.Name())
}

func TestEmptyNameIsIdentity(t *testing.T) {
	r := DefaultRegistry()
	algo, ok := r.Get("")
	require.True(t, ok)
	assert.Equal(t, "", algo.Name())

	plain := []byte("some chunk bytes")
	out, err := algo.Apply(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	back, err := algo.Reverse(out)
	require.NoError(t, err)
	assert.Equal(t, plain, back)
}

func TestUnregisteredNameFails(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("gzip")
	assert.False(t, ok)
}

func testRoundTrip(t *testing.T, algo Algorithm, plain []byte) {
	t.Helper()
	transformed, err := algo.Apply(plain)
	require.NoError(t, err)
	if len(plain) > 0 {
		assert.NotEqual(t, plain, transformed)
	}

	recovered, err := algo.Reverse(transformed)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(plain, recovered))
}

func TestGzipRoundTrip(t *testing.T) {
	testRoundTrip(t, Gzip, bytes.Repeat([]byte("snug archive chunk "), 256))
	testRoundTrip(t, Gzip, []byte{})
}

func TestZstdRoundTrip(t *testing.T) {
	testRoundTrip(t, Zstd, bytes.Repeat([]byte("snug archive chunk "), 256))
	testRoundTrip(t, Zstd, []byte{})
}
