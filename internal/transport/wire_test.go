package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTripWithData(t *testing.T) {
	f := frame{}
	f.set("TYPE", "TEST")
	f.set("ID", "3")
	f.data = []byte("raw output\x00bytes")
	f.hasData = true

	raw := encode(f)
	got := decode(raw)

	typ, ok := got.get("TYPE")
	assert.True(t, ok)
	assert.Equal(t, "TEST", typ)
	id, ok := got.get("ID")
	assert.True(t, ok)
	assert.Equal(t, "3", id)
	assert.True(t, got.hasData)
	assert.Equal(t, []byte("raw output\x00bytes"), got.data)
}

func TestDecodeWithoutDataSection(t *testing.T) {
	raw := []byte("TYPE STOP\n")
	got := decode(raw)
	typ, ok := got.get("TYPE")
	assert.True(t, ok)
	assert.Equal(t, "STOP", typ)
	assert.False(t, got.hasData)
}

func TestDecodeIgnoresBlankLines(t *testing.T) {
	raw := []byte("TYPE CLOSE\n\n")
	got := decode(raw)
	typ, ok := got.get("TYPE")
	assert.True(t, ok)
	assert.Equal(t, "CLOSE", typ)
}
