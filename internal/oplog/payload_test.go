package oplog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInlinePayload_Inline(t *testing.T) {
	data := []byte("small payload")
	p := NewInlinePayload(data, 1024)

	assert.True(t, p.IsInline())
	assert.Equal(t, data, p.Inline)
	assert.NotEmpty(t, p.MD5Hash)
}

func TestNewInlinePayload_Externalized(t *testing.T) {
	data := make([]byte, 2048)
	p := NewInlinePayload(data, 1024)

	assert.False(t, p.IsInline())
	assert.Equal(t, p.MD5Hash, p.PayloadID)
}

func TestRegion_Overlaps(t *testing.T) {
	a := Region{Start: 10, End: 20}

	assert.True(t, a.Overlaps(Region{Start: 15, End: 25}))
	assert.True(t, a.Overlaps(Region{Start: 5, End: 15}))
	assert.False(t, a.Overlaps(Region{Start: 20, End: 30}))
	assert.False(t, a.Overlaps(Region{Start: 0, End: 10}))
}
