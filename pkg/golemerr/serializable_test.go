package golemerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializableRoundTrip(t *testing.T) {
	original := UnexpectedOplogEntry("ExportedFunctionCompleted", "Suspend")

	s := ToSerializable(original)
	assert.Equal(t, TypeUnexpectedOplogEntry, s.Type)
	assert.Equal(t, "ExportedFunctionCompleted", s.Expected)
	assert.Equal(t, "Suspend", s.Got)

	reconstructed := FromSerializable(s)
	require.NotNil(t, reconstructed)
	assert.Equal(t, original.Error(), reconstructed.Error())
}

func TestToSerializable_NonGolemError(t *testing.T) {
	s := ToSerializable(errors.New("some plain error"))
	assert.Equal(t, TypeUnknown, s.Type)
	assert.Equal(t, "some plain error", s.Details)
}
