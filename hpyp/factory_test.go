package hpyp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariant_RoundTrip(t *testing.T) {
	for _, v := range allVariants() {
		parsed, err := ParseVariant(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, parsed)
	}

	var cfgErr *ConfigurationError
	_, err := ParseVariant("exact")
	require.Error(t, err)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestNewFactory_RejectsUnknownVariant(t *testing.T) {
	_, err := NewFactory(Variant(99))
	require.Error(t, err)
}

func TestFactory_DecodePayloadRejectsGarbage(t *testing.T) {
	for _, v := range allVariants() {
		factory, err := NewFactory(v)
		require.NoError(t, err)
		_, err = factory.DecodePayload([]byte("not json"))
		require.Error(t, err, v.String())
		var serErr *SerializationError
		assert.True(t, errors.As(err, &serErr), v.String())
	}
}
