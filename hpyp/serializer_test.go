package hpyp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A trained model saved and reloaded into a fresh manager must give
// identical predictions for every context.
func TestSerializer_RoundTrip(t *testing.T) {
	seq := []int{0, 1, 2, 1, 2, 0, 1, 2}
	for _, v := range allVariants() {
		t.Run(v.String(), func(t *testing.T) {
			model, nm, factory := newTestModel(t, v, seq, 3, 3, 17)
			for sweep := 0; sweep < 5; sweep++ {
				require.NoError(t, model.RunGibbsSampler(false))
			}

			var buf bytes.Buffer
			require.NoError(t, SaveTo(&buf, nm, factory))

			loaded, nm2, factory2 := newTestModel(t, v, seq, 3, 3, 17)
			require.NoError(t, LoadFrom(bytes.NewReader(buf.Bytes()), nm2, factory2))
			assert.Equal(t, nm.NumNodes(), nm2.NumNodes())

			for end := 0; end <= len(seq); end++ {
				want, err := model.PredictiveDistribution(0, end)
				require.NoError(t, err)
				got, err := loaded.PredictiveDistribution(0, end)
				require.NoError(t, err)
				assert.Equal(t, want, got, "context end %d", end)
			}
		})
	}
}

func TestSerializer_FileRoundTrip(t *testing.T) {
	seq := []int{0, 1, 0, 1, 1, 0}
	model, nm, factory := newTestModel(t, VariantFull, seq, 2, 2, 3)
	require.NoError(t, model.RunGibbsSampler(false))

	path := filepath.Join(t.TempDir(), "model.plmp")
	s := NewSerializer(path)
	require.NoError(t, s.Save(nm, factory))

	loaded, nm2, factory2 := newTestModel(t, VariantFull, seq, 2, 2, 3)
	require.NoError(t, s.Load(nm2, factory2))

	want, err := model.PredictiveDistribution(0, len(seq))
	require.NoError(t, err)
	got, err := loaded.PredictiveDistribution(0, len(seq))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// Loading a file written by a different variant must fail before touching
// the manager.
func TestSerializer_VariantMismatch(t *testing.T) {
	seq := []int{0, 1, 0}
	model, nm, factory := newTestModel(t, VariantFull, seq, 2, 2, 1)
	require.NoError(t, model.RunGibbsSampler(false))

	var buf bytes.Buffer
	require.NoError(t, SaveTo(&buf, nm, factory))

	other, nm2, factory2 := newTestModel(t, VariantHistogram, seq, 2, 2, 1)
	require.NoError(t, other.RunGibbsSampler(false))
	nodesBefore := nm2.NumNodes()

	err := LoadFrom(bytes.NewReader(buf.Bytes()), nm2, factory2)
	require.Error(t, err)
	var serErr *SerializationError
	assert.True(t, errors.As(err, &serErr))
	assert.Equal(t, nodesBefore, nm2.NumNodes())
}

func TestSerializer_ConfigMismatch(t *testing.T) {
	seq := []int{0, 1, 0}
	model, nm, factory := newTestModel(t, VariantFull, seq, 2, 2, 1)
	require.NoError(t, model.RunGibbsSampler(false))
	var buf bytes.Buffer
	require.NoError(t, SaveTo(&buf, nm, factory))

	var serErr *SerializationError

	// numTypes mismatch
	_, nm2, factory2 := newTestModel(t, VariantFull, seq, 3, 2, 1)
	err := LoadFrom(bytes.NewReader(buf.Bytes()), nm2, factory2)
	require.Error(t, err)
	assert.True(t, errors.As(err, &serErr))

	// maxDepth mismatch
	_, nm3, factory3 := newTestModel(t, VariantFull, seq, 2, 5, 1)
	err = LoadFrom(bytes.NewReader(buf.Bytes()), nm3, factory3)
	require.Error(t, err)
	assert.True(t, errors.As(err, &serErr))
}

func TestSerializer_CorruptInput(t *testing.T) {
	seq := []int{0, 1, 0, 1}
	model, nm, factory := newTestModel(t, VariantFull, seq, 2, 2, 1)
	require.NoError(t, model.RunGibbsSampler(false))
	var buf bytes.Buffer
	require.NoError(t, SaveTo(&buf, nm, factory))

	var serErr *SerializationError

	// bad magic
	bad := append([]byte("XXXX"), buf.Bytes()[4:]...)
	_, nm2, factory2 := newTestModel(t, VariantFull, seq, 2, 2, 1)
	err := LoadFrom(bytes.NewReader(bad), nm2, factory2)
	require.Error(t, err)
	assert.True(t, errors.As(err, &serErr))

	// truncated payload
	trunc := buf.Bytes()[:buf.Len()-5]
	nodesBefore := nm2.NumNodes()
	err = LoadFrom(bytes.NewReader(trunc), nm2, factory2)
	require.Error(t, err)
	assert.True(t, errors.As(err, &serErr))
	assert.Equal(t, nodesBefore, nm2.NumNodes())

	// empty input
	err = LoadFrom(bytes.NewReader(nil), nm2, factory2)
	require.Error(t, err)
}

// A corrupt length field must fail on read rather than drive a giant
// allocation.
func TestSerializer_OversizedPayloadLength(t *testing.T) {
	seq := []int{0, 1, 0}
	model, nm, factory := newTestModel(t, VariantFull, seq, 2, 2, 1)
	require.NoError(t, model.RunGibbsSampler(false))
	var buf bytes.Buffer
	require.NoError(t, SaveTo(&buf, nm, factory))

	// 19 header bytes, then (depth, symbol, length) for the root record;
	// blow up the length field and drop the rest of the stream
	data := append([]byte(nil), buf.Bytes()[:31]...)
	for i := 27; i < 31; i++ {
		data[i] = 0xFF
	}

	_, nm2, factory2 := newTestModel(t, VariantFull, seq, 2, 2, 1)
	err := LoadFrom(bytes.NewReader(data), nm2, factory2)
	require.Error(t, err)
	var serErr *SerializationError
	assert.True(t, errors.As(err, &serErr))
	assert.Equal(t, 1, nm2.NumNodes())
}

// Two records claiming the same edge under one parent must be rejected, not
// silently collapsed into an orphaned node.
func TestSerializer_DuplicateSiblingEdge(t *testing.T) {
	factory, err := NewFactory(VariantFull)
	require.NoError(t, err)
	payload, err := NewFullRestaurant().Encode()
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.WriteString("PLMP")
	header := []interface{}{uint16(1), uint8(VariantFull), uint32(2), uint32(2), uint32(3)}
	for _, v := range header {
		require.NoError(t, binary.Write(&buf, binary.BigEndian, v))
	}
	writeNode := func(depth, symbol uint32) {
		for _, v := range []interface{}{depth, symbol, uint32(len(payload))} {
			require.NoError(t, binary.Write(&buf, binary.BigEndian, v))
		}
		buf.Write(payload)
	}
	writeNode(0, rootSymbol)
	writeNode(1, 0)
	writeNode(1, 0)

	nm, err := NewNodeManager(factory, 2, 2)
	require.NoError(t, err)
	err = LoadFrom(bytes.NewReader(buf.Bytes()), nm, factory)
	require.Error(t, err)
	var serErr *SerializationError
	assert.True(t, errors.As(err, &serErr))
	assert.Equal(t, 1, nm.NumNodes())
}

func TestSerializer_MissingFile(t *testing.T) {
	_, nm, factory := newTestModel(t, VariantFull, nil, 2, 2, 1)
	err := NewSerializer(filepath.Join(t.TempDir(), "nope.plmp")).Load(nm, factory)
	require.Error(t, err)
	var serErr *SerializationError
	assert.True(t, errors.As(err, &serErr))
}
