package dicomio_test

import (
	"testing"

	"github.com/nmargas/dicomstream/dicomio"
	"github.com/stretchr/testify/require"
)

func TestParseSpecificCharacterSetSingle(t *testing.T) {
	cs, err := dicomio.ParseSpecificCharacterSet([]string{"ISO_IR 100"})
	require.NoError(t, err)
	require.NotNil(t, cs.Alphabetic)
	require.Same(t, cs.Alphabetic, cs.Ideographic)
	require.Same(t, cs.Ideographic, cs.Phonetic)
}

func TestParseSpecificCharacterSetDefault(t *testing.T) {
	cs, err := dicomio.ParseSpecificCharacterSet(nil)
	require.NoError(t, err)
	require.Nil(t, cs.Alphabetic)
}

func TestParseSpecificCharacterSetJapaneseTriple(t *testing.T) {
	cs, err := dicomio.ParseSpecificCharacterSet([]string{"ISO 2022 IR 6", "ISO 2022 IR 87", "ISO 2022 IR 87"})
	require.NoError(t, err)
	require.NotNil(t, cs.Alphabetic)
	require.NotNil(t, cs.Ideographic)
	require.NotNil(t, cs.Phonetic)
}

func TestParseSpecificCharacterSetUnknown(t *testing.T) {
	_, err := dicomio.ParseSpecificCharacterSet([]string{"NOT_A_REAL_CHARSET"})
	require.Error(t, err)
}

func TestParseSpecificCharacterSetForEncodingRoundTrips(t *testing.T) {
	decoders, err := dicomio.ParseSpecificCharacterSet([]string{"ISO_IR 100"})
	require.NoError(t, err)
	encoders, err := dicomio.ParseSpecificCharacterSetForEncoding([]string{"ISO_IR 100"})
	require.NoError(t, err)

	original := "Héllo"
	encoded, err := encoders.Ideographic.String(original)
	require.NoError(t, err)
	decoded, err := decoders.Ideographic.String(encoded)
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}
