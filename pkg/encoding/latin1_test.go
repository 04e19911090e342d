package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatin1ToUTF8(t *testing.T) {
	assert.Equal(t, `graphics\_materials\editor\water_lake`, Latin1ToUTF8([]byte(`graphics\_materials\editor\water_lake`)))
	assert.Equal(t, "eau_défaut", Latin1ToUTF8([]byte("eau_d\xe9faut")))
}

func TestWindows1252ToUTF8(t *testing.T) {
	// 0x80 is the euro sign in cp1252 and a control code in Latin-1.
	assert.Equal(t, "€", Windows1252ToUTF8([]byte{0x80}))
}

func TestUTF8ToLatin1RoundTrip(t *testing.T) {
	in := "réservoir"
	out := UTF8ToLatin1(in)
	assert.Equal(t, []byte("r\xe9servoir"), out)
	assert.Equal(t, in, Latin1ToUTF8(out))
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "eau_défaut", DecodeText([]byte("eau_d\xe9faut")))
	assert.Equal(t, "water_“sea”", DecodeText([]byte("water_\x93sea\x94")))
}

func TestFixedString(t *testing.T) {
	field := UTF8ToFixedString("water_01", 16)
	assert.Len(t, field, 16)
	assert.Equal(t, "water_01", FixedStringToUTF8(field))
	assert.Equal(t, "abc", FixedStringToUTF8([]byte("abc")))
	assert.Equal(t, []byte("ab"), UTF8ToFixedString("abc", 2))
}
