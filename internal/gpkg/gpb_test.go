package gpkg

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

func TestEncodeDecodeGPB_Point(t *testing.T) {
	pt := geom.NewPointFlat(geom.XY, []float64{12.4964, 41.9028}).SetSRID(SRIDWGS84)

	blob, err := EncodeGPB(pt, SRIDWGS84)
	require.NoError(t, err)

	assert.Equal(t, byte(0x47), blob[0])
	assert.Equal(t, byte(0x50), blob[1])
	assert.Equal(t, byte(0), blob[2], "header version")
	assert.Equal(t, byte(0x03), blob[3], "little-endian with 2D envelope")

	decoded, srid, err := DecodeGPB(blob)
	require.NoError(t, err)
	assert.Equal(t, int32(SRIDWGS84), srid)

	p, ok := decoded.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, 12.4964, p.X(), 1e-12)
	assert.InDelta(t, 41.9028, p.Y(), 1e-12)
}

func TestEncodeDecodeGPB_MultiPolygon(t *testing.T) {
	poly := geom.NewPolygon(geom.XY)
	require.NoError(t, poly.Push(geom.NewLinearRingFlat(geom.XY, []float64{0, 0, 4, 0, 4, 4, 0, 4, 0, 0})))
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(poly))

	blob, err := EncodeGPB(mp, SRIDWGS84)
	require.NoError(t, err)

	decoded, _, err := DecodeGPB(blob)
	require.NoError(t, err)

	out, ok := decoded.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, mp.FlatCoords(), out.FlatCoords())
}

func TestDecodeGPB_BigEndianHeader(t *testing.T) {
	pt := geom.NewPointFlat(geom.XY, []float64{2.0, 3.0})
	body, err := wkb.Marshal(pt, wkb.NDR)
	require.NoError(t, err)

	blob := []byte{0x47, 0x50, 0, 0x00, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(blob[4:], uint32(SRIDWGS84))
	blob = append(blob, body...)

	decoded, srid, err := DecodeGPB(blob)
	require.NoError(t, err)
	assert.Equal(t, int32(SRIDWGS84), srid)
	p, ok := decoded.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, 2.0, p.X())
}

func TestDecodeGPB_EmptyGeometryFlag(t *testing.T) {
	blob := []byte{0x47, 0x50, 0, 0x01 | 1<<4, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(blob[4:], uint32(SRIDWGS84))

	decoded, srid, err := DecodeGPB(blob)
	require.NoError(t, err)
	assert.Nil(t, decoded)
	assert.Equal(t, int32(SRIDWGS84), srid)
}

func TestDecodeGPB_Malformed(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
	}{
		{"too short", []byte{0x47, 0x50}},
		{"bad magic", []byte{0x58, 0x58, 0, 0, 0, 0, 0, 0}},
		{"bad version", []byte{0x47, 0x50, 9, 0, 0, 0, 0, 0}},
		{"truncated envelope", []byte{0x47, 0x50, 0, 0x03, 0, 0, 0, 0, 1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeGPB(tt.blob)
			assert.Error(t, err)
		})
	}
}
