package gpkg

import (
	"encoding/binary"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// GeoPackage binary header: magic "GP", version, flags, int32 srs_id,
// optional envelope, then standard WKB. Flag bit 0 is header byte order
// (1 = little endian), bits 1-3 the envelope indicator, bit 4 the empty
// geometry flag.
const (
	gpbMagic1 = 0x47
	gpbMagic2 = 0x50
)

// envelope indicator → envelope byte length
var gpbEnvelopeSizes = [...]int{0, 32, 48, 48, 64}

// EncodeGPB encodes a geometry as a GeoPackage binary blob with a 2D
// envelope, little-endian throughout.
func EncodeGPB(g geom.T, srid int32) ([]byte, error) {
	wkbBytes, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: marshal wkb")
	}

	buf := make([]byte, 0, 8+32+len(wkbBytes))
	header := [8]byte{gpbMagic1, gpbMagic2, 0, 0x01 | 1<<1}
	binary.LittleEndian.PutUint32(header[4:], uint32(srid))
	buf = append(buf, header[:]...)

	bounds := g.Bounds()
	for _, v := range [4]float64{bounds.Min(0), bounds.Max(0), bounds.Min(1), bounds.Max(1)} {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}

	return append(buf, wkbBytes...), nil
}

// DecodeGPB decodes a GeoPackage binary blob, returning the geometry and
// the declared SRID. An empty-flagged blob with no WKB body yields a nil
// geometry.
func DecodeGPB(data []byte) (geom.T, int32, error) {
	if len(data) < 8 {
		return nil, 0, eris.Errorf("gpkg: geometry blob too short (%d bytes)", len(data))
	}
	if data[0] != gpbMagic1 || data[1] != gpbMagic2 {
		return nil, 0, eris.Errorf("gpkg: bad geometry magic 0x%02x%02x", data[0], data[1])
	}
	if version := data[2]; version != 0 {
		return nil, 0, eris.Errorf("gpkg: unsupported geometry header version %d", version)
	}

	flags := data[3]
	var bo binary.ByteOrder = binary.BigEndian
	if flags&0x01 != 0 {
		bo = binary.LittleEndian
	}

	envInd := int(flags>>1) & 0x07
	if envInd >= len(gpbEnvelopeSizes) {
		return nil, 0, eris.Errorf("gpkg: invalid envelope indicator %d", envInd)
	}

	srid := int32(bo.Uint32(data[4:8]))
	offset := 8 + gpbEnvelopeSizes[envInd]
	if len(data) < offset {
		return nil, 0, eris.Errorf("gpkg: geometry blob truncated in envelope")
	}

	if flags&(1<<4) != 0 && len(data) == offset {
		return nil, srid, nil
	}

	g, err := wkb.Unmarshal(data[offset:])
	if err != nil {
		return nil, 0, eris.Wrap(err, "gpkg: unmarshal wkb")
	}
	return g, srid, nil
}
