package treatment

import (
	"encoding/binary"
	"math"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/koustreak/relarchive/internal/errs"
)

const (
	wkbPointLen  = 21 // order(1) + type(4) + x(8) + y(8)
	sridPointLen = 25 // srid(4) + wkb point

	wkbBigEndian    = 0
	wkbLittleEndian = 1

	wkbTypePoint = 1
)

// Point is a decoded point geometry. X is the longitude and Y the latitude.
type Point struct {
	Order uint8   `json:"order" yaml:"order"`
	Type  uint32  `json:"type" yaml:"type"`
	Lat   float64 `json:"lat" yaml:"lat"`
	Lon   float64 `json:"lon" yaml:"lon"`
}

// DecodePoint decodes a point column. It accepts the MySQL internal
// geometry format (4-byte SRID followed by WKB), bare WKB, and the
// pgtype.Point values pgx returns for PostgreSQL point columns.
//
// An empty point (both coordinates NaN) decodes to nil. Any other
// non-finite coordinate is rejected, since it has no JSON encoding.
func DecodePoint(raw any) (any, error) {
	switch v := raw.(type) {
	case []byte:
		return checkPoint(parsePoint(v))
	case string:
		return checkPoint(parsePoint([]byte(v)))
	case pgtype.Point:
		return fromPg(v)
	case *pgtype.Point:
		if v == nil {
			return nil, nil
		}
		return fromPg(*v)
	default:
		return nil, errs.Newf(errs.ErrKindUnsupportedType, "point: unexpected value of type %T", raw)
	}
}

func fromPg(p pgtype.Point) (any, error) {
	if !p.Valid {
		return nil, nil
	}
	return checkPoint(Point{Order: wkbLittleEndian, Type: wkbTypePoint, Lat: p.P.Y, Lon: p.P.X}, nil)
}

func checkPoint(p Point, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if math.IsNaN(p.Lat) && math.IsNaN(p.Lon) {
		return nil, nil
	}
	if !finite(p.Lat) || !finite(p.Lon) {
		return nil, errs.Newf(errs.ErrKindUnsupportedType, "point: non-finite coordinates (%v, %v)", p.Lon, p.Lat)
	}
	return p, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func parsePoint(b []byte) (Point, error) {
	switch len(b) {
	case sridPointLen:
		b = b[4:]
	case wkbPointLen:
	default:
		return Point{}, errs.Newf(errs.ErrKindUnsupportedType, "point: expected %d or %d bytes, got %d", wkbPointLen, sridPointLen, len(b))
	}

	var order binary.ByteOrder
	switch b[0] {
	case wkbLittleEndian:
		order = binary.LittleEndian
	case wkbBigEndian:
		order = binary.BigEndian
	default:
		return Point{}, errs.Newf(errs.ErrKindUnsupportedType, "point: invalid byte order marker %d", b[0])
	}

	typ := order.Uint32(b[1:5])
	if typ != wkbTypePoint {
		return Point{}, errs.Newf(errs.ErrKindUnsupportedType, "point: geometry type %d is not a point", typ)
	}

	return Point{
		Order: b[0],
		Type:  typ,
		Lon:   math.Float64frombits(order.Uint64(b[5:13])),
		Lat:   math.Float64frombits(order.Uint64(b[13:21])),
	}, nil
}

// EncodePoint returns p in the MySQL internal format with the given SRID.
// The byte order follows p.Order.
func EncodePoint(p Point, srid uint32) []byte {
	var order binary.ByteOrder = binary.LittleEndian
	if p.Order == wkbBigEndian {
		order = binary.BigEndian
	}

	b := make([]byte, sridPointLen)
	binary.LittleEndian.PutUint32(b[0:4], srid)
	b[4] = p.Order
	order.PutUint32(b[5:9], wkbTypePoint)
	order.PutUint64(b[9:17], math.Float64bits(p.Lon))
	order.PutUint64(b[17:25], math.Float64bits(p.Lat))
	return b
}
