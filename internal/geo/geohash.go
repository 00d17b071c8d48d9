package geo

import "strings"

// CoarsePrecision is the geohash precision used for result bucketing.
// Six characters is roughly ±0.61 km, enough to group nearby listings on a
// map without exposing an exact address.
const CoarsePrecision = 6

// base32 is the geohash base32 alphabet (excludes 'a', 'i', 'l', 'o').
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// EncodeGeohash encodes a coordinate into a geohash string with the given
// precision using the standard interleaved base32 algorithm.
func EncodeGeohash(c Coordinates, precision int) string {
	if precision < 1 {
		precision = CoarsePrecision
	}

	latRange := [2]float64{-90.0, 90.0}
	lngRange := [2]float64{-180.0, 180.0}

	var geohash strings.Builder
	geohash.Grow(precision)

	bits := 0
	var ch uint

	even := true
	for geohash.Len() < precision {
		if even {
			mid := (lngRange[0] + lngRange[1]) / 2
			if c.Lng > mid {
				ch |= (1 << (4 - bits))
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if c.Lat > mid {
				ch |= (1 << (4 - bits))
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		even = !even
		bits++

		if bits == 5 {
			geohash.WriteByte(base32[ch])
			bits = 0
			ch = 0
		}
	}

	return geohash.String()
}

// CoarseGeohash encodes a coordinate at CoarsePrecision.
func CoarseGeohash(c Coordinates) string {
	return EncodeGeohash(c, CoarsePrecision)
}
