package mysql

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

const (
	earthRadiusKm = 6371.0
	kmPerDegree   = 111.32
)

// coverCells returns geohash prefixes whose union contains every point within
// radiusKm of (lat, lng): the cell holding the centre plus its eight
// neighbours, at the finest precision whose cells are at least radiusKm on
// each side. Nil means the radius is too large for a prefix prefilter.
func coverCells(lat, lng, radiusKm float64) []string {
	for chars := uint(12); chars >= 1; chars-- {
		hash := geohash.EncodeWithPrecision(lat, lng, chars)
		box := geohash.BoundingBox(hash)
		heightKm := (box.MaxLat - box.MinLat) * kmPerDegree
		poleward := math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat))
		widthKm := (box.MaxLng - box.MinLng) * kmPerDegree * math.Cos(poleward*math.Pi/180)
		if math.Min(heightKm, widthKm) < radiusKm {
			continue
		}
		cells := append([]string{hash}, geohash.Neighbors(hash)...)
		return dedupe(cells)
	}
	return nil
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := ss[:0]
	for _, s := range ss {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// haversineKm is the great-circle distance between two points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
