package storage

import (
	"math"
	"sort"

	"github.com/naimul214/busstatus/model"
)

const EarthRadiusMeters = 6371e3

// Great-circle distance in meters between two points given in
// degrees.
func HaversineDistance(aLat, aLon, bLat, bLon float64) float64 {
	aLatRad := aLat * math.Pi / 180
	bLatRad := bLat * math.Pi / 180
	deltaLat := (bLat - aLat) * math.Pi / 180
	deltaLon := (bLon - aLon) * math.Pi / 180

	a := math.Pow(math.Sin(deltaLat/2), 2) + math.Cos(aLatRad)*math.Cos(bLatRad)*math.Pow(math.Sin(deltaLon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

func sortByDistance(stops []*model.Stop, lat float64, lng float64, limit int) []model.Stop {
	sort.SliceStable(stops, func(i, j int) bool {
		di := HaversineDistance(lat, lng, stops[i].Lat, stops[i].Lon)
		dj := HaversineDistance(lat, lng, stops[j].Lat, stops[j].Lon)
		return di < dj
	})

	if limit > 0 && len(stops) > limit {
		stops = stops[:limit]
	}

	res := []model.Stop{}
	for _, s := range stops {
		res = append(res, *s)
	}

	return res
}
