// Package geo provides the nearestWithinRadius capability over agent
// positions. The in-memory index is last-writer-wins; mild staleness only
// affects ranking, never assignment correctness, so no row-level locking is
// needed. A spatial database extension can replace Index without touching
// callers.
package geo

import (
	"math"
	"sort"
	"sync"
)

const earthRadiusKm = 6371.0

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Neighbor struct {
	ID         string
	DistanceKm float64
}

type Index interface {
	Upsert(id string, p Point)
	Remove(id string)
	NearestWithinRadius(p Point, radiusKm float64) []Neighbor
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

type MemoryIndex struct {
	mu     sync.RWMutex
	points map[string]Point
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[string]Point)}
}

func (m *MemoryIndex) Upsert(id string, p Point) {
	m.mu.Lock()
	m.points[id] = p
	m.mu.Unlock()
}

func (m *MemoryIndex) Remove(id string) {
	m.mu.Lock()
	delete(m.points, id)
	m.mu.Unlock()
}

// NearestWithinRadius returns neighbors ordered ascending by distance.
func (m *MemoryIndex) NearestWithinRadius(p Point, radiusKm float64) []Neighbor {
	m.mu.RLock()
	out := make([]Neighbor, 0, len(m.points))
	for id, q := range m.points {
		if d := HaversineKm(p, q); d <= radiusKm {
			out = append(out, Neighbor{ID: id, DistanceKm: d})
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}
