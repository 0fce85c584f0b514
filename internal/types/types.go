// README: Common value objects shared across modules.
package types

// ID is an opaque identifier. Orders use UUIDs, delivery workers use their
// phone number as a natural key.
type ID string

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point carries no coordinates. The null island
// origin is treated as "unset" since no serviced area sits there.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}
