// Package domain contains core domain types for the grid login service.
package domain

import (
	"fmt"
	"net"
	"strconv"
)

// RegionCellSize is the edge length of one grid cell in meters.
const RegionCellSize = 256

// Vector3 is a position or direction inside a region, in meters.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// String renders the vector in the wire format viewers expect.
func (v Vector3) String() string {
	return fmt.Sprintf("[r%g,r%g,r%g]", v.X, v.Y, v.Z)
}

// DefaultPosition is where an agent materializes when no stored
// position applies (region center, ground level).
var DefaultPosition = Vector3{X: 128, Y: 128, Z: 0}

// DefaultLookAt is the fallback look-direction for a new session.
var DefaultLookAt = Vector3{X: 0, Y: 1, Z: 0}

// RegionDescriptor describes a simulation region as known to the grid
// registry. The login service reads descriptors and may request the
// Safe flag be cleared; it never owns or mutates them directly.
type RegionDescriptor struct {
	ID        string `json:"region_id"`
	ScopeID   string `json:"scope_id"`
	Name      string `json:"name"`
	CoordX    int    `json:"coord_x"` // grid cells, not meters
	CoordY    int    `json:"coord_y"`
	HostName  string `json:"host_name"`
	Port      int    `json:"port"`
	ServerURI string `json:"server_uri,omitempty"`
	Safe      bool   `json:"safe"`
}

// Endpoint returns the host:port the region's simulator listens on.
func (r *RegionDescriptor) Endpoint() string {
	return net.JoinHostPort(r.HostName, strconv.Itoa(r.Port))
}

// BaseURL returns the HTTP base URL for direct simulator calls,
// preferring an explicit ServerURI when the registry carries one.
func (r *RegionDescriptor) BaseURL() string {
	if r.ServerURI != "" {
		return r.ServerURI
	}
	return "http://" + r.Endpoint()
}

// Gatekeeper identifies the remote endpoint that authorizes federated
// sessions into an independently-operated grid.
type Gatekeeper struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	RegionName string `json:"region_name,omitempty"`
}

// URL returns the gatekeeper's HTTP base URL.
func (g *Gatekeeper) URL() string {
	return "http://" + net.JoinHostPort(g.Host, strconv.Itoa(g.Port))
}
