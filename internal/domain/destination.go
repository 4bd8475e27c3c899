package domain

// Where tags describe which rule produced a destination resolution.
const (
	WhereHome = "home"
	WhereLast = "last"
	WhereSafe = "safe"
	WhereURL  = "url"
)

// DestinationResolution is the resolver's output: the chosen region,
// the remote gatekeeper when the destination is on a foreign grid,
// and the starting position/orientation. A resolution always carries
// a non-nil Region and a valid Where tag; "nothing found" is an error
// from the resolver, never an empty resolution.
type DestinationResolution struct {
	Region     *RegionDescriptor
	Gatekeeper *Gatekeeper
	Where      string
	Position   Vector3
	LookAt     Vector3
}

// Foreign reports whether the destination lives on another grid.
func (d *DestinationResolution) Foreign() bool {
	return d.Gatekeeper != nil
}
