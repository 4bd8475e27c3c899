// Package startloc parses the start-location token a client supplies
// at login into a structured request. The grammar is:
//
//	location  = "home" | "last" | uri
//	uri       = "uri:" region "&" coord "&" coord "&" coord
//	region    = name [ "@" host [ ":" port ] ]
//	name      = any run of characters excluding "&" and "@"
//	coord     = unsigned decimal integer
//
// Malformed coordinates and ports are parse failures, never silent
// zeros.
package startloc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalid is wrapped by every parse failure.
var ErrInvalid = errors.New("invalid start location")

// Kind discriminates the three start-location variants.
type Kind int

const (
	// Home requests the user's configured home location.
	Home Kind = iota
	// Last requests the location recorded at the end of the previous session.
	Last
	// Explicit requests a named region and position, possibly on a
	// foreign grid.
	Explicit
)

// Location is a parsed start-location token.
type Location struct {
	Kind       Kind
	RegionName string
	Host       string // empty for local regions
	Port       int    // 0 when the address omits a port
	X, Y, Z    int
}

// Foreign reports whether the location addresses another grid.
func (l Location) Foreign() bool {
	return l.Host != ""
}

const uriPrefix = "uri:"

// Parse turns a raw start-location token into a Location.
func Parse(token string) (Location, error) {
	t := strings.TrimSpace(token)
	switch strings.ToLower(t) {
	case "home":
		return Location{Kind: Home}, nil
	case "last":
		return Location{Kind: Last}, nil
	}

	if len(t) < len(uriPrefix) || !strings.EqualFold(t[:len(uriPrefix)], uriPrefix) {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalid, token)
	}

	s := scanner{input: t[len(uriPrefix):]}
	loc, err := s.parseURI()
	if err != nil {
		return Location{}, fmt.Errorf("%w: %q: %v", ErrInvalid, token, err)
	}
	return loc, nil
}

// scanner walks the text after the "uri:" prefix.
type scanner struct {
	input string
	pos   int
}

func (s *scanner) parseURI() (Location, error) {
	loc := Location{Kind: Explicit}

	region, err := s.readField()
	if err != nil {
		return loc, err
	}
	if err := s.parseRegion(region, &loc); err != nil {
		return loc, err
	}

	coords := [3]*int{&loc.X, &loc.Y, &loc.Z}
	for i, out := range coords {
		field, err := s.readField()
		if err != nil {
			return loc, fmt.Errorf("coordinate %d: %w", i+1, err)
		}
		n, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return loc, fmt.Errorf("coordinate %d %q: not an unsigned integer", i+1, field)
		}
		*out = int(n)
	}

	if s.pos != len(s.input) {
		return loc, fmt.Errorf("trailing input after coordinates: %q", s.input[s.pos:])
	}
	return loc, nil
}

// readField consumes characters up to the next '&' separator or the
// end of input. The separator itself is consumed.
func (s *scanner) readField() (string, error) {
	if s.pos > len(s.input) {
		return "", errors.New("unexpected end of input")
	}
	rest := s.input[s.pos:]
	if i := strings.IndexByte(rest, '&'); i >= 0 {
		s.pos += i + 1
		return rest[:i], nil
	}
	s.pos = len(s.input)
	if rest == "" {
		return "", errors.New("missing field")
	}
	return rest, nil
}

// parseRegion splits "name@host[:port]" cross-grid addresses; a region
// without '@' is a local region name.
func (s *scanner) parseRegion(region string, loc *Location) error {
	at := strings.LastIndexByte(region, '@')
	if at < 0 {
		loc.RegionName = region
		return nil
	}

	loc.RegionName = region[:at]
	address := region[at+1:]
	if address == "" {
		return errors.New("empty grid address after '@'")
	}

	host, portText, found := strings.Cut(address, ":")
	if host == "" {
		return errors.New("empty host in grid address")
	}
	loc.Host = host
	if !found {
		return nil
	}

	port, err := strconv.ParseUint(portText, 10, 16)
	if err != nil {
		return fmt.Errorf("port %q: not an unsigned integer", portText)
	}
	loc.Port = int(port)
	return nil
}
