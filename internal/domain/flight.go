// Package domain defines the core types and interfaces for the announcement
// pipeline. All other packages depend on domain; domain depends on nothing
// but uuid for job identifiers.
package domain

import (
	"strings"
	"time"
)

// FlightStatus is the operational state reported by the flight-data feed.
type FlightStatus int

const (
	StatusUnknown FlightStatus = iota
	StatusProcessing
	StatusBoarding
	StatusLastCall
	StatusDeparted
	StatusArrived
	StatusCancelled
)

// String returns a human-readable flight status.
func (s FlightStatus) String() string {
	switch s {
	case StatusProcessing:
		return "processing"
	case StatusBoarding:
		return "boarding"
	case StatusLastCall:
		return "last_call"
	case StatusDeparted:
		return "departed"
	case StatusArrived:
		return "arrived"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the flight has left the announcement lifecycle.
func (s FlightStatus) Terminal() bool {
	return s == StatusDeparted || s == StatusArrived || s == StatusCancelled
}

// statusNames maps feed spellings to FlightStatus values.
var statusNames = map[string]FlightStatus{
	"processing": StatusProcessing,
	"checkin":    StatusProcessing,
	"boarding":   StatusBoarding,
	"last_call":  StatusLastCall,
	"lastcall":   StatusLastCall,
	"departed":   StatusDeparted,
	"arrived":    StatusArrived,
	"landed":     StatusArrived,
	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
}

// ParseStatus converts a feed status string to a FlightStatus.
// Returns StatusUnknown for unrecognized names.
func ParseStatus(name string) FlightStatus {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, " ", "_")
	if s, ok := statusNames[key]; ok {
		return s
	}
	return StatusUnknown
}

// Direction tells whether a flight leaves from or lands at this airport.
// The zero value is Departure.
type Direction int

const (
	Departure Direction = iota
	Arrival
)

// String returns the direction as used in asset paths.
func (d Direction) String() string {
	if d == Arrival {
		return "arrival"
	}
	return "departure"
}

// ParseDirection converts a feed direction string. Anything that does not
// look like an arrival is a departure.
func ParseDirection(name string) Direction {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "arrival", "arrivals", "arr", "a":
		return Arrival
	default:
		return Departure
	}
}

// FlightSnapshot is one polled observation of a flight. Snapshots are
// immutable; a newer snapshot for the same Ident supersedes the old one.
type FlightSnapshot struct {
	Ident       string
	Status      FlightStatus
	Direction   Direction
	Scheduled   time.Time
	Actual      time.Time
	Estimated   time.Time
	Origin      string
	Destination string
	AirlineIATA string
	AirlineICAO string
	Gate        string
	CheckInDesk string
	ObservedAt  time.Time
}

// AirlineCode returns the IATA code, falling back to ICAO.
func (f FlightSnapshot) AirlineCode() string {
	if f.AirlineIATA != "" {
		return f.AirlineIATA
	}
	return f.AirlineICAO
}

// Place returns the airport code spoken in announcements: the destination
// for departures and the origin for arrivals.
func (f FlightSnapshot) Place() string {
	if f.Direction == Arrival {
		return f.Origin
	}
	return f.Destination
}

// FlightContext is the subset of a flight handed to the text generator
// when an announcement has to be synthesized.
type FlightContext struct {
	Ident       string
	Airline     string
	Destination string
	Origin      string
	Gate        string
	Scheduled   time.Time
}

// ContextOf builds a FlightContext from a snapshot.
func ContextOf(f FlightSnapshot) FlightContext {
	return FlightContext{
		Ident:       f.Ident,
		Airline:     f.AirlineCode(),
		Destination: f.Destination,
		Origin:      f.Origin,
		Gate:        f.Gate,
		Scheduled:   f.Scheduled,
	}
}
