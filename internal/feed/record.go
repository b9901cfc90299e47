// Package feed brings flight snapshots in from the outside world, either by
// polling an HTTP endpoint or by consuming a RabbitMQ queue, and hands each
// one to the flight monitor.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hammamikhairi/gatecaller/internal/domain"
)

// Ingester accepts decoded snapshots. The flight monitor implements it.
type Ingester interface {
	Ingest(ctx context.Context, snap domain.FlightSnapshot) ([]domain.AnnouncementJob, error)
}

// Record is one flight as it appears on the wire.
type Record struct {
	Ident       string `json:"ident"`
	Status      string `json:"status"`
	Direction   string `json:"direction"`
	Scheduled   string `json:"scheduled,omitempty"`
	Actual      string `json:"actual,omitempty"`
	Estimated   string `json:"estimated,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	AirlineIATA string `json:"airline_iata,omitempty"`
	AirlineICAO string `json:"airline_icao,omitempty"`
	Gate        string `json:"gate,omitempty"`
	CheckInDesk string `json:"checkin_desk,omitempty"`
}

// timeLayouts are tried in order for every timestamp field.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

func parseTime(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: bad %s timestamp %q", domain.ErrMalformedSnapshot, field, value)
}

// Snapshot converts the record. Codes are trimmed and uppercased; the
// status and direction strings go through the domain parsers.
func (r Record) Snapshot(observed time.Time) (domain.FlightSnapshot, error) {
	snap := domain.FlightSnapshot{
		Ident:       strings.ToUpper(strings.TrimSpace(r.Ident)),
		Status:      domain.ParseStatus(r.Status),
		Direction:   domain.ParseDirection(r.Direction),
		Origin:      strings.ToUpper(strings.TrimSpace(r.Origin)),
		Destination: strings.ToUpper(strings.TrimSpace(r.Destination)),
		AirlineIATA: strings.ToUpper(strings.TrimSpace(r.AirlineIATA)),
		AirlineICAO: strings.ToUpper(strings.TrimSpace(r.AirlineICAO)),
		Gate:        strings.ToUpper(strings.TrimSpace(r.Gate)),
		CheckInDesk: strings.TrimSpace(r.CheckInDesk),
		ObservedAt:  observed,
	}

	var err error
	if snap.Scheduled, err = parseTime("scheduled", r.Scheduled); err != nil {
		return domain.FlightSnapshot{}, err
	}
	if snap.Actual, err = parseTime("actual", r.Actual); err != nil {
		return domain.FlightSnapshot{}, err
	}
	if snap.Estimated, err = parseTime("estimated", r.Estimated); err != nil {
		return domain.FlightSnapshot{}, err
	}
	return snap, nil
}

// DecodeRecords accepts either a JSON array of records or a single object.
func DecodeRecords(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrMalformedSnapshot)
	}

	if data[0] == '[' {
		var recs []Record
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
		}
		return recs, nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
	}
	return []Record{rec}, nil
}
