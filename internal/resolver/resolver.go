// Package resolver maps a flight and call type to the prerecorded audio
// asset that announces it. Resolution is pure and deterministic.
package resolver

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/hammamikhairi/gatecaller/internal/domain"
)

// BilingualSuffix is appended to every asset name. All prerecorded
// announcements carry both languages in one file.
const BilingualSuffix = "bil"

// Extension of prerecorded assets.
const Extension = ".mp3"

// Priorities per call type. Higher plays first.
var priorities = map[domain.CallType]int{
	domain.CallBaggage:  1,
	domain.CallSecurity: 2,
	domain.CallCustom:   2,
	domain.CallArrival:  3,
	domain.CallFirst:    4,
	domain.CallSecond:   4,
	domain.CallBoarding: 5,
	domain.CallLast:     6,
}

// PriorityOf returns the queue priority for a call type.
func PriorityOf(call domain.CallType) int {
	return priorities[call]
}

// FlightNumber strips every non-digit from an ident ("AF456" -> "456").
func FlightNumber(ident string) string {
	var b strings.Builder
	for _, r := range ident {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Resolve builds the asset path for a flight call:
//
//	departure/<airline>/<number>_<DEST>_<call>_G<gate>_bil.mp3
//	arrival/<airline>/<number>_<ORIG>_arrival_bil.mp3
func Resolve(f domain.FlightSnapshot, call domain.CallType) (domain.AssetReference, error) {
	if !call.FlightBound() {
		return domain.AssetReference{}, fmt.Errorf("%w: %s is not a flight call", domain.ErrUnresolvableAsset, call)
	}

	airline := strings.ToUpper(f.AirlineCode())
	if airline == "" {
		return domain.AssetReference{}, fmt.Errorf("%w: %s has no airline code", domain.ErrUnresolvableAsset, f.Ident)
	}
	number := FlightNumber(f.Ident)
	if number == "" {
		return domain.AssetReference{}, fmt.Errorf("%w: ident %q has no flight number", domain.ErrUnresolvableAsset, f.Ident)
	}

	if call == domain.CallArrival {
		if f.Origin == "" {
			return domain.AssetReference{}, fmt.Errorf("%w: %s has no origin", domain.ErrUnresolvableAsset, f.Ident)
		}
		name := strings.Join([]string{number, strings.ToUpper(f.Origin), call.String(), BilingualSuffix}, "_")
		return domain.AssetReference{Path: path.Join(domain.Arrival.String(), airline, name+Extension)}, nil
	}

	if f.Destination == "" {
		return domain.AssetReference{}, fmt.Errorf("%w: %s has no destination", domain.ErrUnresolvableAsset, f.Ident)
	}
	if f.Gate == "" {
		return domain.AssetReference{}, fmt.Errorf("%w: %s has no gate for %s", domain.ErrUnresolvableAsset, f.Ident, call)
	}
	name := strings.Join([]string{
		number,
		strings.ToUpper(f.Destination),
		call.String(),
		"G" + strings.ToUpper(f.Gate),
		BilingualSuffix,
	}, "_")
	return domain.AssetReference{Path: path.Join(domain.Departure.String(), airline, name+Extension)}, nil
}

// ResolveClass builds the asset path for a non-flight announcement.
func ResolveClass(call domain.CallType) (domain.AssetReference, error) {
	switch call {
	case domain.CallBaggage, domain.CallSecurity:
		return domain.AssetReference{Path: path.Join("general", call.String()+"_"+BilingualSuffix+Extension)}, nil
	default:
		return domain.AssetReference{}, fmt.Errorf("%w: no fixed asset for %s", domain.ErrUnresolvableAsset, call)
	}
}

// Job resolves a flight call into a ready-to-enqueue job.
func Job(f domain.FlightSnapshot, call domain.CallType) (domain.AnnouncementJob, error) {
	asset, err := Resolve(f, call)
	if err != nil {
		return domain.AnnouncementJob{}, err
	}
	job := domain.NewJob(call, f.Ident, PriorityOf(call), asset)
	if call.Departure() {
		job.Gate = f.Gate
	}
	return job, nil
}

// ClassJob resolves a non-flight call into a ready-to-enqueue job.
func ClassJob(call domain.CallType) (domain.AnnouncementJob, error) {
	asset, err := ResolveClass(call)
	if err != nil {
		return domain.AnnouncementJob{}, err
	}
	return domain.NewJob(call, "", PriorityOf(call), asset), nil
}
