package model

import "fmt"

// TrainClass restricts which train types the worker will consider when
// searching.  The numbering mirrors the menu offered to the user.
type TrainClass int

const (
	TrainClassHighSpeedOnly TrainClass = 1 // KTX-class trains only
	TrainClassAny           TrainClass = 2 // any train type
)

// String returns the label shown to users in confirmation echoes.
func (t TrainClass) String() string {
	switch t {
	case TrainClassHighSpeedOnly:
		return "KTX"
	case TrainClassAny:
		return "ALL"
	}
	return fmt.Sprintf("TrainClass(%d)", int(t))
}

// SeatPreference selects which seat classes the worker may reserve and in
// which order it should prefer them.
type SeatPreference int

const (
	SeatGeneralFirst SeatPreference = 1 // prefer general, fall back to special
	SeatGeneralOnly  SeatPreference = 2 // general seats only
	SeatSpecialFirst SeatPreference = 3 // prefer special, fall back to general
	SeatSpecialOnly  SeatPreference = 4 // special seats only
)

// String returns the label shown to users in confirmation echoes.
func (p SeatPreference) String() string {
	switch p {
	case SeatGeneralFirst:
		return "GENERAL_FIRST"
	case SeatGeneralOnly:
		return "GENERAL_ONLY"
	case SeatSpecialFirst:
		return "SPECIAL_FIRST"
	case SeatSpecialOnly:
		return "SPECIAL_ONLY"
	}
	return fmt.Sprintf("SeatPreference(%d)", int(p))
}

// ReservationRequest is the validated search-and-book order assembled by the
// conversation layer.  All seven fields must be populated before a job may be
// admitted; the request is treated as immutable once submitted.
//
// Dates are YYYYMMDD strings and times are 24-hour HHMM strings, matching the
// wire format of the booking provider.
type ReservationRequest struct {
	DepartureDate string         // calendar date, YYYYMMDD, >= today
	Origin        string         // origin station token
	Destination   string         // destination station token
	EarliestTime  string         // earliest acceptable departure, HHMM
	LatestTime    string         // latest acceptable departure, HHMM, >= EarliestTime
	TrainClass    TrainClass     // which train types to search
	SeatPref      SeatPreference // which seat classes to reserve
}

// Complete reports whether every field of the request has been populated.
func (r ReservationRequest) Complete() bool {
	return r.DepartureDate != "" &&
		r.Origin != "" &&
		r.Destination != "" &&
		r.EarliestTime != "" &&
		r.LatestTime != "" &&
		r.TrainClass != 0 &&
		r.SeatPref != 0
}

// Summary renders the request the way it is echoed back to the user for
// final confirmation.
func (r ReservationRequest) Summary() string {
	return fmt.Sprintf(
		"date: %s\nfrom: %s\nto: %s\nwindow: %s-%s\ntrain: %s\nseat: %s",
		r.DepartureDate, r.Origin, r.Destination,
		r.EarliestTime, r.LatestTime, r.TrainClass, r.SeatPref,
	)
}
