// Package provider defines the booking provider collaborator: the external
// reservation service the worker polls.  The package exposes a small
// interface so the worker and conversation layer can be exercised against a
// fake in tests, plus an HTTP implementation for the real service.
package provider

import (
	"context"
	"errors"

	"github.com/hyeonwoo/railbot/internal/model"
)

// ErrSoldOut is returned by Reserve when the chosen train has no seat left
// in the requested class.  It is expected and non-fatal: the worker moves on
// to the next candidate or the next polling round.
var ErrSoldOut = errors.New("provider: sold out")

// ErrNoResults is returned by Search when no train matches the query.  Like
// ErrSoldOut it is an expected condition, not a failure.
var ErrNoResults = errors.New("provider: no results")

// SearchQuery carries the parameters of one train search.  Times use the
// provider's wire format: YYYYMMDD dates and HHMMSS departure time.
type SearchQuery struct {
	Origin        string
	Destination   string
	DepartureDate string
	DepartureTime string
	TrainClass    model.TrainClass
}

// TrainOption is one bookable train returned by Search.  Search results are
// ordered by ascending departure time, so the first option is the earliest
// candidate.
type TrainOption struct {
	TrainNo        string
	TrainType      string
	DepartureDate  string // YYYYMMDD
	DepartureTime  string // HHMMSS
	ArrivalTime    string // HHMMSS
	Origin         string
	Destination    string
	HasGeneralSeat bool
	HasSpecialSeat bool
}

// ReservationDetails describes a successfully placed reservation.
type ReservationDetails struct {
	ReservationID string
	TrainNo       string
	DepartureDate string
	DepartureTime string
	Origin        string
	Destination   string
	SeatClass     string
}

// String renders the reservation the way it is reported back to the user.
func (d ReservationDetails) String() string {
	return d.TrainNo + " " + d.DepartureDate + " " + d.DepartureTime +
		" " + d.Origin + "->" + d.Destination + " (" + d.SeatClass + ")"
}

// Client is the booking provider seen by the rest of the system.  Login must
// be called before Search or Reserve; a client that starts returning errors
// can usually be recovered with a fresh Login.
type Client interface {
	Login(ctx context.Context, loginID, loginSecret string) error
	Search(ctx context.Context, q SearchQuery) ([]TrainOption, error)
	Reserve(ctx context.Context, opt TrainOption, pref model.SeatPreference) (ReservationDetails, error)
}

// Factory builds a fresh provider client.  The conversation layer constructs
// a throwaway client per login check, and each worker owns its own client so
// session cookies are never shared between jobs.
type Factory func() Client
