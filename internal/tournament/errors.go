package tournament

import "errors"

var (
	ErrTournamentFull        = errors.New("tournament has no open seats")
	ErrAlreadyJoined         = errors.New("already joined this tournament")
	ErrNotJoined             = errors.New("not a player in this tournament")
	ErrNotOrganizer          = errors.New("only an organizer may perform this action")
	ErrAlreadyStarted        = errors.New("tournament has already started")
	ErrNotInProgress         = errors.New("tournament is not in progress")
	ErrNotInvited            = errors.New("no outstanding invitation for this user")
	ErrAlreadyInvited        = errors.New("user already invited")
	ErrNotEnoughPlayers      = errors.New("fewer players than min_seats")
	ErrInvalidScoringMode    = errors.New("scoring mode must be Game or Match")
)
