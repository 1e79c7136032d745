package hive

import "errors"

// Status mirrors spec §3's Game.status variants.
type Status string

const (
	StatusNotStarted Status = "NotStarted"
	StatusInProgress Status = "InProgress"
	StatusFinished   Status = "Finished"
	StatusAdjudicated Status = "Adjudicated"
)

// ControlKind mirrors spec §3's GameControl tagged variant.
type ControlKind string

const (
	ControlAbort           ControlKind = "Abort"
	ControlResign          ControlKind = "Resign"
	ControlDrawOffer       ControlKind = "DrawOffer"
	ControlDrawAccept      ControlKind = "DrawAccept"
	ControlDrawReject      ControlKind = "DrawReject"
	ControlTakebackRequest ControlKind = "TakebackRequest"
	ControlTakebackAccept  ControlKind = "TakebackAccept"
	ControlTakebackReject  ControlKind = "TakebackReject"
)

// Control is one GameControl entry (spec §3): "the color field is the
// issuer".
type Control struct {
	Kind  ControlKind
	Color Color
}

// GameState is the subset of store.Game the pure transition function
// needs, expressed in domain terms rather than gorm row fields.
type GameState struct {
	Status          Status
	Turn            int
	Mover           Color
	ControlHistory  []Control
	WhiteTimeLeftMs int64
	BlackTimeLeftMs int64
}

// InputKind tags which spec §4.I decision-table row an Input matches.
type InputKind string

const (
	InputTurn      InputKind = "Turn"
	InputControl   InputKind = "Control"
	InputCheckTime InputKind = "CheckTime"
)

// Input is one state-machine input (spec §4.I).
type Input struct {
	Kind    InputKind
	Issuer  Color
	Move    Move
	Control Control
}

// Effect is a side effect the caller (internal/game) must apply —
// broadcasts, clock updates, and the like — kept separate from
// GameState mutation so Apply stays pure.
type Effect string

const (
	EffectBroadcastUpdate   Effect = "broadcast_update"
	EffectNotifyOpponent    Effect = "notify_opponent"
	EffectRestoreClocks     Effect = "restore_clocks"
)

var (
	ErrNotInProgress  = errors.New("game is not in progress")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrControlNotAllowed = errors.New("control not allowed at this turn")
	ErrNoMatchingOffer   = errors.New("no matching outstanding offer/request")
	ErrTimeNotExpired    = errors.New("mover's time has not expired")
	ErrDuplicateOffer    = errors.New("identical offer already outstanding")
	ErrGcAlreadyPresent  = errors.New("takeback already accepted")
)

// Apply is the pure decision-table function spec §4.I names: given a
// GameState and an Input, it returns the next GameState, a list of
// Effects the caller must carry out, and an error if the input is
// rejected. internal/game's handler calls this inside its store
// transaction — it is the only caller, per spec §9's rules-engine
// boundary design note.
func Apply(s GameState, in Input) (GameState, []Effect, error) {
	if s.Status != StatusInProgress {
		return s, nil, ErrNotInProgress
	}

	switch in.Kind {
	case InputTurn:
		return applyTurn(s, in)
	case InputControl:
		return applyControl(s, in)
	case InputCheckTime:
		return applyCheckTime(s, in)
	default:
		return s, nil, errors.New("unknown input kind")
	}
}

func applyTurn(s GameState, in Input) (GameState, []Effect, error) {
	if in.Issuer != s.Mover {
		return s, nil, ErrNotYourTurn
	}
	s.Turn++
	s.Mover = s.Mover.Opposite()
	return s, []Effect{EffectBroadcastUpdate}, nil
}

func applyControl(s GameState, in Input) (GameState, []Effect, error) {
	c := in.Control
	switch c.Kind {
	case ControlAbort:
		if s.Turn >= 2 {
			return s, nil, ErrControlNotAllowed
		}
		s.Status = StatusFinished
		return s, []Effect{EffectBroadcastUpdate}, nil

	case ControlResign:
		if s.Turn <= 1 {
			return s, nil, ErrControlNotAllowed
		}
		s.Status = StatusFinished
		return s, []Effect{EffectBroadcastUpdate}, nil

	case ControlDrawOffer:
		if s.Turn <= 2 {
			return s, nil, ErrControlNotAllowed
		}
		if last, ok := lastControl(s); ok && last.Kind == ControlDrawOffer && last.Color == c.Color {
			return s, nil, ErrDuplicateOffer
		}
		s.ControlHistory = append(s.ControlHistory, c)
		return s, []Effect{EffectNotifyOpponent}, nil

	case ControlDrawAccept:
		last, ok := lastControl(s)
		if !ok || last.Kind != ControlDrawOffer || last.Color != c.Color.Opposite() {
			return s, nil, ErrNoMatchingOffer
		}
		s.ControlHistory = append(s.ControlHistory, c)
		s.Status = StatusFinished
		return s, []Effect{EffectBroadcastUpdate}, nil

	case ControlDrawReject:
		last, ok := lastControl(s)
		if !ok || last.Kind != ControlDrawOffer || last.Color != c.Color.Opposite() {
			return s, nil, ErrNoMatchingOffer
		}
		s.ControlHistory = append(s.ControlHistory, c)
		return s, []Effect{EffectNotifyOpponent}, nil

	case ControlTakebackRequest:
		if s.Turn <= 1 {
			return s, nil, ErrControlNotAllowed
		}
		s.ControlHistory = append(s.ControlHistory, c)
		return s, []Effect{EffectNotifyOpponent}, nil

	case ControlTakebackAccept:
		last, ok := lastControl(s)
		if ok && last.Kind == ControlTakebackAccept {
			return s, nil, ErrGcAlreadyPresent
		}
		if !ok || last.Kind != ControlTakebackRequest || last.Color != c.Color.Opposite() {
			return s, nil, ErrNoMatchingOffer
		}
		s.ControlHistory = append(s.ControlHistory, c)
		if s.Turn > 0 {
			s.Turn--
			s.Mover = s.Mover.Opposite()
		}
		return s, []Effect{EffectRestoreClocks, EffectBroadcastUpdate}, nil

	case ControlTakebackReject:
		last, ok := lastControl(s)
		if !ok || last.Kind != ControlTakebackRequest || last.Color != c.Color.Opposite() {
			return s, nil, ErrNoMatchingOffer
		}
		s.ControlHistory = append(s.ControlHistory, c)
		return s, []Effect{EffectNotifyOpponent}, nil

	default:
		return s, nil, ErrControlNotAllowed
	}
}

func applyCheckTime(s GameState, _ Input) (GameState, []Effect, error) {
	remaining := s.WhiteTimeLeftMs
	if s.Mover == Black {
		remaining = s.BlackTimeLeftMs
	}
	if remaining > 0 {
		return s, nil, ErrTimeNotExpired
	}
	s.Status = StatusFinished
	return s, []Effect{EffectBroadcastUpdate}, nil
}

func lastControl(s GameState) (Control, bool) {
	if len(s.ControlHistory) == 0 {
		return Control{}, false
	}
	return s.ControlHistory[len(s.ControlHistory)-1], true
}
