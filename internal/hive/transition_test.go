package hive

import "testing"

func baseState() GameState {
	return GameState{
		Status: StatusInProgress,
		Turn:   3,
		Mover:  White,
	}
}

func TestApply_TurnAdvancesAndFlipsMover(t *testing.T) {
	s := baseState()
	next, effects, err := Apply(s, Input{Kind: InputTurn, Issuer: White})
	if err != nil {
		t.Fatalf("Apply(Turn) failed: %v", err)
	}
	if next.Turn != 4 {
		t.Errorf("expected turn 4, got %d", next.Turn)
	}
	if next.Mover != Black {
		t.Errorf("expected mover Black, got %s", next.Mover)
	}
	if len(effects) != 1 || effects[0] != EffectBroadcastUpdate {
		t.Errorf("expected a single BroadcastUpdate effect, got %v", effects)
	}
}

func TestApply_TurnRejectsWrongMover(t *testing.T) {
	s := baseState()
	_, _, err := Apply(s, Input{Kind: InputTurn, Issuer: Black})
	if err != ErrNotYourTurn {
		t.Errorf("expected ErrNotYourTurn, got %v", err)
	}
}

func TestApply_TakebackAcceptRequiresMatchingRequest(t *testing.T) {
	s := baseState()
	_, _, err := Apply(s, Input{Kind: InputControl, Issuer: Black, Control: Control{Kind: ControlTakebackAccept, Color: Black}})
	if err != ErrNoMatchingOffer {
		t.Errorf("expected ErrNoMatchingOffer with no outstanding request, got %v", err)
	}
}

func TestApply_DuplicateTakebackAcceptFailsDistinctly(t *testing.T) {
	s := baseState()
	s.ControlHistory = []Control{{Kind: ControlTakebackRequest, Color: White}}

	next, effects, err := Apply(s, Input{Kind: InputControl, Issuer: Black, Control: Control{Kind: ControlTakebackAccept, Color: Black}})
	if err != nil {
		t.Fatalf("first TakebackAccept should succeed: %v", err)
	}
	if len(effects) == 0 {
		t.Fatalf("expected effects from accepting a takeback")
	}

	_, _, err = Apply(next, Input{Kind: InputControl, Issuer: Black, Control: Control{Kind: ControlTakebackAccept, Color: Black}})
	if err != ErrGcAlreadyPresent {
		t.Errorf("expected a duplicate TakebackAccept to fail ErrGcAlreadyPresent, got %v", err)
	}
}

func TestApply_CheckTimeExpiresOnNonPositiveClock(t *testing.T) {
	s := baseState()
	s.WhiteTimeLeftMs = 0

	next, _, err := Apply(s, Input{Kind: InputCheckTime})
	if err != nil {
		t.Fatalf("Apply(CheckTime) failed: %v", err)
	}
	if next.Status != StatusFinished {
		t.Errorf("expected Finished, got %s", next.Status)
	}
}

func TestApply_CheckTimeNoopWhileTimeRemains(t *testing.T) {
	s := baseState()
	s.WhiteTimeLeftMs = 5000

	_, _, err := Apply(s, Input{Kind: InputCheckTime})
	if err != ErrTimeNotExpired {
		t.Errorf("expected ErrTimeNotExpired, got %v", err)
	}
}
