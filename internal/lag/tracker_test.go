package lag

import "testing"

func TestTracker_QuotaStartsAtThreeTimesGainAndCapsAtSeven(t *testing.T) {
	// 300000ms base, 0 increment -> gain = min(100, 300000/2500+15) = 100
	tr := NewTracker(300000, 0)
	if got := tr.Quota(); got != 300 {
		t.Fatalf("expected initial quota 3*gain=300, got %v", got)
	}

	for i := 0; i < 50; i++ {
		tr.OnMove(0)
	}
	if got := tr.Quota(); got > 700 {
		t.Errorf("expected quota to saturate at quota_max=700, got %v", got)
	}
}

func TestTracker_OnMoveCompensatesUpToQuota(t *testing.T) {
	tr := NewTracker(300000, 0)
	comp := tr.OnMove(1000)
	if comp <= 0 {
		t.Fatalf("expected a positive compensation for a large observed lag, got %v", comp)
	}
	if comp > 300 {
		t.Errorf("compensation must never exceed the starting quota, got %v", comp)
	}
}

func TestTracker_OnPongProducesBoundedCompEstimate(t *testing.T) {
	tr := NewTracker(300000, 0)
	if _, ok := tr.CompEstimate(); ok {
		t.Fatalf("expected no comp estimate before any pong observed")
	}

	tr.OnPong(200)
	est, ok := tr.CompEstimate()
	if !ok {
		t.Fatalf("expected a comp estimate after a pong")
	}
	if est < 0 || est > tr.quotaMax {
		t.Errorf("expected comp estimate in [0, quota_max], got %v (max %v)", est, tr.quotaMax)
	}
}
