package rating

import "testing"

func TestSpeed_ClassifiesByEstimatedGameLength(t *testing.T) {
	cases := []struct {
		name     string
		timeMode string
		baseSec  int
		incSec   int
		want     string
	}{
		{"untimed", "Untimed", 0, 0, "Untimed"},
		{"correspondence", "Correspondence", 0, 0, "Correspondence"},
		{"bullet", "RealTime", 60, 0, "Bullet"},
		{"blitz 5+0", "RealTime", 300, 0, "Blitz"},
		{"rapid 15+10", "RealTime", 900, 10, "Rapid"},
		{"classical", "RealTime", 1800, 30, "Classical"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Speed(tc.timeMode, tc.baseSec, tc.incSec)
			if got != tc.want {
				t.Errorf("Speed(%s, %d, %d) = %s, want %s", tc.timeMode, tc.baseSec, tc.incSec, got, tc.want)
			}
		})
	}
}

func TestDelta_HigherRatedPlayerGainsLessOnWin(t *testing.T) {
	higher := Delta(2000, 1500, Win)
	lower := Delta(1500, 2000, Win)
	if higher <= 0 || lower <= 0 {
		t.Fatalf("expected both deltas positive on a win, got %v and %v", higher, lower)
	}
	if higher >= lower {
		t.Errorf("expected the higher-rated player to gain less than the lower-rated player, got %v >= %v", higher, lower)
	}
}
