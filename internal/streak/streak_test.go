package streak

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMultiplierBaseline(t *testing.T) {
	if got := Multiplier(0); !got.Equal(decimal.NewFromFloat(1.0)) {
		t.Fatalf("Multiplier(0)=%s want=1", got.String())
	}
	if got := Multiplier(-3); !got.Equal(decimal.NewFromFloat(1.0)) {
		t.Fatalf("Multiplier(-3)=%s want=1", got.String())
	}
}

func TestMultiplierTiers(t *testing.T) {
	cases := []struct {
		wins int
		want float64
	}{
		{1, 1.0},
		{2, 1.0},
		{3, 1.1},
		{4, 1.1},
		{5, 1.25},
		{9, 1.25},
		{10, 1.5},
		{19, 1.5},
		{20, 2.0},
		{100, 2.0},
	}
	for _, tc := range cases {
		if got := Multiplier(tc.wins); !got.Equal(decimal.NewFromFloat(tc.want)) {
			t.Fatalf("Multiplier(%d)=%s want=%v", tc.wins, got.String(), tc.want)
		}
	}
}

func TestMultiplierMonotone(t *testing.T) {
	prev := Multiplier(0)
	for wins := 1; wins <= 60; wins++ {
		cur := Multiplier(wins)
		if cur.LessThan(prev) {
			t.Fatalf("multiplier decreased at %d wins: %s < %s", wins, cur.String(), prev.String())
		}
		prev = cur
	}
}

func TestShieldsGranted(t *testing.T) {
	cases := []struct {
		old, new, want int
	}{
		{0, 1, 0},
		{8, 9, 0},
		{9, 10, 1},
		{10, 11, 0},
		{19, 20, 1},
		{0, 25, 2},  // multi-tier jump grants the full delta
		{5, 35, 3},
		{10, 10, 0}, // no movement, no grant
		{12, 5, 0},  // regression never grants
	}
	for _, tc := range cases {
		if got := ShieldsGranted(tc.old, tc.new); got != tc.want {
			t.Fatalf("ShieldsGranted(%d,%d)=%d want=%d", tc.old, tc.new, got, tc.want)
		}
	}
}

func TestShieldsGrantedNonNegative(t *testing.T) {
	for old := 0; old <= 30; old++ {
		for new := old; new <= 30; new++ {
			if got := ShieldsGranted(old, new); got < 0 {
				t.Fatalf("ShieldsGranted(%d,%d)=%d negative", old, new, got)
			}
		}
	}
}
