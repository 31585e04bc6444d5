package preference

import (
	"math"
	"testing"
	"time"
)

func TestNew_Empty(t *testing.T) {
	v := New("u-1")
	if v.UserID() != "u-1" {
		t.Errorf("UserID() = %q", v.UserID())
	}
	if v.Len() != 0 {
		t.Errorf("Len() = %d", v.Len())
	}
	if v.Weight("style:vintage") != 0 {
		t.Errorf("Weight() = %v for absent key", v.Weight("style:vintage"))
	}
	if v.MaxAbs() != 0 {
		t.Errorf("MaxAbs() = %v", v.MaxAbs())
	}
}

func TestApply_AccumulatesAndAdvancesMax(t *testing.T) {
	now := time.Now()
	v := New("u-1")

	v.Apply("style:vintage", 0.18, 3, now)
	v.Apply("style:vintage", 0.18, 3, now)

	if got := v.Weight("style:vintage"); math.Abs(got-0.36) > 1e-9 {
		t.Errorf("Weight() = %v, want 0.36", got)
	}
	if got := v.MaxAbs(); math.Abs(got-0.36) > 1e-9 {
		t.Errorf("MaxAbs() = %v, want 0.36", got)
	}
	if !v.UpdatedAt().Equal(now) {
		t.Errorf("UpdatedAt() = %v", v.UpdatedAt())
	}
}

func TestApply_ClipsAtMaxWeight(t *testing.T) {
	now := time.Now()
	v := New("u-1")

	for i := 0; i < 40; i++ {
		v.Apply("style:vintage", 0.2, 3, now)
	}

	if got := v.Weight("style:vintage"); got != 3 {
		t.Errorf("Weight() = %v, want clipped to 3", got)
	}

	for i := 0; i < 80; i++ {
		v.Apply("style:vintage", -0.2, 3, now)
	}

	if got := v.Weight("style:vintage"); got != -3 {
		t.Errorf("Weight() = %v, want clipped to -3", got)
	}
}

func TestApply_MaxAbsNeverShrinks(t *testing.T) {
	now := time.Now()
	v := New("u-1")

	v.Apply("style:vintage", 2, 3, now)
	v.Apply("style:vintage", -1.5, 3, now)

	if got := v.Weight("style:vintage"); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Weight() = %v, want 0.5", got)
	}
	if got := v.MaxAbs(); got != 2 {
		t.Errorf("MaxAbs() = %v, want 2 retained", got)
	}
}

func TestWeights_ReturnsCopy(t *testing.T) {
	v := New("u-1")
	v.Apply("style:vintage", 1, 3, time.Now())

	w := v.Weights()
	w["style:vintage"] = 999

	if v.Weight("style:vintage") != 1 {
		t.Error("Weights() copy mutation leaked into vector")
	}
}

func TestDecayed_HalfLife(t *testing.T) {
	updated := time.Now().Add(-DefaultHalfLife)
	v := Reconstruct("u-1", map[string]float64{"style:vintage": 2}, 2, updated)

	d := v.Decayed(time.Now(), DefaultHalfLife)

	if got := d.Weight("style:vintage"); math.Abs(got-1) > 1e-6 {
		t.Errorf("Weight() = %v, want halved after one half-life", got)
	}
	if got := d.MaxAbs(); math.Abs(got-1) > 1e-6 {
		t.Errorf("MaxAbs() = %v, want halved with weights", got)
	}
	// Original untouched.
	if v.Weight("style:vintage") != 2 {
		t.Errorf("original Weight() = %v", v.Weight("style:vintage"))
	}
}

func TestDecayed_ZeroUpdatedAtUnchanged(t *testing.T) {
	v := Reconstruct("u-1", map[string]float64{"style:vintage": 2}, 2, time.Time{})

	d := v.Decayed(time.Now(), DefaultHalfLife)

	if got := d.Weight("style:vintage"); got != 2 {
		t.Errorf("Weight() = %v, want unchanged for zero updatedAt", got)
	}
}

func TestDecayed_FutureUpdatedAtUnchanged(t *testing.T) {
	v := Reconstruct("u-1", map[string]float64{"style:vintage": 2}, 2, time.Now().Add(time.Hour))

	d := v.Decayed(time.Now(), DefaultHalfLife)

	if got := d.Weight("style:vintage"); got != 2 {
		t.Errorf("Weight() = %v, want unchanged for future updatedAt", got)
	}
}

func TestReconstruct_NilWeights(t *testing.T) {
	v := Reconstruct("u-1", nil, 0, time.Time{})
	v.Apply("style:vintage", 1, 3, time.Now())
	if v.Weight("style:vintage") != 1 {
		t.Errorf("Weight() = %v after Apply on reconstructed nil map", v.Weight("style:vintage"))
	}
}
