package clock

import (
	"errors"
	"testing"
	"time"
)

func TestCurrent_DefaultsToRealClock(t *testing.T) {
	if _, ok := Current().(*RealClock); !ok {
		t.Fatalf("Current() = %T, want *RealClock", Current())
	}
}

func TestStartVirtual_InstallsAndReleases(t *testing.T) {
	vc, release, err := StartVirtual(epoch)
	if err != nil {
		t.Fatalf("StartVirtual() error = %v", err)
	}
	defer release()

	if Current() != Clock(vc) {
		t.Errorf("Current() = %v, want the started virtual clock", Current())
	}
	if !vc.Now().Equal(epoch) {
		t.Errorf("virtual clock starts at %v, want %v", vc.Now(), epoch)
	}

	release()
	if _, ok := Current().(*RealClock); !ok {
		t.Errorf("Current() after release = %T, want *RealClock", Current())
	}
}

func TestStartVirtual_RejectsSecondClock(t *testing.T) {
	_, release, err := StartVirtual(epoch)
	if err != nil {
		t.Fatalf("StartVirtual() error = %v", err)
	}
	defer release()

	if _, _, err := StartVirtual(epoch); !errors.Is(err, ErrVirtualClockActive) {
		t.Fatalf("second StartVirtual() error = %v, want ErrVirtualClockActive", err)
	}

	// After release the slot is free again.
	release()
	vc2, release2, err := StartVirtual(epoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("StartVirtual() after release error = %v", err)
	}
	defer release2()
	if !vc2.Now().Equal(epoch.Add(time.Hour)) {
		t.Errorf("second clock starts at %v, want %v", vc2.Now(), epoch.Add(time.Hour))
	}
}

func TestStartVirtual_ReleaseIdempotent(t *testing.T) {
	_, release, err := StartVirtual(epoch)
	if err != nil {
		t.Fatalf("StartVirtual() error = %v", err)
	}
	release()
	release() // must not disturb a later clock

	vc, release2, err := StartVirtual(epoch)
	if err != nil {
		t.Fatalf("StartVirtual() error = %v", err)
	}
	defer release2()
	release() // stale release from the first handle is a no-op
	if Current() != Clock(vc) {
		t.Error("stale release uninstalled a newer virtual clock")
	}
}

func TestStartVirtual_ZeroStartMeansWallTime(t *testing.T) {
	before := time.Now()
	vc, release, err := StartVirtual(time.Time{})
	if err != nil {
		t.Fatalf("StartVirtual() error = %v", err)
	}
	defer release()
	after := time.Now()

	if vc.Now().Before(before) || vc.Now().After(after) {
		t.Errorf("zero start = %v, want between %v and %v", vc.Now(), before, after)
	}
}
