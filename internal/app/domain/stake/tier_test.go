package stake

import (
	"testing"
	"time"
)

func TestTermsForKnownTiers(t *testing.T) {
	cases := []struct {
		tier     Tier
		lockDays int
		apy      string
	}{
		{TierFlexible, 0, "50"},
		{TierSmart, 180, "150"},
		{TierDiamond, 365, "250"},
	}

	for _, tc := range cases {
		terms, ok := TermsFor(tc.tier)
		if !ok {
			t.Fatalf("expected terms for tier %s", tc.tier)
		}
		if terms.LockDays != tc.lockDays {
			t.Fatalf("tier %s: expected %d lock days, got %d", tc.tier, tc.lockDays, terms.LockDays)
		}
		if terms.APY.String() != tc.apy {
			t.Fatalf("tier %s: expected APY %s, got %s", tc.tier, tc.apy, terms.APY.String())
		}
	}
}

func TestTermsForUnknownTier(t *testing.T) {
	if _, ok := TermsFor(Tier("platinum")); ok {
		t.Fatal("expected no terms for unknown tier")
	}
}

func TestUnlockDatePerTier(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	flexible, _ := TermsFor(TierFlexible)
	if !flexible.UnlockDate(created).Equal(created) {
		t.Fatalf("flexible unlock should equal creation time, got %s", flexible.UnlockDate(created))
	}

	smart, _ := TermsFor(TierSmart)
	if got := smart.UnlockDate(created); !got.Equal(created.AddDate(0, 0, 180)) {
		t.Fatalf("smart unlock: got %s", got)
	}

	diamond, _ := TermsFor(TierDiamond)
	if got := diamond.UnlockDate(created); !got.Equal(created.AddDate(0, 0, 365)) {
		t.Fatalf("diamond unlock: got %s", got)
	}
}

func TestStakeIsUnlockedBoundary(t *testing.T) {
	unlock := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	stk := Stake{UnlockDate: unlock}

	if stk.IsUnlocked(unlock.Add(-time.Second)) {
		t.Fatal("stake should still be locked one second before the unlock date")
	}
	if !stk.IsUnlocked(unlock) {
		t.Fatal("stake should be unlocked exactly at the unlock date")
	}
	if !stk.IsUnlocked(unlock.Add(time.Second)) {
		t.Fatal("stake should be unlocked after the unlock date")
	}
}

func TestDaysUntilUnlock(t *testing.T) {
	unlock := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	stk := Stake{UnlockDate: unlock}

	if got := stk.DaysUntilUnlock(unlock.AddDate(0, 0, -3)); got != 3 {
		t.Fatalf("expected 3 days, got %d", got)
	}
	// partial days round up
	if got := stk.DaysUntilUnlock(unlock.Add(-36 * time.Hour)); got != 2 {
		t.Fatalf("expected 2 days for 36 hours, got %d", got)
	}
	if got := stk.DaysUntilUnlock(unlock); got != 0 {
		t.Fatalf("expected 0 days at unlock, got %d", got)
	}
	if got := stk.DaysUntilUnlock(unlock.AddDate(0, 0, 5)); got != 0 {
		t.Fatalf("expected 0 days after unlock, got %d", got)
	}
}

func TestAccrualDayNormalizes(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	at := time.Date(2026, 3, 15, 23, 45, 0, 0, loc)

	day := AccrualDay(at)
	if day.Location() != time.UTC {
		t.Fatalf("expected UTC, got %s", day.Location())
	}
	if day.Hour() != 0 || day.Minute() != 0 || day.Second() != 0 {
		t.Fatalf("expected midnight, got %s", day)
	}
	if day.Day() != 15 {
		t.Fatalf("expected UTC calendar day 15, got %d", day.Day())
	}
}
