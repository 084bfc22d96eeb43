package model

import (
	"testing"
	"time"
)

func TestCoupon_ActiveAt_InclusiveExpiry(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Minsk")
	created := time.Date(2024, 12, 27, 14, 30, 0, 0, loc)
	c := Coupon{
		CreatedAt:  created,
		ValidUntil: created.AddDate(0, 0, 3),
	}

	expiryDay := time.Date(2024, 12, 30, 0, 0, 0, 0, loc)
	if !c.ActiveAt(expiryDay) {
		t.Fatalf("coupon must stay active on the expiry day itself")
	}

	dayAfter := expiryDay.AddDate(0, 0, 1)
	if c.ActiveAt(dayAfter) {
		t.Fatalf("coupon must be inactive the day after expiry")
	}
}

func TestCoupon_ActiveAt_Redeemed(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Minsk")
	c := Coupon{
		ValidUntil: time.Date(2030, 1, 1, 0, 0, 0, 0, loc),
		Redeemed:   true,
	}
	if c.ActiveAt(time.Date(2024, 1, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("redeemed coupon must never be active")
	}
}

func TestCoupon_DaysLeft(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Minsk")
	created := time.Date(2024, 12, 27, 9, 0, 0, 0, loc)
	c := Coupon{CreatedAt: created, ValidUntil: created.AddDate(0, 0, 3)}

	tests := []struct {
		today time.Time
		want  int
	}{
		{time.Date(2024, 12, 27, 0, 0, 0, 0, loc), 3},
		{time.Date(2024, 12, 29, 0, 0, 0, 0, loc), 1},
		{time.Date(2024, 12, 30, 0, 0, 0, 0, loc), 0},
		{time.Date(2024, 12, 31, 0, 0, 0, 0, loc), 0},
	}
	for _, tt := range tests {
		if got := c.DaysLeft(tt.today); got != tt.want {
			t.Errorf("DaysLeft(%s) = %d, want %d", tt.today.Format("2006-01-02"), got, tt.want)
		}
	}
}
