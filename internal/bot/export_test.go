package bot

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/model"
)

func TestRenderCouponsCSV(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Minsk")
	created := time.Date(2024, 12, 27, 14, 30, 0, 0, loc)

	data, err := renderCouponsCSV([]model.Coupon{
		{
			Handle: "alice", Tier: "10%", CodeWord: "Сочельник",
			CreatedAt: created, ValidUntil: created.AddDate(0, 0, 3),
			Redeemed: true,
		},
	})
	if err != nil {
		t.Fatalf("renderCouponsCSV error: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want header + 1 row", len(records))
	}

	row := records[1]
	if row[1] != "alice" || row[2] != "10%" || row[3] != "Сочельник" || row[5] != "Да" {
		t.Fatalf("unexpected row: %v", row)
	}
}

func TestRenderUsersCSV(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Minsk")

	data, err := renderUsersCSV([]model.UserProfile{
		{TelegramID: 42, Handle: "bob", FirstSeenAt: time.Date(2024, 12, 1, 9, 0, 0, 0, loc), SpinCount: 7},
	})
	if err != nil {
		t.Fatalf("renderUsersCSV error: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want header + 1 row", len(records))
	}
	if records[1][0] != "42" || records[1][1] != "bob" || records[1][3] != "7" {
		t.Fatalf("unexpected row: %v", records[1])
	}
}
