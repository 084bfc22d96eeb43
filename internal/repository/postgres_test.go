package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

// newTestRepository подключается к БД из TEST_DATABASE_URI.
// Без заданной переменной тест пропускается.
func newTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI is not set")
	}

	repo, err := NewPostgresRepository(dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestMarkRedeemed_OldestFirst(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// Уникальные ник и id, чтобы прогоны не мешали друг другу.
	seed := time.Now().UnixNano()
	handle := fmt.Sprintf("redeem_order_%d", seed)
	telegramID := seed

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	older, err := repo.CreateCoupon(ctx, CouponDraft{
		TelegramID:      telegramID,
		Handle:          handle,
		Tier:            "10%",
		CodeWord:        "Сочельник",
		CreatedAt:       now.AddDate(0, 0, -1),
		GrantedOn:       yesterday,
		ValidUntil:      now.AddDate(0, 0, 2),
		EnforceDailyCap: true,
	})
	if err != nil {
		t.Fatalf("create older coupon: %v", err)
	}

	newer, err := repo.CreateCoupon(ctx, CouponDraft{
		TelegramID:      telegramID,
		Handle:          handle,
		Tier:            "10%",
		CodeWord:        "Сочельник",
		CreatedAt:       now,
		GrantedOn:       today,
		ValidUntil:      now.AddDate(0, 0, 3),
		EnforceDailyCap: true,
	})
	if err != nil {
		t.Fatalf("create newer coupon: %v", err)
	}

	first, err := repo.MarkRedeemed(ctx, handle, "10%", today)
	if err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	if first.ID != older.ID {
		t.Fatalf("first redemption picked id %d, want oldest %d", first.ID, older.ID)
	}
	if !first.Redeemed {
		t.Fatal("redeemed coupon must be marked used")
	}

	second, err := repo.MarkRedeemed(ctx, handle, "10%", today)
	if err != nil {
		t.Fatalf("second redemption: %v", err)
	}
	if second.ID != newer.ID {
		t.Fatalf("second redemption picked id %d, want %d", second.ID, newer.ID)
	}

	// Оба купона погашены: третья попытка должна промахнуться с точной причиной.
	if _, err := repo.MarkRedeemed(ctx, handle, "10%", today); !errors.Is(err, ErrAllRedeemedOrExpired) {
		t.Fatalf("err = %v, want ErrAllRedeemedOrExpired", err)
	}
}

func TestMarkRedeemed_MissClassification(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	seed := time.Now().UnixNano()
	handle := fmt.Sprintf("redeem_miss_%d", seed)
	unknown := fmt.Sprintf("never_seen_%d", seed)

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if _, err := repo.CreateCoupon(ctx, CouponDraft{
		TelegramID:      seed,
		Handle:          handle,
		Tier:            "15%",
		CodeWord:        "Снеговик",
		CreatedAt:       now,
		GrantedOn:       today,
		ValidUntil:      now.AddDate(0, 0, 3),
		EnforceDailyCap: true,
	}); err != nil {
		t.Fatalf("create coupon: %v", err)
	}

	if _, err := repo.MarkRedeemed(ctx, unknown, "15%", today); !errors.Is(err, ErrHandleNotFound) {
		t.Fatalf("err = %v, want ErrHandleNotFound", err)
	}
	if _, err := repo.MarkRedeemed(ctx, handle, "20%", today); !errors.Is(err, ErrTierNeverGranted) {
		t.Fatalf("err = %v, want ErrTierNeverGranted", err)
	}
}
