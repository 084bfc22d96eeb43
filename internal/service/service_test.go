package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/clock"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/model"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/repository"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/wheel"
)

type stubRepo struct {
	createDraft  repository.CouponDraft
	createCoupon *model.Coupon
	createErr    error

	spunToday    bool
	spunTodayErr error

	activeResp []model.Coupon
	activeErr  error

	statsResp *model.UserStats

	lastHandle    string
	lastHandleErr error

	exists bool

	redeemCoupon *model.Coupon
	redeemErr    error
	redeemHandle string
	redeemTier   string

	adminStats *model.AdminStats

	searchResp []model.Coupon

	listResp  []model.UserSummary
	listPages int

	allCoupons []model.Coupon
	allUsers   []model.UserProfile
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateCoupon(ctx context.Context, d repository.CouponDraft) (*model.Coupon, error) {
	s.createDraft = d
	if s.createErr != nil {
		return nil, s.createErr
	}
	if s.createCoupon != nil {
		return s.createCoupon, nil
	}
	return &model.Coupon{
		ID:         1,
		TelegramID: d.TelegramID,
		Handle:     d.Handle,
		Tier:       d.Tier,
		CodeWord:   d.CodeWord,
		CreatedAt:  d.CreatedAt,
		ValidUntil: d.ValidUntil,
	}, nil
}

func (s *stubRepo) HasSpunToday(ctx context.Context, telegramID int64, day time.Time) (bool, error) {
	return s.spunToday, s.spunTodayErr
}

func (s *stubRepo) ActiveCoupons(ctx context.Context, telegramID int64, today time.Time) ([]model.Coupon, error) {
	return s.activeResp, s.activeErr
}

func (s *stubRepo) UserStats(ctx context.Context, telegramID int64, today time.Time) (*model.UserStats, error) {
	return s.statsResp, nil
}

func (s *stubRepo) LastHandle(ctx context.Context, telegramID int64) (string, error) {
	return s.lastHandle, s.lastHandleErr
}

func (s *stubRepo) UserExists(ctx context.Context, telegramID int64) (bool, error) {
	return s.exists, nil
}

func (s *stubRepo) AdminStats(ctx context.Context, today time.Time) (*model.AdminStats, error) {
	return s.adminStats, nil
}

func (s *stubRepo) SearchCoupons(ctx context.Context, query string) ([]model.Coupon, error) {
	return s.searchResp, nil
}

func (s *stubRepo) ListUsers(ctx context.Context, page, pageSize int, today time.Time) ([]model.UserSummary, int, error) {
	return s.listResp, s.listPages, nil
}

func (s *stubRepo) MarkRedeemed(ctx context.Context, handle, tier string, today time.Time) (*model.Coupon, error) {
	s.redeemHandle = handle
	s.redeemTier = tier
	return s.redeemCoupon, s.redeemErr
}

func (s *stubRepo) AllCoupons(ctx context.Context) ([]model.Coupon, error) {
	return s.allCoupons, nil
}

func (s *stubRepo) AllUsers(ctx context.Context) ([]model.UserProfile, error) {
	return s.allUsers, nil
}

func testClock(t *testing.T) clock.Fixed {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Minsk")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return clock.Fixed{Moment: time.Date(2024, 12, 27, 14, 30, 0, 0, loc)}
}

func testWheel(t *testing.T) *wheel.Wheel {
	t.Helper()
	w, err := wheel.New([]model.Tier{
		{Label: "10%", Weight: 1, CodeWord: "Сочельник"},
	}, rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatalf("new wheel: %v", err)
	}
	return w
}

func TestSpinWheel_DraftFields(t *testing.T) {
	repo := &stubRepo{}
	clk := testClock(t)
	svc := NewService(repo, testWheel(t), clk, 3, true)

	coupon, err := svc.SpinWheel(context.Background(), 77, "alice")
	if err != nil {
		t.Fatalf("SpinWheel error: %v", err)
	}

	d := repo.createDraft
	if d.TelegramID != 77 || d.Handle != "alice" {
		t.Fatalf("draft identity = %d/%q", d.TelegramID, d.Handle)
	}
	if d.Tier != "10%" || d.CodeWord != "Сочельник" {
		t.Fatalf("draft tier = %q/%q", d.Tier, d.CodeWord)
	}
	if !d.CreatedAt.Equal(clk.Now()) {
		t.Fatalf("draft CreatedAt = %v, want %v", d.CreatedAt, clk.Now())
	}
	if !d.ValidUntil.Equal(clk.Now().AddDate(0, 0, 3)) {
		t.Fatalf("draft ValidUntil = %v, want created_at + 3 days", d.ValidUntil)
	}
	if !d.GrantedOn.Equal(clk.Today()) {
		t.Fatalf("draft GrantedOn = %v, want %v", d.GrantedOn, clk.Today())
	}
	if !d.EnforceDailyCap {
		t.Fatalf("daily cap must be enforced")
	}
	if coupon.CodeWord != "Сочельник" {
		t.Fatalf("coupon code word = %q", coupon.CodeWord)
	}
}

func TestSpinWheel_PropagatesDailyCap(t *testing.T) {
	repo := &stubRepo{createErr: repository.ErrAlreadySpunToday}
	svc := NewService(repo, testWheel(t), testClock(t), 3, true)

	_, err := svc.SpinWheel(context.Background(), 77, "alice")
	if !errors.Is(err, repository.ErrAlreadySpunToday) {
		t.Fatalf("err = %v, want ErrAlreadySpunToday", err)
	}
}

func TestSpinWheel_EmptyHandleUsesLastKnown(t *testing.T) {
	repo := &stubRepo{lastHandle: "bob"}
	svc := NewService(repo, testWheel(t), testClock(t), 3, true)

	if _, err := svc.SpinWheel(context.Background(), 77, ""); err != nil {
		t.Fatalf("SpinWheel error: %v", err)
	}
	if repo.createDraft.Handle != "bob" {
		t.Fatalf("draft handle = %q, want last known handle", repo.createDraft.Handle)
	}
}

func TestCanSpinToday(t *testing.T) {
	repo := &stubRepo{spunToday: true}
	svc := NewService(repo, testWheel(t), testClock(t), 3, true)

	can, err := svc.CanSpinToday(context.Background(), 77)
	if err != nil {
		t.Fatalf("CanSpinToday error: %v", err)
	}
	if can {
		t.Fatalf("must not allow a second spin on the same day")
	}
}

func TestCanSpinToday_CapDisabled(t *testing.T) {
	repo := &stubRepo{spunToday: true}
	svc := NewService(repo, testWheel(t), testClock(t), 3, false)

	can, err := svc.CanSpinToday(context.Background(), 77)
	if err != nil {
		t.Fatalf("CanSpinToday error: %v", err)
	}
	if !can {
		t.Fatalf("disabled cap must always allow spinning")
	}
}

func TestLastHandle_UnknownSentinel(t *testing.T) {
	repo := &stubRepo{lastHandleErr: repository.ErrUserNotFound}
	svc := NewService(repo, testWheel(t), testClock(t), 3, true)

	handle, err := svc.LastHandle(context.Background(), 77)
	if err != nil {
		t.Fatalf("LastHandle error: %v", err)
	}
	if handle != model.HandleUnknown {
		t.Fatalf("handle = %q, want %q", handle, model.HandleUnknown)
	}
}

func TestRedeemCoupon_PassesThroughClassification(t *testing.T) {
	for _, sentinel := range []error{
		repository.ErrHandleNotFound,
		repository.ErrTierNeverGranted,
		repository.ErrAllRedeemedOrExpired,
	} {
		repo := &stubRepo{redeemErr: sentinel}
		svc := NewService(repo, testWheel(t), testClock(t), 3, true)

		_, err := svc.RedeemCoupon(context.Background(), "bob", "10%")
		if !errors.Is(err, sentinel) {
			t.Fatalf("err = %v, want %v", err, sentinel)
		}
	}
}

func TestRedeemCoupon_ForwardsArguments(t *testing.T) {
	repo := &stubRepo{redeemCoupon: &model.Coupon{ID: 5, Redeemed: true}}
	svc := NewService(repo, testWheel(t), testClock(t), 3, true)

	c, err := svc.RedeemCoupon(context.Background(), "bob", "10%")
	if err != nil {
		t.Fatalf("RedeemCoupon error: %v", err)
	}
	if repo.redeemHandle != "bob" || repo.redeemTier != "10%" {
		t.Fatalf("forwarded %q/%q", repo.redeemHandle, repo.redeemTier)
	}
	if !c.Redeemed {
		t.Fatalf("returned coupon must be redeemed")
	}
}

func TestExportData(t *testing.T) {
	repo := &stubRepo{
		allCoupons: []model.Coupon{{ID: 1}},
		allUsers:   []model.UserProfile{{TelegramID: 9}},
	}
	svc := NewService(repo, testWheel(t), testClock(t), 3, true)

	coupons, users, err := svc.ExportData(context.Background())
	if err != nil {
		t.Fatalf("ExportData error: %v", err)
	}
	if len(coupons) != 1 || len(users) != 1 {
		t.Fatalf("export sizes = %d/%d", len(coupons), len(users))
	}
}
