// Package service реализует бизнес-логику купонного сервиса.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/clock"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/model"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/repository"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/wheel"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateCoupon(ctx context.Context, d repository.CouponDraft) (*model.Coupon, error)
	HasSpunToday(ctx context.Context, telegramID int64, day time.Time) (bool, error)
	ActiveCoupons(ctx context.Context, telegramID int64, today time.Time) ([]model.Coupon, error)
	UserStats(ctx context.Context, telegramID int64, today time.Time) (*model.UserStats, error)
	LastHandle(ctx context.Context, telegramID int64) (string, error)
	UserExists(ctx context.Context, telegramID int64) (bool, error)
	AdminStats(ctx context.Context, today time.Time) (*model.AdminStats, error)
	SearchCoupons(ctx context.Context, query string) ([]model.Coupon, error)
	ListUsers(ctx context.Context, page, pageSize int, today time.Time) ([]model.UserSummary, int, error)
	MarkRedeemed(ctx context.Context, handle, tier string, today time.Time) (*model.Coupon, error)
	AllCoupons(ctx context.Context) ([]model.Coupon, error)
	AllUsers(ctx context.Context) ([]model.UserProfile, error)
}

// Service содержит бизнес-логику выдачи и погашения купонов.
type Service struct {
	repo         Repository
	wheel        *wheel.Wheel
	clock        clock.Clock
	validityDays int
	dailyCap     bool
}

// NewService создаёт сервис с указанными репозиторием, колесом и часами.
func NewService(repo Repository, w *wheel.Wheel, clk clock.Clock, validityDays int, dailyCap bool) *Service {
	return &Service{
		repo:         repo,
		wheel:        w,
		clock:        clk,
		validityDays: validityDays,
		dailyCap:     dailyCap,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// SpinWheel выдаёт пользователю один купон: проверяет суточный лимит,
// выбирает скидку по весам и атомарно записывает выдачу. Пустой handle
// заменяется последним известным ником пользователя.
func (s *Service) SpinWheel(ctx context.Context, telegramID int64, handle string) (*model.Coupon, error) {
	if handle == "" {
		last, err := s.repo.LastHandle(ctx, telegramID)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		handle = last
	}

	now := s.clock.Now()
	tier := s.wheel.Spin()

	coupon, err := s.repo.CreateCoupon(ctx, repository.CouponDraft{
		TelegramID:      telegramID,
		Handle:          handle,
		Tier:            tier.Label,
		CodeWord:        tier.CodeWord,
		CreatedAt:       now,
		GrantedOn:       clock.Midnight(now),
		ValidUntil:      now.AddDate(0, 0, s.validityDays),
		EnforceDailyCap: s.dailyCap,
	})
	if err != nil {
		return nil, err
	}

	return coupon, nil
}

// CanSpinToday сообщает, доступно ли пользователю вращение сегодня.
func (s *Service) CanSpinToday(ctx context.Context, telegramID int64) (bool, error) {
	if !s.dailyCap {
		return true, nil
	}
	spun, err := s.repo.HasSpunToday(ctx, telegramID, s.clock.Today())
	if err != nil {
		return false, err
	}
	return !spun, nil
}

// ActiveCoupons возвращает действующие купоны пользователя, новые первыми.
func (s *Service) ActiveCoupons(ctx context.Context, telegramID int64) ([]model.Coupon, error) {
	return s.repo.ActiveCoupons(ctx, telegramID, s.clock.Today())
}

// UserStats возвращает статистику пользователя.
func (s *Service) UserStats(ctx context.Context, telegramID int64) (*model.UserStats, error) {
	return s.repo.UserStats(ctx, telegramID, s.clock.Today())
}

// LastHandle возвращает последний Instagram-ник пользователя либо
// model.HandleUnknown, если ника ещё не было.
func (s *Service) LastHandle(ctx context.Context, telegramID int64) (string, error) {
	handle, err := s.repo.LastHandle(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.HandleUnknown, nil
		}
		return "", err
	}
	return handle, nil
}

// UserExists сообщает, получал ли пользователь хотя бы один купон.
func (s *Service) UserExists(ctx context.Context, telegramID int64) (bool, error) {
	return s.repo.UserExists(ctx, telegramID)
}

// RedeemCoupon помечает использованным самый старый действующий купон с
// указанными ником и скидкой. Скидка сверяется с журналом, а не с текущей
// таблицей колеса: исторические номиналы остаются погашаемыми после смены
// конфигурации.
func (s *Service) RedeemCoupon(ctx context.Context, handle, tier string) (*model.Coupon, error) {
	return s.repo.MarkRedeemed(ctx, handle, tier, s.clock.Today())
}

// AdminStats возвращает сводную статистику для админ-панели.
func (s *Service) AdminStats(ctx context.Context) (*model.AdminStats, error) {
	return s.repo.AdminStats(ctx, s.clock.Today())
}

// SearchCoupons ищет купоны по подстроке.
func (s *Service) SearchCoupons(ctx context.Context, query string) ([]model.Coupon, error) {
	return s.repo.SearchCoupons(ctx, query)
}

// ListUsers возвращает страницу пользователей с превью активных купонов.
func (s *Service) ListUsers(ctx context.Context, page, pageSize int) ([]model.UserSummary, int, error) {
	return s.repo.ListUsers(ctx, page, pageSize, s.clock.Today())
}

// ExportData возвращает полные списки купонов и пользователей для выгрузки.
func (s *Service) ExportData(ctx context.Context) ([]model.Coupon, []model.UserProfile, error) {
	coupons, err := s.repo.AllCoupons(ctx)
	if err != nil {
		return nil, nil, err
	}
	users, err := s.repo.AllUsers(ctx)
	if err != nil {
		return nil, nil, err
	}
	return coupons, users, nil
}

// Tiers возвращает таблицу секторов колеса в порядке конфигурации.
func (s *Service) Tiers() []model.Tier {
	return s.wheel.Tiers()
}
