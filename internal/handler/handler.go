// Package handler содержит HTTP-обработчики админ-API купонного сервиса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/middleware"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/model"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/repository"
)

// usersPageSize — размер страницы списка пользователей в админ-API.
const usersPageSize = 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	AdminStats(ctx context.Context) (*model.AdminStats, error)
	SearchCoupons(ctx context.Context, query string) ([]model.Coupon, error)
	ListUsers(ctx context.Context, page, pageSize int) ([]model.UserSummary, int, error)
	RedeemCoupon(ctx context.Context, handle, tier string) (*model.Coupon, error)
}

// Handler реализует HTTP-обработчики админ-API.
type Handler struct {
	service Service
	logger  *zap.Logger
	auth    *middleware.TokenAuth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.TokenAuth) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
		auth:    auth,
	}
}

type couponResponse struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Handle     string    `json:"handle"`
	Tier       string    `json:"tier"`
	CodeWord   string    `json:"code_word"`
	CreatedAt  time.Time `json:"created_at"`
	ValidUntil time.Time `json:"valid_until"`
	Redeemed   bool      `json:"redeemed"`
}

func toCouponResponse(c model.Coupon) couponResponse {
	return couponResponse{
		ID:         c.ID,
		TelegramID: c.TelegramID,
		Handle:     c.Handle,
		Tier:       c.Tier,
		CodeWord:   c.CodeWord,
		CreatedAt:  c.CreatedAt,
		ValidUntil: c.ValidUntil,
		Redeemed:   c.Redeemed,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// Health отвечает 200 без авторизации; используется для проверки живости.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Stats отдаёт сводную статистику купонов.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.AdminStats(r.Context())
	if err != nil {
		h.logger.Error("admin stats error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	type tierCount struct {
		Tier  string `json:"tier"`
		Count int64  `json:"count"`
	}
	type topUser struct {
		TelegramID int64  `json:"telegram_id"`
		Handle     string `json:"handle"`
		SpinCount  int64  `json:"spin_count"`
	}
	resp := struct {
		TotalCoupons int64       `json:"total_coupons"`
		UniqueUsers  int64       `json:"unique_users"`
		CouponsToday int64       `json:"coupons_today"`
		Distribution []tierCount `json:"distribution"`
		TopUsers     []topUser   `json:"top_users"`
	}{
		TotalCoupons: stats.TotalCoupons,
		UniqueUsers:  stats.UniqueUsers,
		CouponsToday: stats.CouponsToday,
	}
	for _, tc := range stats.Distribution {
		resp.Distribution = append(resp.Distribution, tierCount{Tier: tc.Tier, Count: tc.Count})
	}
	for _, u := range stats.TopUsers {
		resp.TopUsers = append(resp.TopUsers, topUser{TelegramID: u.TelegramID, Handle: u.Handle, SpinCount: u.SpinCount})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Search ищет купоны по подстроке из параметра q.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	coupons, err := h.service.SearchCoupons(r.Context(), query)
	if err != nil {
		h.logger.Error("search coupons error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]couponResponse, 0, len(coupons))
	for _, c := range coupons {
		resp = append(resp, toCouponResponse(c))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Users отдаёт страницу пользователей с превью активных купонов.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		page = parsed
	}

	summaries, totalPages, err := h.service.ListUsers(r.Context(), page, usersPageSize)
	if err != nil {
		h.logger.Error("list users error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	type userSummary struct {
		TelegramID  int64            `json:"telegram_id"`
		Handle      string           `json:"handle"`
		FirstSeenAt time.Time        `json:"first_seen_at"`
		SpinCount   int64            `json:"spin_count"`
		TotalIssued int64            `json:"total_issued"`
		Active      []couponResponse `json:"active_coupons"`
		MoreActive  int              `json:"more_active"`
	}
	resp := struct {
		Page       int           `json:"page"`
		TotalPages int           `json:"total_pages"`
		Users      []userSummary `json:"users"`
	}{Page: page, TotalPages: totalPages}

	for _, sum := range summaries {
		u := userSummary{
			TelegramID:  sum.Profile.TelegramID,
			Handle:      sum.Profile.Handle,
			FirstSeenAt: sum.Profile.FirstSeenAt,
			SpinCount:   sum.Profile.SpinCount,
			TotalIssued: sum.TotalIssued,
			MoreActive:  sum.MoreActive,
		}
		for _, c := range sum.Active {
			u.Active = append(u.Active, toCouponResponse(c))
		}
		resp.Users = append(resp.Users, u)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type redeemRequest struct {
	Handle string `json:"handle"`
	Tier   string `json:"tier"`
}

// Redeem гасит самый старый действующий купон с указанными ником и скидкой.
// Промах отдаётся как 404 с машинно-читаемой причиной.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Handle == "" || req.Tier == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	coupon, err := h.service.RedeemCoupon(r.Context(), req.Handle, req.Tier)
	if err != nil {
		if reason := redemptionMissReason(err); reason != "" {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"reason": reason})
			return
		}
		h.logger.Error("redeem coupon error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toCouponResponse(*coupon))
}

func redemptionMissReason(err error) string {
	switch {
	case errors.Is(err, repository.ErrHandleNotFound):
		return "handle_not_found"
	case errors.Is(err, repository.ErrTierNeverGranted):
		return "tier_never_granted"
	case errors.Is(err, repository.ErrAllRedeemedOrExpired):
		return "all_redeemed_or_expired"
	}
	return ""
}
