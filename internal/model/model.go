// Package model содержит доменные сущности купонного сервиса.
package model

import "time"

// HandleUnknown возвращается вместо Instagram-ника, если пользователь ещё не оставлял его.
const HandleUnknown = "unknown"

// Tier описывает один сектор колеса: скидку, её вес и кодовое слово.
type Tier struct {
	Label    string `json:"label"`
	Weight   int    `json:"weight"`
	CodeWord string `json:"code_word"`
	Emoji    string `json:"emoji"`
}

// Coupon представляет один выданный купон.
type Coupon struct {
	ID         int64
	TelegramID int64
	Handle     string
	Tier       string
	CodeWord   string
	CreatedAt  time.Time
	ValidUntil time.Time
	Redeemed   bool
}

// ActiveAt сообщает, действует ли купон в указанные календарные сутки.
// День истечения включается: купон активен, пока valid_until не раньше
// начала суток today.
func (c Coupon) ActiveAt(today time.Time) bool {
	return !c.Redeemed && !c.ValidUntil.Before(today)
}

// DaysLeft возвращает число календарных дней до истечения купона.
// В день истечения возвращает 0.
func (c Coupon) DaysLeft(today time.Time) int {
	expiryDay := time.Date(
		c.ValidUntil.Year(), c.ValidUntil.Month(), c.ValidUntil.Day(),
		0, 0, 0, 0, c.ValidUntil.Location(),
	)
	days := int(expiryDay.Sub(today).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// UserProfile описывает пользователя, получавшего купоны.
type UserProfile struct {
	TelegramID  int64
	Handle      string
	FirstSeenAt time.Time
	SpinCount   int64
}

// UserStats содержит производную статистику по купонам одного пользователя.
type UserStats struct {
	Total     int64
	Redeemed  int64
	Active    int64
	FirstSpin *time.Time
}

// TierCount — количество выданных купонов одного номинала.
type TierCount struct {
	Tier  string
	Count int64
}

// AdminStats содержит сводную статистику для админ-панели.
type AdminStats struct {
	TotalCoupons int64
	UniqueUsers  int64
	CouponsToday int64
	Distribution []TierCount
	TopUsers     []UserProfile
}

// UserSummary — пользователь с превью его активных купонов для постраничного списка.
type UserSummary struct {
	Profile     UserProfile
	Active      []Coupon
	MoreActive  int
	TotalIssued int64
}
