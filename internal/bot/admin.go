package bot

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/botstate"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/repository"
)

// usersPageSize — размер страницы списка пользователей в админ-панели.
const usersPageSize = 10

func (b *Bot) registerAdminHandlers(handler *th.BotHandler) {
	handler.Handle(b.handleAdmin, th.CommandEqual("admin"))

	handler.Handle(b.callbackAdminStats, th.CallbackDataEqual("admin_stats"))
	handler.Handle(b.callbackAdminMenu, th.CallbackDataEqual("back_to_admin"))
	handler.Handle(b.callbackAdminSearch, th.CallbackDataEqual("admin_search"))
	handler.Handle(b.callbackAdminRedeem, th.CallbackDataEqual("admin_redeem"))
	handler.Handle(b.callbackAdminExport, th.CallbackDataEqual("admin_export"))
	handler.Handle(b.callbackAdminUsers, th.CallbackDataPrefix("admin_users"))
}

func (b *Bot) isAdmin(telegramID int64) bool {
	return b.adminID != 0 && telegramID == b.adminID
}

func adminKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("📊 Статистика").WithCallbackData("admin_stats")),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("👥 Пользователи").WithCallbackData("admin_users:1")),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("🔍 Поиск").WithCallbackData("admin_search")),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("✅ Погасить купон").WithCallbackData("admin_redeem")),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("📤 Экспорт").WithCallbackData("admin_export")),
	)
}

// handleAdmin показывает админ-панель. Доступ только для настроенного администратора.
func (b *Bot) handleAdmin(ctx *th.Context, update telego.Update) error {
	telegramID := update.Message.From.ID
	if !b.isAdmin(telegramID) {
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), "⛔ Доступ запрещен."))
		return nil
	}

	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
		"⚙️ *Админ-панель*\n\nВыберите действие:",
	).WithParseMode(telego.ModeMarkdown).WithReplyMarkup(adminKeyboard()))
	return nil
}

func (b *Bot) callbackAdminMenu(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
	if !b.isAdmin(callback.From.ID) {
		return nil
	}

	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(callback.From.ID),
		"⚙️ *Админ-панель*\n\nВыберите действие:",
	).WithParseMode(telego.ModeMarkdown).WithReplyMarkup(adminKeyboard()))
	return nil
}

func (b *Bot) callbackAdminStats(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
	if !b.isAdmin(callback.From.ID) {
		return nil
	}

	stats, err := b.svc.AdminStats(ctx.Context())
	if err != nil {
		return b.replyStorageError(ctx, callback.From.ID, err)
	}

	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("⬅️ Назад").WithCallbackData("back_to_admin"),
			tu.InlineKeyboardButton("🔄 Обновить").WithCallbackData("admin_stats"),
		),
	)

	_, _ = ctx.Bot().SendMessage(ctx.Context(),
		tu.Message(tu.ID(callback.From.ID), formatAdminStats(stats, b.svc.Tiers())).
			WithParseMode(telego.ModeMarkdown).WithReplyMarkup(keyboard))
	return nil
}

// callbackAdminUsers показывает страницу списка пользователей; данные страницы
// зашиты в callback как "admin_users:<номер>".
func (b *Bot) callbackAdminUsers(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
	if !b.isAdmin(callback.From.ID) {
		return nil
	}

	page := 1
	if _, num, found := strings.Cut(callback.Data, ":"); found {
		if parsed, err := strconv.Atoi(num); err == nil && parsed > 0 {
			page = parsed
		}
	}

	summaries, totalPages, err := b.svc.ListUsers(ctx.Context(), page, usersPageSize)
	if err != nil {
		return b.replyStorageError(ctx, callback.From.ID, err)
	}

	var nav []telego.InlineKeyboardButton
	if page > 1 {
		nav = append(nav, tu.InlineKeyboardButton("« Пред.").
			WithCallbackData("admin_users:"+strconv.Itoa(page-1)))
	}
	if page < totalPages {
		nav = append(nav, tu.InlineKeyboardButton("След. »").
			WithCallbackData("admin_users:"+strconv.Itoa(page+1)))
	}

	keyboardRows := [][]telego.InlineKeyboardButton{}
	if len(nav) > 0 {
		keyboardRows = append(keyboardRows, nav)
	}
	keyboardRows = append(keyboardRows, tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("⬅️ Назад").WithCallbackData("back_to_admin"),
	))

	_, _ = ctx.Bot().SendMessage(ctx.Context(),
		tu.Message(tu.ID(callback.From.ID), formatUsersPage(summaries, page, totalPages, b.clock.Today())).
			WithParseMode(telego.ModeMarkdown).
			WithReplyMarkup(tu.InlineKeyboard(keyboardRows...)))
	return nil
}

func (b *Bot) callbackAdminSearch(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
	if !b.isAdmin(callback.From.ID) {
		return nil
	}

	if err := b.states.Set(ctx.Context(), callback.From.ID, botstate.AwaitingSearch); err != nil {
		b.logger.Error("set bot state", zap.Error(err))
	}

	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(callback.From.ID),
		"🔍 *Поиск купонов*\n\nОтправьте username, скидку или кодовое слово для поиска:",
	).WithParseMode(telego.ModeMarkdown))
	return nil
}

// handleAdminSearch выполняет поиск по свободному тексту от администратора.
func (b *Bot) handleAdminSearch(ctx *th.Context, telegramID int64, query string) error {
	if !b.isAdmin(telegramID) {
		return nil
	}

	if err := b.states.Clear(ctx.Context(), telegramID); err != nil {
		b.logger.Error("clear bot state", zap.Error(err))
	}

	query = strings.TrimSpace(query)
	coupons, err := b.svc.SearchCoupons(ctx.Context(), query)
	if err != nil {
		return b.replyStorageError(ctx, telegramID, err)
	}

	if len(coupons) == 0 {
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), "Ничего не найдено."))
		return nil
	}

	_, _ = ctx.Bot().SendMessage(ctx.Context(),
		tu.Message(tu.ID(telegramID), formatSearchResults(query, coupons)).
			WithParseMode(telego.ModeMarkdown))
	return nil
}

func (b *Bot) callbackAdminRedeem(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
	if !b.isAdmin(callback.From.ID) {
		return nil
	}

	if err := b.states.Set(ctx.Context(), callback.From.ID, botstate.AwaitingRedeem); err != nil {
		b.logger.Error("set bot state", zap.Error(err))
	}

	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(callback.From.ID),
		"✅ *Погашение купона*\n\n"+
			"Отправьте Instagram и скидку через пробел, например:\n"+
			"`ivanova 10%`",
	).WithParseMode(telego.ModeMarkdown))
	return nil
}

// handleAdminRedeem гасит самый старый действующий купон по паре (ник, скидка).
func (b *Bot) handleAdminRedeem(ctx *th.Context, telegramID int64, text string) error {
	if !b.isAdmin(telegramID) {
		return nil
	}

	if err := b.states.Clear(ctx.Context(), telegramID); err != nil {
		b.logger.Error("clear bot state", zap.Error(err))
	}

	fields := strings.Fields(text)
	if len(fields) != 2 {
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			"Нужно два значения: Instagram и скидка, например: ivanova 10%"))
		return nil
	}

	handle := normalizeHandle(fields[0])
	tier := fields[1]

	coupon, err := b.svc.RedeemCoupon(ctx.Context(), handle, tier)
	if err != nil {
		reason := redemptionMissText(err)
		if reason == "" {
			return b.replyStorageError(ctx, telegramID, err)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), "❌ "+reason))
		return nil
	}

	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), formatRedeemed(*coupon)).
		WithParseMode(telego.ModeMarkdown))
	return nil
}

// redemptionMissText переводит причину промаха в текст для оператора.
// Возвращает пустую строку для нештатных ошибок.
func redemptionMissText(err error) string {
	switch {
	case errors.Is(err, repository.ErrHandleNotFound):
		return "Пользователь с таким Instagram не найден"
	case errors.Is(err, repository.ErrTierNeverGranted):
		return "У пользователя нет купонов с такой скидкой"
	case errors.Is(err, repository.ErrAllRedeemedOrExpired):
		return "Все купоны с этой скидкой уже использованы или истекли"
	}
	return ""
}

func (b *Bot) callbackAdminExport(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
	if !b.isAdmin(callback.From.ID) {
		return nil
	}

	if err := b.sendExport(ctx, callback.From.ID); err != nil {
		return b.replyStorageError(ctx, callback.From.ID, err)
	}

	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("⬅️ Назад").WithCallbackData("back_to_admin")),
	)
	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(callback.From.ID),
		"✅ Экспорт завершен!\n\nФайлы отправлены выше.").WithReplyMarkup(keyboard))
	return nil
}
