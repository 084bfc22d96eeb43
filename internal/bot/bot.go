// Package bot реализует Telegram-интерфейс купонного сервиса.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/botstate"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/clock"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/model"
	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/repository"
)

// Service описывает контракт бизнес-логики, используемый ботом.
type Service interface {
	SpinWheel(ctx context.Context, telegramID int64, handle string) (*model.Coupon, error)
	CanSpinToday(ctx context.Context, telegramID int64) (bool, error)
	ActiveCoupons(ctx context.Context, telegramID int64) ([]model.Coupon, error)
	UserStats(ctx context.Context, telegramID int64) (*model.UserStats, error)
	LastHandle(ctx context.Context, telegramID int64) (string, error)
	UserExists(ctx context.Context, telegramID int64) (bool, error)
	RedeemCoupon(ctx context.Context, handle, tier string) (*model.Coupon, error)
	AdminStats(ctx context.Context) (*model.AdminStats, error)
	SearchCoupons(ctx context.Context, query string) ([]model.Coupon, error)
	ListUsers(ctx context.Context, page, pageSize int) ([]model.UserSummary, int, error)
	ExportData(ctx context.Context) ([]model.Coupon, []model.UserProfile, error)
	Tiers() []model.Tier
}

// StateStore хранит состояние диалога между апдейтами.
type StateStore interface {
	Set(ctx context.Context, chatID int64, state string) error
	Get(ctx context.Context, chatID int64) (string, error)
	Clear(ctx context.Context, chatID int64) error
}

// Bot обслуживает Telegram-апдейты купонного сервиса.
type Bot struct {
	api     *telego.Bot
	svc     Service
	states  StateStore
	clock   clock.Clock
	logger  *zap.Logger
	adminID int64
}

// New создаёт бота с указанным токеном и зависимостями.
func New(token string, svc Service, states StateStore, clk clock.Clock, logger *zap.Logger, adminID int64) (*Bot, error) {
	api, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Bot{
		api:     api,
		svc:     svc,
		states:  states,
		clock:   clk,
		logger:  logger,
		adminID: adminID,
	}, nil
}

// Run запускает long polling и обрабатывает апдейты до отмены контекста.
func (b *Bot) Run(ctx context.Context) error {
	updates, err := b.api.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.api, updates)
	if err != nil {
		return fmt.Errorf("create bot handler: %w", err)
	}

	b.registerUserHandlers(handler)
	b.registerAdminHandlers(handler)

	// Текстовые сообщения без команды: ответы на запросы ввода.
	handler.Handle(b.handleText, th.AnyMessage())

	go func() {
		<-ctx.Done()
		handler.Stop()
	}()

	b.logger.Info("telegram bot started")
	handler.Start()
	return nil
}

func (b *Bot) registerUserHandlers(handler *th.BotHandler) {
	handler.Handle(b.handleStart, th.CommandEqual("start"))
	handler.Handle(b.handleSpinCommand, th.CommandEqual("spin"))
	handler.Handle(b.handleMyCoupons, th.CommandEqual("mycoupons"))
	handler.Handle(b.handleHelp, th.CommandEqual("help"))
	handler.Handle(b.handleCancel, th.CommandEqual("cancel"))

	handler.Handle(b.callbackSpin, th.CallbackDataEqual("spin_wheel"))
	handler.Handle(b.callbackMyCoupons, th.CallbackDataEqual("show_my_coupons"))
	handler.Handle(b.callbackMyCoupons, th.CallbackDataEqual("refresh_coupons"))
	handler.Handle(b.callbackMyCoupons, th.CallbackDataEqual("back_to_coupons"))
	handler.Handle(b.callbackStats, th.CallbackDataEqual("show_stats"))
	handler.Handle(b.callbackRules, th.CallbackDataEqual("show_rules"))
}

// handleStart регистрирует нового пользователя либо показывает меню существующему.
func (b *Bot) handleStart(ctx *th.Context, update telego.Update) error {
	message := update.Message
	telegramID := message.From.ID

	exists, err := b.svc.UserExists(ctx.Context(), telegramID)
	if err != nil {
		return b.replyStorageError(ctx, telegramID, err)
	}

	if !exists {
		if err := b.states.Set(ctx.Context(), telegramID, botstate.AwaitingHandle); err != nil {
			return b.replyStorageError(ctx, telegramID, err)
		}
		text := fmt.Sprintf(
			"🎡 *Привет, %s!* 👋\n\n"+
				"🎄 *Добро пожаловать в Новогоднее Колесо Удачи!* 🎄\n\n"+
				"Для получения первого купона отправьте ваш Instagram username (без @):",
			message.From.FirstName,
		)
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), text).WithParseMode(telego.ModeMarkdown))
		return nil
	}

	return b.sendUserMenu(ctx, telegramID, message.From.FirstName)
}

// sendUserMenu показывает меню существующего пользователя с учётом суточного лимита.
func (b *Bot) sendUserMenu(ctx *th.Context, telegramID int64, firstName string) error {
	canSpin, err := b.svc.CanSpinToday(ctx.Context(), telegramID)
	if err != nil {
		return b.replyStorageError(ctx, telegramID, err)
	}

	lastHandle, err := b.svc.LastHandle(ctx.Context(), telegramID)
	if err != nil {
		return b.replyStorageError(ctx, telegramID, err)
	}

	text := formatUserMenu(firstName, lastHandle, canSpin)

	var keyboard *telego.InlineKeyboardMarkup
	if canSpin {
		keyboard = tu.InlineKeyboard(
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton("🎡 Крутить колесо").WithCallbackData("spin_wheel"),
			),
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton("🎫 Мои купоны").WithCallbackData("show_my_coupons"),
				tu.InlineKeyboardButton("📊 Статистика").WithCallbackData("show_stats"),
			),
		)
	} else {
		keyboard = tu.InlineKeyboard(
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton("🎫 Мои купоны").WithCallbackData("show_my_coupons"),
			),
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton("📊 Статистика").WithCallbackData("show_stats"),
				tu.InlineKeyboardButton("🎁 Правила").WithCallbackData("show_rules"),
			),
		)
	}

	_, _ = ctx.Bot().SendMessage(ctx.Context(),
		tu.Message(tu.ID(telegramID), text).WithParseMode(telego.ModeMarkdown).WithReplyMarkup(keyboard))
	return nil
}

// handleSpinCommand обрабатывает /spin для зарегистрированных пользователей.
func (b *Bot) handleSpinCommand(ctx *th.Context, update telego.Update) error {
	telegramID := update.Message.From.ID

	exists, err := b.svc.UserExists(ctx.Context(), telegramID)
	if err != nil {
		return b.replyStorageError(ctx, telegramID, err)
	}
	if !exists {
		_, _ = ctx.Bot().SendMessage(ctx.Context(),
			tu.Message(tu.ID(telegramID), "Вы еще не зарегистрированы! Используйте /start для начала."))
		return nil
	}

	return b.performSpin(ctx, telegramID, "")
}

func (b *Bot) callbackSpin(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
	return b.performSpin(ctx, callback.From.ID, "")
}

// performSpin крутит колесо: анимация, выдача купона, сообщение с результатом.
func (b *Bot) performSpin(ctx *th.Context, telegramID int64, handle string) error {
	wheelMsg, _ := ctx.Bot().SendMessage(ctx.Context(),
		tu.Message(tu.ID(telegramID), "🎡 Крутим новогоднее колесо...\n🎄🎁🌟⛄❄️"))

	frames := []string{
		"❄️...🎄...🎁...🌟...⛄",
		"⛄...❄️...🎄...🎁...🌟",
		"🌟...⛄...❄️...🎄...🎁",
	}
	for _, frame := range frames {
		time.Sleep(400 * time.Millisecond)
		if wheelMsg != nil {
			_, _ = ctx.Bot().EditMessageText(ctx.Context(), &telego.EditMessageTextParams{
				ChatID:    tu.ID(telegramID),
				MessageID: wheelMsg.MessageID,
				Text:      "🎡 Крутим новогоднее колесо...\n" + frame,
			})
		}
	}

	coupon, err := b.svc.SpinWheel(ctx.Context(), telegramID, handle)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadySpunToday) {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
				"⏳ *Вы уже крутили колесо сегодня!*\n\n"+
					"Новый купон будет доступен завтра.\n"+
					"Используйте /mycoupons чтобы посмотреть активные купоны.",
			).WithParseMode(telego.ModeMarkdown))
			return nil
		}
		return b.replyStorageError(ctx, telegramID, err)
	}

	if wheelMsg != nil {
		_, _ = ctx.Bot().EditMessageText(ctx.Context(), &telego.EditMessageTextParams{
			ChatID:    tu.ID(telegramID),
			MessageID: wheelMsg.MessageID,
			Text:      "🎡 Колесо остановилось!",
		})
	}

	_, _ = ctx.Bot().SendMessage(ctx.Context(),
		tu.Message(tu.ID(telegramID), formatSpinResult(*coupon, b.tierEmoji(coupon.Tier))).
			WithParseMode(telego.ModeMarkdown))

	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🎫 Мои купоны").WithCallbackData("show_my_coupons"),
			tu.InlineKeyboardButton("📊 Статистика").WithCallbackData("show_stats"),
		),
	)
	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
		"📋 *Что дальше?*\n"+
			"• Используйте /mycoupons чтобы посмотреть все купоны\n"+
			"• Новый купон - завтра!\n"+
			"• Удачных покупок!",
	).WithParseMode(telego.ModeMarkdown).WithReplyMarkup(keyboard))

	return nil
}

// handleMyCoupons показывает действующие купоны пользователя.
func (b *Bot) handleMyCoupons(ctx *th.Context, update telego.Update) error {
	return b.sendActiveCoupons(ctx, update.Message.From.ID)
}

func (b *Bot) callbackMyCoupons(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
	return b.sendActiveCoupons(ctx, callback.From.ID)
}

func (b *Bot) sendActiveCoupons(ctx *th.Context, telegramID int64) error {
	coupons, err := b.svc.ActiveCoupons(ctx.Context(), telegramID)
	if err != nil {
		return b.replyStorageError(ctx, telegramID, err)
	}
	stats, err := b.svc.UserStats(ctx.Context(), telegramID)
	if err != nil {
		return b.replyStorageError(ctx, telegramID, err)
	}

	text := formatActiveCoupons(coupons, stats, b.clock.Today())

	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🎡 Получить новый").WithCallbackData("spin_wheel"),
			tu.InlineKeyboardButton("🔄 Обновить").WithCallbackData("refresh_coupons"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("📊 Статистика").WithCallbackData("show_stats"),
			tu.InlineKeyboardButton("🎁 Правила").WithCallbackData("show_rules"),
		),
	)

	_, _ = ctx.Bot().SendMessage(ctx.Context(),
		tu.Message(tu.ID(telegramID), text).WithParseMode(telego.ModeMarkdown).WithReplyMarkup(keyboard))
	return nil
}

func (b *Bot) callbackStats(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))

	stats, err := b.svc.UserStats(ctx.Context(), callback.From.ID)
	if err != nil {
		return b.replyStorageError(ctx, callback.From.ID, err)
	}

	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🎫 Мои купоны").WithCallbackData("show_my_coupons"),
			tu.InlineKeyboardButton("🎡 Крутить").WithCallbackData("spin_wheel"),
		),
	)

	_, _ = ctx.Bot().SendMessage(ctx.Context(),
		tu.Message(tu.ID(callback.From.ID), formatUserStats(stats)).
			WithParseMode(telego.ModeMarkdown).WithReplyMarkup(keyboard))
	return nil
}

func (b *Bot) callbackRules(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))

	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🎫 Мои купоны").WithCallbackData("show_my_coupons"),
			tu.InlineKeyboardButton("⬅️ Назад").WithCallbackData("back_to_coupons"),
		),
	)

	_, _ = ctx.Bot().SendMessage(ctx.Context(),
		tu.Message(tu.ID(callback.From.ID), rulesText).
			WithParseMode(telego.ModeMarkdown).WithReplyMarkup(keyboard))
	return nil
}

// handleHelp отвечает на /help справкой с таблицей кодовых слов.
func (b *Bot) handleHelp(ctx *th.Context, update telego.Update) error {
	_, _ = ctx.Bot().SendMessage(ctx.Context(),
		tu.Message(tu.ID(update.Message.From.ID), formatHelp(b.svc.Tiers())).
			WithParseMode(telego.ModeMarkdown))
	return nil
}

// handleCancel сбрасывает ожидание ввода.
func (b *Bot) handleCancel(ctx *th.Context, update telego.Update) error {
	telegramID := update.Message.From.ID
	if err := b.states.Clear(ctx.Context(), telegramID); err != nil {
		b.logger.Error("clear bot state", zap.Error(err))
	}
	_, _ = ctx.Bot().SendMessage(ctx.Context(),
		tu.Message(tu.ID(telegramID), "Операция отменена. Используйте /start для начала."))
	return nil
}

// handleText маршрутизирует свободный текст по состоянию диалога.
func (b *Bot) handleText(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message == nil || message.From == nil {
		return nil
	}
	telegramID := message.From.ID

	state, err := b.states.Get(ctx.Context(), telegramID)
	if err != nil {
		b.logger.Error("get bot state", zap.Error(err))
		return nil
	}

	switch state {
	case botstate.AwaitingHandle:
		return b.handleNewHandle(ctx, telegramID, message.Text)
	case botstate.AwaitingSearch:
		return b.handleAdminSearch(ctx, telegramID, message.Text)
	case botstate.AwaitingRedeem:
		return b.handleAdminRedeem(ctx, telegramID, message.Text)
	}
	return nil
}

// handleNewHandle принимает Instagram-ник нового пользователя и сразу крутит колесо.
func (b *Bot) handleNewHandle(ctx *th.Context, telegramID int64, text string) error {
	handle := normalizeHandle(text)
	if handle == "" || len(handle) > 100 {
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			"Пожалуйста, введите корректный Instagram username (без @):"))
		return nil
	}

	if err := b.states.Clear(ctx.Context(), telegramID); err != nil {
		b.logger.Error("clear bot state", zap.Error(err))
	}

	return b.performSpin(ctx, telegramID, handle)
}

func (b *Bot) tierEmoji(label string) string {
	for _, tr := range b.svc.Tiers() {
		if tr.Label == label {
			return tr.Emoji
		}
	}
	return "🎁"
}

func (b *Bot) replyStorageError(ctx *th.Context, telegramID int64, err error) error {
	b.logger.Error("bot handler storage error", zap.Int64("telegram_id", telegramID), zap.Error(err))
	_, _ = ctx.Bot().SendMessage(ctx.Context(),
		tu.Message(tu.ID(telegramID), "❌ Произошла ошибка. Пожалуйста, попробуйте позже."))
	return nil
}
