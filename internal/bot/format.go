package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/model"
)

const dateLayout = "02.01.2006"

const rulesText = "✅ *Правила использования купонов:*\n\n" +
	"1. Один купон = один заказ\n" +
	"2. Купон действует 3 дня с момента получения\n" +
	"3. Кодовое слово нельзя передавать другим\n" +
	"4. Можно получить один купон в день\n" +
	"5. Купон нельзя обменять или вернуть\n" +
	"6. Купон привязан к вашему Instagram\n\n" +
	"❌ *Купон недействителен если:*\n" +
	"• Истек срок действия\n" +
	"• Уже использован\n" +
	"• Передан другому человеку\n" +
	"• Instagram не совпадает\n\n" +
	"🎄 Приятных покупок!"

// normalizeHandle приводит пользовательский ввод к виду ника без @ и пробелов.
func normalizeHandle(text string) string {
	return strings.TrimPrefix(strings.TrimSpace(text), "@")
}

// daysLeftText описывает срок жизни купона: "N дн." либо "сегодня" в день истечения.
func daysLeftText(c model.Coupon, today time.Time) string {
	if days := c.DaysLeft(today); days > 0 {
		return fmt.Sprintf("%d дн.", days)
	}
	return "сегодня"
}

func urgencyEmoji(c model.Coupon, today time.Time) string {
	switch days := c.DaysLeft(today); {
	case days <= 1:
		return "⏰"
	case days <= 2:
		return "⚠️"
	default:
		return "🕒"
	}
}

func formatUserMenu(firstName, lastHandle string, canSpin bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎡 *С возвращением, %s!*\n\n", firstName)
	fmt.Fprintf(&sb, "*Ваш Instagram:* @%s\n\n", lastHandle)

	if canSpin {
		sb.WriteString("*Сегодня вы можете:*\n" +
			"1. 🎡 Крутить колесо (новый купон)\n" +
			"2. 🎫 Смотреть активные купоны\n" +
			"3. 📊 Посмотреть статистику\n\n")
	} else {
		sb.WriteString("*Вы уже крутили колесо сегодня.*\n" +
			"Новый купон будет доступен завтра!\n\n" +
			"*Сегодня вы можете:*\n" +
			"1. 🎫 Смотреть активные купоны\n" +
			"2. 📊 Посмотреть статистику\n" +
			"3. 🎁 Посмотреть правила\n\n")
	}

	sb.WriteString("🎄 *Выберите действие:*")
	return sb.String()
}

func formatSpinResult(c model.Coupon, emoji string) string {
	return fmt.Sprintf(
		"%s *🎉 ПОЗДРАВЛЯЕМ! 🎉*\n\n"+
			"✨ *Ваш новогодний подарок:*\n"+
			"📊 *Скидка:* %s\n"+
			"🎭 *Кодовое слово:* %s\n"+
			"📅 *Действует:* с %s до %s\n"+
			"📱 *Instagram:* @%s\n\n"+
			"🎄 *Как использовать:*\n"+
			"1. Сделайте заказ\n"+
			"2. Назовите кодовое слово\n"+
			"3. Получите скидку!\n\n"+
			"⭐ *Важная информация:*\n"+
			"• Купон действует 3 дня\n"+
			"• Один купон на один заказ\n"+
			"• Не передавайте кодовое слово другим\n\n"+
			"🎁 *Счастливого Нового Года!*",
		emoji, c.Tier, c.CodeWord,
		c.CreatedAt.Format(dateLayout), c.ValidUntil.Format(dateLayout),
		c.Handle,
	)
}

func formatActiveCoupons(coupons []model.Coupon, stats *model.UserStats, today time.Time) string {
	if len(coupons) == 0 {
		return fmt.Sprintf(
			"🎫 *Ваши купоны*\n\n"+
				"У вас пока нет активных купонов.\n\n"+
				"🎯 *Статистика:*\n"+
				"• Всего получено: %d\n"+
				"• Использовано: %d\n\n"+
				"🎡 Используйте /start чтобы получить новый купон!",
			stats.Total, stats.Redeemed,
		)
	}

	var sb strings.Builder
	sb.WriteString("🎫 *ВАШИ АКТИВНЫЕ КУПОНЫ*\n\n")
	fmt.Fprintf(&sb, "📊 *Статистика:*\n• Активных: %d\n• Всего получено: %d\n• Использовано: %d\n\n",
		len(coupons), stats.Total, stats.Redeemed)
	sb.WriteString(strings.Repeat("=", 30) + "\n\n")

	for i, c := range coupons {
		fmt.Fprintf(&sb,
			"🎄 *Купон #%d*\n"+
				"🎁 *Скидка:* %s\n"+
				"🔤 *Кодовое слово:* %s\n"+
				"📅 *Получен:* %s\n"+
				"⏳ *Действует до:* %s\n"+
				"%s *Осталось:* %s\n",
			i+1, c.Tier, c.CodeWord,
			c.CreatedAt.Format(dateLayout), c.ValidUntil.Format(dateLayout),
			urgencyEmoji(c, today), daysLeftText(c, today),
		)
		if i < len(coupons)-1 {
			sb.WriteString("\n" + strings.Repeat("-", 25) + "\n\n")
		}
	}

	return sb.String()
}

func formatUserStats(stats *model.UserStats) string {
	return fmt.Sprintf(
		"📊 *Ваша статистика:*\n\n"+
			"🎯 Всего купонов: %d\n"+
			"✅ Использовано: %d\n"+
			"🔄 Активных: %d",
		stats.Total, stats.Redeemed, stats.Active,
	)
}

func formatHelp(tiers []model.Tier) string {
	var sb strings.Builder
	sb.WriteString(
		"🎡 *Новогоднее Колесо Удачи*\n\n" +
			"🎯 *Доступные команды:*\n" +
			"/start - Начать или проверить купоны\n" +
			"/spin - Крутить колесо\n" +
			"/mycoupons - Мои активные купоны\n" +
			"/help - Эта справка\n\n" +
			"🎁 *Как это работает:*\n" +
			"1. Крутите колесо раз в день\n" +
			"2. Получаете скидку и кодовое слово\n" +
			"3. Используете кодовое слово при заказе\n" +
			"4. Получаете скидку!\n\n" +
			"🎄 *Кодовые слова:*\n")

	for _, tr := range tiers {
		fmt.Fprintf(&sb, "• %s %s - %s скидка\n", tr.Emoji, tr.CodeWord, tr.Label)
	}

	sb.WriteString(
		"\n📅 *Правила:*\n" +
			"• Один купон в день на человека\n" +
			"• Купон действует 3 дня\n" +
			"• Кодовое слово не передавать другим\n" +
			"• Используйте /mycoupons для просмотра\n\n" +
			"🎉 *Счастливого Нового Года!*")
	return sb.String()
}

func formatAdminStats(stats *model.AdminStats, tiers []model.Tier) string {
	codeWords := make(map[string]string, len(tiers))
	for _, tr := range tiers {
		codeWords[tr.Label] = tr.CodeWord
	}

	var sb strings.Builder
	sb.WriteString("📊 *Статистика бота*\n\n")
	fmt.Fprintf(&sb, "📊 *Общая статистика:*\n• Всего купонов: %d\n• Уникальных пользователей: %d\n• Купонов сегодня: %d\n\n",
		stats.TotalCoupons, stats.UniqueUsers, stats.CouponsToday)

	sb.WriteString("🎯 *Распределение купонов:*\n")
	for _, tc := range stats.Distribution {
		percentage := 0.0
		if stats.TotalCoupons > 0 {
			percentage = float64(tc.Count) / float64(stats.TotalCoupons) * 100
		}
		codeWord := codeWords[tc.Tier]
		if codeWord == "" {
			codeWord = "N/A"
		}
		fmt.Fprintf(&sb, "• %s (%s): %d (%.1f%%)\n", tc.Tier, codeWord, tc.Count, percentage)
	}

	sb.WriteString("\n👥 *Топ пользователей:*\n")
	for i, u := range stats.TopUsers {
		if i >= 5 {
			break
		}
		handle := u.Handle
		if handle == "" {
			handle = "N/A"
		}
		fmt.Fprintf(&sb, "%d. @%s - %d спинов\n", i+1, handle, u.SpinCount)
	}

	return sb.String()
}

func formatSearchResults(query string, coupons []model.Coupon) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 *Результаты поиска: '%s'*\n\n", query)

	shown := coupons
	if len(shown) > 10 {
		shown = shown[:10]
	}

	for i, c := range shown {
		status := "🔄 Активен"
		if c.Redeemed {
			status = "✅ Использован"
		}
		fmt.Fprintf(&sb,
			"%d. 🎁 %s (%s)\n   👤: @%s\n   📅: %s\n   ⏳: до %s\n   🏷️: %s\n%s\n",
			i+1, c.Tier, c.CodeWord, c.Handle,
			c.CreatedAt.Format(dateLayout), c.ValidUntil.Format(dateLayout),
			status, strings.Repeat("-", 30),
		)
	}

	if len(coupons) > 10 {
		fmt.Fprintf(&sb, "\n... и еще %d результатов", len(coupons)-10)
	}

	return sb.String()
}

func formatUsersPage(summaries []model.UserSummary, page, totalPages int, today time.Time) string {
	if len(summaries) == 0 {
		return "Пользователей нет."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 *Пользователи (стр. %d/%d):*\n\n", page, totalPages)

	for i, sum := range summaries {
		handle := sum.Profile.Handle
		if handle == "" {
			handle = "N/A"
		}
		fmt.Fprintf(&sb,
			"%d. ID: %d\n   👤: @%s\n   📅: %s\n   🎯: %d спинов\n   🎁: %d купонов\n",
			i+1, sum.Profile.TelegramID, handle,
			sum.Profile.FirstSeenAt.Format(dateLayout),
			sum.Profile.SpinCount, sum.TotalIssued,
		)

		for _, c := range sum.Active {
			fmt.Fprintf(&sb, "   🎫 %s (%s), осталось %s\n", c.Tier, c.CodeWord, daysLeftText(c, today))
		}
		if sum.MoreActive > 0 {
			fmt.Fprintf(&sb, "   ... и еще %d активных\n", sum.MoreActive)
		}
		sb.WriteString(strings.Repeat("-", 30) + "\n")
	}

	return sb.String()
}

func formatRedeemed(c model.Coupon) string {
	return fmt.Sprintf(
		"✅ *Купон погашен!*\n\n"+
			"🎁 Скидка: %s\n"+
			"🔤 Кодовое слово: %s\n"+
			"👤 Instagram: @%s\n"+
			"📅 Выдан: %s",
		c.Tier, c.CodeWord, c.Handle, c.CreatedAt.Format(dateLayout),
	)
}
