package bot

import (
	"bytes"
	"encoding/csv"
	"fmt"

	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/model"
)

const timestampLayout = "02.01.2006 15:04"

// sendExport выгружает оператору два CSV-файла: купоны и пользователей.
func (b *Bot) sendExport(ctx *th.Context, telegramID int64) error {
	coupons, users, err := b.svc.ExportData(ctx.Context())
	if err != nil {
		return err
	}

	couponsCSV, err := renderCouponsCSV(coupons)
	if err != nil {
		return err
	}
	usersCSV, err := renderUsersCSV(users)
	if err != nil {
		return err
	}

	_, err = ctx.Bot().SendDocument(ctx.Context(),
		tu.Document(tu.ID(telegramID),
			tu.File(tu.NameReader(bytes.NewReader(couponsCSV), "coupons_export.csv")),
		).WithCaption("📤 Экспорт купонов"))
	if err != nil {
		return fmt.Errorf("send coupons export: %w", err)
	}

	_, err = ctx.Bot().SendDocument(ctx.Context(),
		tu.Document(tu.ID(telegramID),
			tu.File(tu.NameReader(bytes.NewReader(usersCSV), "users_export.csv")),
		).WithCaption("📤 Экспорт пользователей"))
	if err != nil {
		return fmt.Errorf("send users export: %w", err)
	}

	return nil
}

func renderCouponsCSV(coupons []model.Coupon) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Дата создания", "Instagram", "Скидка", "Кодовое слово", "Действует до", "Использован"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, c := range coupons {
		used := "Нет"
		if c.Redeemed {
			used = "Да"
		}
		record := []string{
			c.CreatedAt.Format(timestampLayout),
			c.Handle,
			c.Tier,
			c.CodeWord,
			c.ValidUntil.Format(timestampLayout),
			used,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderUsersCSV(users []model.UserProfile) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Telegram ID", "Instagram", "Дата регистрации", "Всего спинов"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, u := range users {
		record := []string{
			fmt.Sprintf("%d", u.TelegramID),
			u.Handle,
			u.FirstSeenAt.Format(timestampLayout),
			fmt.Sprintf("%d", u.SpinCount),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
