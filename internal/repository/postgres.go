// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrAlreadySpunToday возвращается при попытке выдать второй купон за одни календарные сутки.
var (
	ErrAlreadySpunToday = errors.New("coupon already granted today")
	// ErrUserNotFound возвращается, если пользователь ещё не получал ни одного купона.
	ErrUserNotFound = errors.New("user not found")
	// ErrHandleNotFound возвращается, если указанный Instagram ни разу не встречался в купонах.
	ErrHandleNotFound = errors.New("handle not found")
	// ErrTierNeverGranted возвращается, если у пользователя не было купонов с такой скидкой.
	ErrTierNeverGranted = errors.New("tier never granted to this handle")
	// ErrAllRedeemedOrExpired возвращается, если все подходящие купоны уже использованы или истекли.
	ErrAllRedeemedOrExpired = errors.New("all matching coupons redeemed or expired")
)

// searchLimit ограничивает размер выдачи поиска по купонам.
const searchLimit = 50

// PostgresRepository предоставляет доступ к журналу купонов в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Повторяем только транзакционные конфликты, остальное отдаём наверх.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CouponDraft описывает купон, подготовленный к записи в журнал.
type CouponDraft struct {
	TelegramID      int64
	Handle          string
	Tier            string
	CodeWord        string
	CreatedAt       time.Time
	GrantedOn       time.Time
	ValidUntil      time.Time
	EnforceDailyCap bool
}

// CreateCoupon атомарно записывает купон и обновляет профиль пользователя.
// Строка пользователя блокируется на время транзакции, поэтому конкурентные
// запросы одного и того же пользователя сериализуются и суточный лимит не
// может быть превышен гонкой «проверил — вставил».
func (r *PostgresRepository) CreateCoupon(ctx context.Context, d CouponDraft) (*model.Coupon, error) {
	var coupon *model.Coupon

	err := r.withRetry(ctx, func() error {
		c, err := r.createCouponTx(ctx, d)
		if err != nil {
			return err
		}
		coupon = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return coupon, nil
}

func (r *PostgresRepository) createCouponTx(ctx context.Context, d CouponDraft) (*model.Coupon, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Upsert профиля берёт блокировку строки и сериализует выдачу для одного
	// пользователя; запросы разных пользователей не конкурируют.
	_, err = tx.Exec(ctx,
		`INSERT INTO users (telegram_id, handle, first_seen_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (telegram_id) DO UPDATE SET handle = EXCLUDED.handle`,
		d.TelegramID, d.Handle, d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	if d.EnforceDailyCap {
		var exists bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (
			     SELECT 1 FROM coupons WHERE telegram_id = $1 AND granted_on = $2
			 )`,
			d.TelegramID, d.GrantedOn,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check daily cap: %w", err)
		}
		if exists {
			return nil, ErrAlreadySpunToday
		}
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO coupons (telegram_id, handle, tier, code_word, created_at, granted_on, valid_until)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		d.TelegramID, d.Handle, d.Tier, d.CodeWord, d.CreatedAt, d.GrantedOn, d.ValidUntil,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert coupon: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET spin_count = spin_count + 1 WHERE telegram_id = $1`,
		d.TelegramID,
	)
	if err != nil {
		return nil, fmt.Errorf("increment spin count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &model.Coupon{
		ID:         id,
		TelegramID: d.TelegramID,
		Handle:     d.Handle,
		Tier:       d.Tier,
		CodeWord:   d.CodeWord,
		CreatedAt:  d.CreatedAt,
		ValidUntil: d.ValidUntil,
	}, nil
}

// HasSpunToday сообщает, получал ли пользователь купон в указанные календарные сутки.
func (r *PostgresRepository) HasSpunToday(ctx context.Context, telegramID int64, day time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM coupons WHERE telegram_id = $1 AND granted_on = $2
		 )`,
		telegramID, day,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check spun today: %w", err)
	}
	return exists, nil
}

// ActiveCoupons возвращает действующие купоны пользователя, новые первыми.
// День истечения включается.
func (r *PostgresRepository) ActiveCoupons(ctx context.Context, telegramID int64, today time.Time) ([]model.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, telegram_id, handle, tier, code_word, created_at, valid_until, redeemed
		 FROM coupons
		 WHERE telegram_id = $1 AND redeemed = FALSE AND valid_until >= $2
		 ORDER BY created_at DESC`,
		telegramID, today,
	)
	if err != nil {
		return nil, fmt.Errorf("select active coupons: %w", err)
	}
	defer rows.Close()

	return scanCoupons(rows)
}

// UserStats возвращает производную статистику пользователя по его купонам.
func (r *PostgresRepository) UserStats(ctx context.Context, telegramID int64, today time.Time) (*model.UserStats, error) {
	var s model.UserStats
	err := r.pool.QueryRow(ctx,
		`SELECT
		     COUNT(*),
		     COUNT(*) FILTER (WHERE redeemed),
		     COUNT(*) FILTER (WHERE NOT redeemed AND valid_until >= $2),
		     MIN(created_at)
		 FROM coupons
		 WHERE telegram_id = $1`,
		telegramID, today,
	).Scan(&s.Total, &s.Redeemed, &s.Active, &s.FirstSpin)
	if err != nil {
		return nil, fmt.Errorf("select user stats: %w", err)
	}
	return &s, nil
}

// LastHandle возвращает последний Instagram-ник пользователя.
func (r *PostgresRepository) LastHandle(ctx context.Context, telegramID int64) (string, error) {
	var handle string
	err := r.pool.QueryRow(ctx,
		`SELECT handle FROM users WHERE telegram_id = $1`,
		telegramID,
	).Scan(&handle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("select last handle: %w", err)
	}
	if handle == "" {
		return "", ErrUserNotFound
	}
	return handle, nil
}

// UserExists сообщает, получал ли пользователь хотя бы один купон.
func (r *PostgresRepository) UserExists(ctx context.Context, telegramID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE telegram_id = $1)`,
		telegramID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// AdminStats возвращает сводную статистику для админ-панели.
func (r *PostgresRepository) AdminStats(ctx context.Context, today time.Time) (*model.AdminStats, error) {
	var s model.AdminStats

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT telegram_id), COUNT(*) FILTER (WHERE granted_on = $1)
		 FROM coupons`,
		today,
	).Scan(&s.TotalCoupons, &s.UniqueUsers, &s.CouponsToday)
	if err != nil {
		return nil, fmt.Errorf("select totals: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT tier, COUNT(*) FROM coupons GROUP BY tier ORDER BY COUNT(*) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tc model.TierCount
		if err := rows.Scan(&tc.Tier, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		s.Distribution = append(s.Distribution, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	userRows, err := r.pool.Query(ctx,
		`SELECT telegram_id, handle, first_seen_at, spin_count
		 FROM users
		 ORDER BY spin_count DESC
		 LIMIT 10`,
	)
	if err != nil {
		return nil, fmt.Errorf("select top users: %w", err)
	}
	defer userRows.Close()

	for userRows.Next() {
		var u model.UserProfile
		if err := userRows.Scan(&u.TelegramID, &u.Handle, &u.FirstSeenAt, &u.SpinCount); err != nil {
			return nil, fmt.Errorf("scan top user: %w", err)
		}
		s.TopUsers = append(s.TopUsers, u)
	}
	if err := userRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &s, nil
}

// SearchCoupons ищет купоны по подстроке в нике, скидке или кодовом слове,
// без учёта регистра, новые первыми, не более 50 результатов.
func (r *PostgresRepository) SearchCoupons(ctx context.Context, query string) ([]model.Coupon, error) {
	pattern := "%" + query + "%"
	rows, err := r.pool.Query(ctx,
		`SELECT id, telegram_id, handle, tier, code_word, created_at, valid_until, redeemed
		 FROM coupons
		 WHERE handle ILIKE $1 OR tier ILIKE $1 OR code_word ILIKE $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		pattern, searchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("search coupons: %w", err)
	}
	defer rows.Close()

	return scanCoupons(rows)
}

// ListUsers возвращает страницу пользователей с превью активных купонов
// (не более previewCap штук на пользователя) и общее число страниц.
func (r *PostgresRepository) ListUsers(ctx context.Context, page, pageSize int, today time.Time) ([]model.UserSummary, int, error) {
	const previewCap = 3

	if page < 1 {
		page = 1
	}

	var totalUsers int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&totalUsers); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	totalPages := (totalUsers + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	rows, err := r.pool.Query(ctx,
		`SELECT u.telegram_id, u.handle, u.first_seen_at, u.spin_count, COUNT(c.id)
		 FROM users u
		 LEFT JOIN coupons c ON c.telegram_id = u.telegram_id
		 GROUP BY u.telegram_id
		 ORDER BY u.first_seen_at DESC
		 LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select users page: %w", err)
	}
	defer rows.Close()

	var summaries []model.UserSummary
	for rows.Next() {
		var sum model.UserSummary
		if err := rows.Scan(
			&sum.Profile.TelegramID, &sum.Profile.Handle,
			&sum.Profile.FirstSeenAt, &sum.Profile.SpinCount, &sum.TotalIssued,
		); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	// Превью активных купонов собираются на чтении, без денормализации.
	for i := range summaries {
		active, err := r.ActiveCoupons(ctx, summaries[i].Profile.TelegramID, today)
		if err != nil {
			return nil, 0, err
		}
		if len(active) > previewCap {
			summaries[i].MoreActive = len(active) - previewCap
			active = active[:previewCap]
		}
		summaries[i].Active = active
	}

	return summaries, totalPages, nil
}

// MarkRedeemed помечает использованным ровно один купон: самый старый из
// действующих купонов с указанными ником и скидкой. Выбор и пометка выполняются
// одной транзакцией, поэтому два оператора не могут погасить один купон дважды.
// При промахе возвращается одна из трёх причин: ErrHandleNotFound,
// ErrTierNeverGranted либо ErrAllRedeemedOrExpired.
func (r *PostgresRepository) MarkRedeemed(ctx context.Context, handle, tier string, today time.Time) (*model.Coupon, error) {
	var coupon *model.Coupon

	err := r.withRetry(ctx, func() error {
		c, err := r.markRedeemedTx(ctx, handle, tier, today)
		if err != nil {
			return err
		}
		coupon = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return coupon, nil
}

func (r *PostgresRepository) markRedeemedTx(ctx context.Context, handle, tier string, today time.Time) (*model.Coupon, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT id, telegram_id, handle, tier, code_word, created_at, valid_until, redeemed
		 FROM coupons
		 WHERE handle = $1 AND tier = $2 AND redeemed = FALSE AND valid_until >= $3
		 ORDER BY created_at ASC
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		handle, tier, today,
	)

	var c model.Coupon
	err = row.Scan(&c.ID, &c.TelegramID, &c.Handle, &c.Tier, &c.CodeWord, &c.CreatedAt, &c.ValidUntil, &c.Redeemed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyRedemptionMiss(ctx, tx, handle, tier)
		}
		return nil, fmt.Errorf("select coupon for redemption: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE coupons SET redeemed = TRUE WHERE id = $1`, c.ID); err != nil {
		return nil, fmt.Errorf("mark redeemed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	c.Redeemed = true
	return &c, nil
}

// classifyRedemptionMiss определяет причину промаха для обратной связи оператору.
func (r *PostgresRepository) classifyRedemptionMiss(ctx context.Context, tx pgx.Tx, handle, tier string) error {
	var handleSeen bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM coupons WHERE handle = $1)`,
		handle,
	).Scan(&handleSeen)
	if err != nil {
		return fmt.Errorf("check handle: %w", err)
	}
	if !handleSeen {
		return ErrHandleNotFound
	}

	var tierSeen bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM coupons WHERE handle = $1 AND tier = $2)`,
		handle, tier,
	).Scan(&tierSeen)
	if err != nil {
		return fmt.Errorf("check tier: %w", err)
	}
	if !tierSeen {
		return ErrTierNeverGranted
	}

	return ErrAllRedeemedOrExpired
}

// AllCoupons возвращает все купоны для экспорта, новые первыми.
func (r *PostgresRepository) AllCoupons(ctx context.Context) ([]model.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, telegram_id, handle, tier, code_word, created_at, valid_until, redeemed
		 FROM coupons
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select all coupons: %w", err)
	}
	defer rows.Close()

	return scanCoupons(rows)
}

// AllUsers возвращает всех пользователей для экспорта, новые первыми.
func (r *PostgresRepository) AllUsers(ctx context.Context) ([]model.UserProfile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT telegram_id, handle, first_seen_at, spin_count
		 FROM users
		 ORDER BY first_seen_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select all users: %w", err)
	}
	defer rows.Close()

	var users []model.UserProfile
	for rows.Next() {
		var u model.UserProfile
		if err := rows.Scan(&u.TelegramID, &u.Handle, &u.FirstSeenAt, &u.SpinCount); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

func scanCoupons(rows pgx.Rows) ([]model.Coupon, error) {
	var coupons []model.Coupon
	for rows.Next() {
		var c model.Coupon
		if err := rows.Scan(&c.ID, &c.TelegramID, &c.Handle, &c.Tier, &c.CodeWord, &c.CreatedAt, &c.ValidUntil, &c.Redeemed); err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return coupons, nil
}
