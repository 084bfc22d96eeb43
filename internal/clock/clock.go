// Package clock предоставляет время в фиксированном часовом поясе сервиса.
//
// Все решения вида «наступил ли новый день» и «истёк ли купон» принимаются
// через этот адаптер, а не через time.Now напрямую, чтобы поведение не
// зависело от локали сервера и поддавалось детерминированному тестированию.
package clock

import (
	"fmt"
	"time"
)

// Clock выдаёт текущий момент и начало текущих календарных суток.
type Clock interface {
	Now() time.Time
	Today() time.Time
}

// Zone — часы, работающие в одном фиксированном часовом поясе.
type Zone struct {
	loc *time.Location
}

// NewZone создаёт часы для указанного пояса (например, "Europe/Minsk").
func NewZone(name string) (*Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

// Now возвращает текущий момент в поясе сервиса.
func (z *Zone) Now() time.Time {
	return time.Now().In(z.loc)
}

// Today возвращает начало текущих календарных суток в поясе сервиса.
func (z *Zone) Today() time.Time {
	return Midnight(z.Now())
}

// Location возвращает часовой пояс сервиса.
func (z *Zone) Location() *time.Location {
	return z.loc
}

// Midnight усекает момент до начала его календарных суток в его же поясе.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Fixed — неподвижные часы для тестов.
type Fixed struct {
	Moment time.Time
}

// Now возвращает зафиксированный момент.
func (f Fixed) Now() time.Time { return f.Moment }

// Today возвращает начало суток зафиксированного момента.
func (f Fixed) Today() time.Time { return Midnight(f.Moment) }
