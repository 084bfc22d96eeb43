// Package wheel реализует взвешенный выбор номинала купона.
package wheel

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/model"
)

// ErrEmptyTable возвращается, если таблица секторов пуста.
var (
	ErrEmptyTable = errors.New("wheel: empty tier table")
	// ErrZeroWeights возвращается, если суммарный вес всех секторов равен нулю.
	ErrZeroWeights = errors.New("wheel: all tier weights are zero")
)

// Wheel выбирает сектор пропорционально весам. Безопасно для конкурентных вызовов.
type Wheel struct {
	mu    sync.Mutex
	tiers []model.Tier
	total int
	rnd   *rand.Rand
}

// New проверяет таблицу секторов и создаёт колесо с указанным источником
// случайности. Некорректная конфигурация отклоняется сразу, а не при вращении.
func New(tiers []model.Tier, rnd *rand.Rand) (*Wheel, error) {
	if len(tiers) == 0 {
		return nil, ErrEmptyTable
	}

	total := 0
	for _, tr := range tiers {
		if tr.Weight < 0 {
			return nil, fmt.Errorf("wheel: tier %q has negative weight %d", tr.Label, tr.Weight)
		}
		total += tr.Weight
	}
	if total == 0 {
		return nil, ErrZeroWeights
	}

	return &Wheel{
		tiers: tiers,
		total: total,
		rnd:   rnd,
	}, nil
}

// Spin возвращает один сектор. Сектор с нулевым весом не выпадает никогда.
func (w *Wheel) Spin() model.Tier {
	w.mu.Lock()
	n := w.rnd.IntN(w.total)
	w.mu.Unlock()

	for _, tr := range w.tiers {
		if n < tr.Weight {
			return tr
		}
		n -= tr.Weight
	}
	// Недостижимо при корректной таблице, проверенной в New.
	return w.tiers[len(w.tiers)-1]
}

// Tiers возвращает таблицу секторов в порядке конфигурации.
func (w *Wheel) Tiers() []model.Tier {
	return w.tiers
}

// Lookup находит сектор по подписи скидки.
func (w *Wheel) Lookup(label string) (model.Tier, bool) {
	for _, tr := range w.tiers {
		if tr.Label == label {
			return tr, true
		}
	}
	return model.Tier{}, false
}
