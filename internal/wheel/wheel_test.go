package wheel

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/model"
)

func testTiers() []model.Tier {
	return []model.Tier{
		{Label: "5%", Weight: 40, CodeWord: "Подарок"},
		{Label: "10%", Weight: 30, CodeWord: "Сочельник"},
		{Label: "15%", Weight: 20, CodeWord: "Снеговик"},
		{Label: "20%", Weight: 10, CodeWord: "Снегурочка"},
	}
}

func TestNew_EmptyTable(t *testing.T) {
	_, err := New(nil, rand.New(rand.NewPCG(1, 2)))
	if !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("err = %v, want ErrEmptyTable", err)
	}
}

func TestNew_AllZeroWeights(t *testing.T) {
	tiers := []model.Tier{
		{Label: "5%", Weight: 0},
		{Label: "10%", Weight: 0},
	}
	_, err := New(tiers, rand.New(rand.NewPCG(1, 2)))
	if !errors.Is(err, ErrZeroWeights) {
		t.Fatalf("err = %v, want ErrZeroWeights", err)
	}
}

func TestNew_NegativeWeight(t *testing.T) {
	tiers := []model.Tier{{Label: "5%", Weight: -1}}
	if _, err := New(tiers, rand.New(rand.NewPCG(1, 2))); err == nil {
		t.Fatalf("expected error for negative weight")
	}
}

func TestSpin_ZeroWeightNeverDrawn(t *testing.T) {
	tiers := []model.Tier{
		{Label: "5%", Weight: 1},
		{Label: "50%", Weight: 0},
		{Label: "10%", Weight: 1},
	}
	w, err := New(tiers, rand.New(rand.NewPCG(7, 7)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 10000; i++ {
		if got := w.Spin(); got.Label == "50%" {
			t.Fatalf("zero-weight tier drawn on iteration %d", i)
		}
	}
}

func TestSpin_DistributionMatchesWeights(t *testing.T) {
	w, err := New(testTiers(), rand.New(rand.NewPCG(42, 1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const draws = 100000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		counts[w.Spin().Label]++
	}

	want := map[string]float64{"5%": 0.40, "10%": 0.30, "15%": 0.20, "20%": 0.10}
	for label, expected := range want {
		got := float64(counts[label]) / draws
		if math.Abs(got-expected) > 0.01 {
			t.Errorf("tier %s frequency = %.4f, want %.2f ± 0.01", label, got, expected)
		}
	}
}

func TestSpin_DeterministicWithSameSeed(t *testing.T) {
	a, _ := New(testTiers(), rand.New(rand.NewPCG(5, 5)))
	b, _ := New(testTiers(), rand.New(rand.NewPCG(5, 5)))

	for i := 0; i < 100; i++ {
		if a.Spin().Label != b.Spin().Label {
			t.Fatalf("draw %d diverged for identical seeds", i)
		}
	}
}

func TestLookup(t *testing.T) {
	w, _ := New(testTiers(), rand.New(rand.NewPCG(1, 1)))

	tr, ok := w.Lookup("15%")
	if !ok || tr.CodeWord != "Снеговик" {
		t.Fatalf("Lookup(15%%) = %+v, %v", tr, ok)
	}
	if _, ok := w.Lookup("99%"); ok {
		t.Fatalf("Lookup must miss for unknown label")
	}
}
