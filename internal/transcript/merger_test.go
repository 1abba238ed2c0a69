package transcript

import (
	"sync"
	"testing"
)

func TestConsumeGrowingPartials(t *testing.T) {
	m := NewMerger()
	steps := []struct {
		partial string
		want    string
	}{
		{"hola", "hola "},
		{"hola como", "hola como "},
		{"hola como estas", "hola como estas "},
	}
	for _, step := range steps {
		got, outcome := m.Consume(step.partial)
		if got != step.want {
			t.Fatalf("after %q expected %q, got %q", step.partial, step.want, got)
		}
		if outcome != OutcomeAppended {
			t.Fatalf("after %q expected appended, got %s", step.partial, outcome)
		}
	}
}

func TestConsumeFoldsAppendedWordsToLowercase(t *testing.T) {
	m := NewMerger()
	m.Consume("Hola")
	got, _ := m.Consume("Hola Madrid Centro")
	if got != "hola madrid centro " {
		t.Fatalf("unexpected transcript %q", got)
	}
}

func TestConsumeRepeatedPartialIsIdempotent(t *testing.T) {
	m := NewMerger()
	first, _ := m.Consume("buenos dias")
	second, outcome := m.Consume("buenos dias")
	if first != second {
		t.Fatalf("expected unchanged transcript, got %q then %q", first, second)
	}
	if outcome != OutcomeRepeated {
		t.Fatalf("expected repeated outcome, got %s", outcome)
	}
}

func TestConsumeRevisesTrailingWord(t *testing.T) {
	m := NewMerger()
	m.Consume("hola mund")
	got, outcome := m.Consume("hola mundo")
	if got != "hola mundo " {
		t.Fatalf("expected revised tail, got %q", got)
	}
	if outcome != OutcomeRevised {
		t.Fatalf("expected revised outcome, got %s", outcome)
	}
}

func TestConsumeRevisionOnlyTouchesLastOccurrence(t *testing.T) {
	m := NewMerger()
	m.Consume("la casa la")
	got, _ := m.Consume("la casa lo")
	if got != "la casa lo " {
		t.Fatalf("expected only trailing token replaced, got %q", got)
	}
}

func TestConsumeIgnoresEmptyPartial(t *testing.T) {
	m := NewMerger()
	m.Consume("uno dos")
	for _, partial := range []string{"", "   ", "\t\n"} {
		got, outcome := m.Consume(partial)
		if got != "uno dos " || outcome != OutcomeIgnored {
			t.Fatalf("expected no-op for %q, got %q (%s)", partial, got, outcome)
		}
	}
	// the cursor survived the empty partials
	got, _ := m.Consume("uno dos tres")
	if got != "uno dos tres " {
		t.Fatalf("unexpected transcript %q", got)
	}
}

func TestConsumeShrinkingPartialAppendsNothing(t *testing.T) {
	m := NewMerger()
	m.Consume("uno dos tres")
	got, outcome := m.Consume("uno dos")
	if got != "uno dos tres " || outcome != OutcomeShrunk {
		t.Fatalf("expected transcript unchanged and shrunk outcome, got %q (%s)", got, outcome)
	}
	got, outcome = m.Consume("uno dos cuatro")
	if got != "uno dos tres cuatro " || outcome != OutcomeAppended {
		t.Fatalf("expected suffix after shrink, got %q (%s)", got, outcome)
	}
}

func TestResetBehavesLikeFreshMerger(t *testing.T) {
	used := NewMerger()
	used.Consume("algo previo")
	used.Consume("algo previo mas")
	used.Reset()
	if used.Text() != "" {
		t.Fatalf("expected empty transcript after reset, got %q", used.Text())
	}

	fresh := NewMerger()
	for _, partial := range []string{"nueva nota", "nueva nota", "nueva nota hoy"} {
		a, oa := used.Consume(partial)
		b, ob := fresh.Consume(partial)
		if a != b || oa != ob {
			t.Fatalf("reset merger diverged on %q: %q/%s vs %q/%s", partial, a, oa, b, ob)
		}
	}
}

func TestZeroValueMerger(t *testing.T) {
	var m Merger
	if got, _ := m.Consume("listo"); got != "listo " {
		t.Fatalf("unexpected transcript %q", got)
	}
}

func TestConsumeConcurrentCallersDoNotRace(t *testing.T) {
	m := NewMerger()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Consume("palabra")
				_ = m.Text()
			}
		}()
	}
	wg.Wait()
}
