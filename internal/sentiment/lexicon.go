package sentiment

import (
	"context"
	"math"
	"strings"
	"unicode"
)

var positiveWords = []string{
	"bien", "bueno", "buena", "buenos", "buenas", "genial", "excelente", "feliz", "contento", "contenta",
	"alegre", "gracias", "encanta", "me gusta", "perfecto", "fantastico", "fantástico", "maravilloso",
	"éxito", "exito", "logro", "tranquilo", "tranquila", "mejor", "amor", "divertido", "ilusión",
	"good", "great", "happy", "love", "excellent", "thanks", "awesome", "nice", "success",
}

var negativeWords = []string{
	"mal", "malo", "mala", "triste", "terrible", "horrible", "odio", "problema", "problemas", "enfermo",
	"enferma", "dolor", "cansado", "cansada", "preocupado", "preocupada", "miedo", "peor", "fracaso",
	"enfadado", "enfadada", "estrés", "estres", "deuda", "deudas", "difícil", "dificil", "urgente",
	"bad", "sad", "hate", "terrible", "awful", "problem", "angry", "worried", "tired", "pain",
}

var negators = map[string]struct{}{"no": {}, "nunca": {}, "jamás": {}, "jamas": {}, "not": {}, "never": {}}

// Lexicon scores text by counting polarity words, flipping a word when one of
// the two tokens before it is a negator. The result is (pos-neg)/(pos+neg)
// rounded to one decimal.
type Lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
	phrases  map[string]float64
}

func NewLexicon() *Lexicon {
	l := &Lexicon{
		positive: make(map[string]struct{}),
		negative: make(map[string]struct{}),
		phrases:  make(map[string]float64),
	}
	for _, w := range positiveWords {
		l.add(w, 1)
	}
	for _, w := range negativeWords {
		l.add(w, -1)
	}
	return l
}

func (l *Lexicon) add(word string, polarity float64) {
	if strings.Contains(word, " ") {
		l.phrases[word] = polarity
		return
	}
	if polarity > 0 {
		l.positive[word] = struct{}{}
		return
	}
	l.negative[word] = struct{}{}
}

func (l *Lexicon) Score(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	lowered := strings.ToLower(text)
	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var pos, neg float64
	for phrase, polarity := range l.phrases {
		if n := strings.Count(lowered, phrase); n > 0 {
			if polarity > 0 {
				pos += float64(n)
			} else {
				neg += float64(n)
			}
		}
	}
	for i, tok := range tokens {
		polarity := 0.0
		if _, ok := l.positive[tok]; ok {
			polarity = 1
		} else if _, ok := l.negative[tok]; ok {
			polarity = -1
		}
		if polarity == 0 {
			continue
		}
		if negated(tokens, i) {
			polarity = -polarity
		}
		if polarity > 0 {
			pos++
		} else {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0, nil
	}
	score := (pos - neg) / (pos + neg)
	return clamp(math.Round(score*10) / 10), nil
}

func negated(tokens []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-2; j-- {
		if _, ok := negators[tokens[j]]; ok {
			return true
		}
	}
	return false
}
