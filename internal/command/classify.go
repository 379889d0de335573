package command

import (
	"strings"
	"unicode"

	"github.com/samber/lo"
)

type trigger struct {
	phrase string
	kind   Kind
}

// Fixed trigger phrases. Anything else a recognizer hears is dropped.
var triggers = []trigger{
	{phrase: "start round", kind: Start},
	{phrase: "pause", kind: Pause},
	{phrase: "resume", kind: Resume},
	{phrase: "end session", kind: EndSession},
}

// Classify maps a freeform utterance to a command. Phrases must appear as whole words;
// when an utterance contains several, the one spoken last wins.
func Classify(utterance string) (Kind, bool) {
	norm := " " + normalize(utterance) + " "
	if strings.TrimSpace(norm) == "" {
		return "", false
	}

	type hit struct {
		kind Kind
		end  int
	}
	hits := lo.FilterMap(triggers, func(tr trigger, _ int) (hit, bool) {
		idx := strings.LastIndex(norm, " "+tr.phrase+" ")
		if idx < 0 {
			return hit{}, false
		}
		return hit{kind: tr.kind, end: idx + len(tr.phrase)}, true
	})
	if len(hits) == 0 {
		return "", false
	}
	last := lo.MaxBy(hits, func(a, b hit) bool { return a.end > b.end })
	return last.kind, true
}

// Phrases lists the recognized trigger phrases, for help output.
func Phrases() map[string]Kind {
	return lo.SliceToMap(triggers, func(tr trigger) (string, Kind) { return tr.phrase, tr.kind })
}

func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
