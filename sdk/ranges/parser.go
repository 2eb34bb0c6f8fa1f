package ranges

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lox/postflop/poker"
)

const rankChars = "23456789TJQKA"

// ParseRange parses a comma-separated range string into weighted combos.
// Supported entries, each with an optional ":weight" suffix:
//
//	AA       every pair combo (6)
//	AKs      the four suited combos
//	AKo      the twelve offsuit combos
//	AK       all sixteen combos
//	AhKh     a single explicit combo
//
// For example "AA,KK:0.5,AKs,QhJh:0.25".
func ParseRange(s string) ([]PrivateCards, error) {
	var combos []PrivateCards
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		parsed, err := parseToken(token)
		if err != nil {
			return nil, err
		}
		combos = append(combos, parsed...)
	}
	if len(combos) == 0 {
		return nil, fmt.Errorf("empty range %q", s)
	}
	return combos, nil
}

// MustParseRange parses a range string and panics on error (for tests).
func MustParseRange(s string) []PrivateCards {
	combos, err := ParseRange(s)
	if err != nil {
		panic(fmt.Sprintf("parse range %q: %v", s, err))
	}
	return combos
}

func parseToken(token string) ([]PrivateCards, error) {
	body := token
	weight := 1.0
	if idx := strings.IndexByte(token, ':'); idx >= 0 {
		body = token[:idx]
		w, err := strconv.ParseFloat(token[idx+1:], 64)
		if err != nil || w < 0 {
			return nil, fmt.Errorf("invalid weight in %q", token)
		}
		weight = w
	}

	switch len(body) {
	case 2:
		return parseClass(body, weight, true, true)
	case 3:
		switch body[2] {
		case 's', 'S':
			return parseClass(body[:2], weight, true, false)
		case 'o', 'O':
			return parseClass(body[:2], weight, false, true)
		}
		return nil, fmt.Errorf("invalid range entry %q", token)
	case 4:
		cards, err := poker.ParseCards(body)
		if err != nil {
			return nil, fmt.Errorf("invalid range entry %q: %w", token, err)
		}
		if cards[0] == cards[1] {
			return nil, fmt.Errorf("invalid range entry %q: identical cards", token)
		}
		return []PrivateCards{NewPrivateCards(cards[0], cards[1], weight)}, nil
	}
	return nil, fmt.Errorf("invalid range entry %q", token)
}

func parseClass(body string, weight float64, suited, offsuit bool) ([]PrivateCards, error) {
	r1 := strings.IndexByte(rankChars, upperRank(body[0]))
	r2 := strings.IndexByte(rankChars, upperRank(body[1]))
	if r1 < 0 || r2 < 0 {
		return nil, fmt.Errorf("invalid range entry %q", body)
	}

	if r1 == r2 {
		// Pair class: the six suit pairs.
		var combos []PrivateCards
		for s1 := uint8(0); s1 < poker.NumSuits; s1++ {
			for s2 := s1 + 1; s2 < poker.NumSuits; s2++ {
				combos = append(combos, NewPrivateCards(
					poker.NewCard(uint8(r1), s1),
					poker.NewCard(uint8(r1), s2),
					weight,
				))
			}
		}
		return combos, nil
	}

	var combos []PrivateCards
	for s1 := uint8(0); s1 < poker.NumSuits; s1++ {
		for s2 := uint8(0); s2 < poker.NumSuits; s2++ {
			if s1 == s2 && !suited {
				continue
			}
			if s1 != s2 && !offsuit {
				continue
			}
			combos = append(combos, NewPrivateCards(
				poker.NewCard(uint8(r1), s1),
				poker.NewCard(uint8(r2), s2),
				weight,
			))
		}
	}
	return combos, nil
}

func upperRank(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
