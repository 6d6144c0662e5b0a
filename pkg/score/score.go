package score

import (
	"strings"
	"unicode/utf8"
)

const (
	// WeakScore is assigned to empty and well-known passwords.
	WeakScore = 5.0

	// MinScore and MaxScore bound every computed score.
	MinScore = 0.0
	MaxScore = 100.0

	maxLengthPoints  = 40.0
	pointsPerRune    = 3.5
	repeatPenalty    = -12.0
	repeatRunLength  = 3
	uniqueBaseline   = 5
	pointsPerUnique  = 1.2
	maxUniqueBonus   = 10.0
	tilingUnitLength = 2
)

var (
	common = map[string]struct{}{
		"123456":    {},
		"password":  {},
		"123456789": {},
		"12345":     {},
		"qwerty":    {},
		"abc123":    {},
		"111111":    {},
		"123123":    {},
		"password1": {},
		"1234":      {},
		"iloveyou":  {},
		"admin":     {},
		"welcome":   {},
		"monkey":    {},
		"dragon":    {},
		"letmein":   {},
	}

	// indexed by the number of character classes present
	diversityPoints = [...]float64{0, 10, 20, 32, 40}
)

// Classes reports which character classes occur in a password.
type Classes struct {
	Lower  bool `json:"lower" yaml:"lower"`
	Upper  bool `json:"upper" yaml:"upper"`
	Digit  bool `json:"digit" yaml:"digit"`
	Symbol bool `json:"symbol" yaml:"symbol"`
}

// Count returns the number of classes present (0-4).
func (c Classes) Count() int {
	n := 0
	for _, b := range []bool{c.Lower, c.Upper, c.Digit, c.Symbol} {
		if b {
			n++
		}
	}
	return n
}

// Breakdown holds the individual components that make up a score.
type Breakdown struct {
	Common        bool    `json:"common" yaml:"common"`
	LengthPoints  float64 `json:"length_points" yaml:"lengthPoints"`
	Classes       Classes `json:"classes" yaml:"classes"`
	DiversityPts  float64 `json:"diversity_points" yaml:"diversityPoints"`
	RepeatPenalty float64 `json:"repeat_penalty" yaml:"repeatPenalty"`
	UniqueBonus   float64 `json:"unique_bonus" yaml:"uniqueBonus"`
	Score         float64 `json:"score" yaml:"score"`
}

// Compute returns the strength score of a password in the [0, 100] range.
// Length and repeat checks count runes, so the password is expected to be
// valid UTF-8.
func Compute(password string) float64 {
	return Explain(password).Score
}

// Explain computes the score of a password along with its components.
func Explain(password string) *Breakdown {
	if IsCommon(password) {
		return &Breakdown{Common: true, Score: WeakScore}
	}

	b := &Breakdown{
		LengthPoints: min(maxLengthPoints, float64(utf8.RuneCountInString(password))*pointsPerRune),
		Classes:      CharClasses(password),
	}
	b.DiversityPts = diversityPoints[b.Classes.Count()]

	if HasRepeatedSequence(password) {
		b.RepeatPenalty = repeatPenalty
	}

	b.UniqueBonus = min(maxUniqueBonus, max(0, float64(distinct(password)-uniqueBaseline)*pointsPerUnique))

	raw := b.LengthPoints + b.DiversityPts + b.RepeatPenalty + b.UniqueBonus
	b.Score = max(MinScore, min(MaxScore, raw))

	return b
}

// IsCommon returns true for empty passwords and for members of the
// common-weak list (case insensitive).
func IsCommon(password string) bool {
	if password == "" {
		return true
	}
	_, ok := common[strings.ToLower(password)]
	return ok
}

// CharClasses detects ASCII lower, upper, digit and symbol characters.
// Anything that is not an ASCII letter or digit counts as a symbol.
func CharClasses(password string) Classes {
	var c Classes
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			c.Lower = true
		case r >= 'A' && r <= 'Z':
			c.Upper = true
		case r >= '0' && r <= '9':
			c.Digit = true
		default:
			c.Symbol = true
		}
	}
	return c
}

// HasRepeatedSequence detects a run of three identical characters or a
// password tiled from its first two characters (e.g. "ababab").
// Passwords shorter than three characters never match.
func HasRepeatedSequence(password string) bool {
	runes := []rune(password)
	if len(runes) < repeatRunLength {
		return false
	}

	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] != runes[i-1] {
			run = 1
			continue
		}
		if run++; run >= repeatRunLength {
			return true
		}
	}

	unit := string(runes[:tilingUnitLength])
	return strings.Contains(password, strings.Repeat(unit, len(runes)/2))
}

func distinct(password string) int {
	seen := make(map[rune]struct{}, len(password))
	for _, r := range password {
		seen[r] = struct{}{}
	}
	return len(seen)
}
