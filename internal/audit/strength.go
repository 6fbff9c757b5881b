package audit

import (
	"math"
	"strings"
)

// Category buckets a strength score for display.
type Category int

const (
	Weak Category = iota
	Fair
	Strong
	VeryStrong
)

func (c Category) String() string {
	switch c {
	case Weak:
		return "weak"
	case Fair:
		return "fair"
	case Strong:
		return "strong"
	case VeryStrong:
		return "very strong"
	default:
		return "unknown"
	}
}

// Categorize maps a 0-100 score onto a category.
func Categorize(score int) Category {
	switch {
	case score >= 80:
		return VeryStrong
	case score >= 60:
		return Strong
	case score >= 40:
		return Fair
	default:
		return Weak
	}
}

// commonPasswords is a small built-in blocklist. Membership checks are
// case-insensitive and exact; the breach check covers the long tail.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "passw0rd": {}, "123456": {},
	"1234": {}, "12345": {}, "12345678": {}, "123456789": {},
	"qwerty": {}, "qwertyuiop": {}, "abc123": {}, "letmein": {},
	"iloveyou": {}, "admin": {}, "welcome": {}, "monkey": {},
	"dragon": {}, "football": {}, "baseball": {}, "master": {},
	"sunshine": {}, "princess": {}, "trustno1": {}, "superman": {},
	"000000": {}, "111111": {}, "654321": {}, "696969": {},
}

// ScoreStrength rates a plaintext password from 0 to 100. The score rewards
// length, character-class diversity and estimated entropy, and penalizes
// dictionary hits, sequential runs and repeated characters. It is a heuristic
// for advisory display, not a cracking-resistance guarantee.
func ScoreStrength(password string) (int, Category) {
	if password == "" {
		return 0, Weak
	}

	score := lengthPoints(password) + classPoints(password) + entropyPoints(password)
	score -= penaltyPoints(password)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, Categorize(score)
}

func lengthPoints(password string) int {
	n := len([]rune(password))
	switch {
	case n >= 16:
		return 30
	case n >= 12:
		return 25
	case n >= 8:
		return 15
	case n >= 6:
		return 8
	default:
		return n
	}
}

func classPoints(password string) int {
	lower, upper, digit, symbol := charClasses(password)
	points := 0
	for _, present := range []bool{lower, upper, digit, symbol} {
		if present {
			points += 7
		}
	}
	// All four classes together earn the remainder to 30.
	if lower && upper && digit && symbol {
		points += 2
	}
	return points
}

// entropyPoints estimates bits as length * log2(alphabet) and awards up to 20
// points at 80 bits.
func entropyPoints(password string) int {
	lower, upper, digit, symbol := charClasses(password)
	alphabet := 0
	if lower {
		alphabet += 26
	}
	if upper {
		alphabet += 26
	}
	if digit {
		alphabet += 10
	}
	if symbol {
		alphabet += 33
	}
	if alphabet == 0 {
		return 0
	}
	bits := float64(len([]rune(password))) * math.Log2(float64(alphabet))
	points := int(bits / 4)
	if points > 20 {
		points = 20
	}
	return points
}

func penaltyPoints(password string) int {
	penalty := 0
	lowered := strings.ToLower(password)
	if _, ok := commonPasswords[lowered]; ok {
		penalty += 15
	}
	if hasSequentialRun(lowered, 3) {
		penalty += 10
	}
	if hasRepeatedRun(password, 3) {
		penalty += 10
	}
	if isAllDigits(password) {
		penalty += 5
	}
	if penalty > 20 {
		penalty = 20
	}
	return penalty
}

func charClasses(password string) (lower, upper, digit, symbol bool) {
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	return
}

// hasSequentialRun reports a run of n consecutively ascending or descending
// letters or digits ("abc", "321").
func hasSequentialRun(password string, n int) bool {
	runes := []rune(password)
	if len(runes) < n {
		return false
	}
	asc, desc := 1, 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1]+1 {
			asc++
		} else {
			asc = 1
		}
		if runes[i] == runes[i-1]-1 {
			desc++
		} else {
			desc = 1
		}
		if asc >= n || desc >= n {
			return true
		}
	}
	return false
}

func hasRepeatedRun(password string, n int) bool {
	runes := []rune(password)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func isAllDigits(password string) bool {
	for _, r := range password {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(password) > 0
}
