// Package position allocates fractional-index keys used to order sibling blocks.
//
// Keys are strings of base-62 digits ("0"-"9", "A"-"Z", "a"-"z") whose ASCII order matches
// their digit order, so sibling ordering is plain string comparison. A key never ends with
// the zero digit; otherwise no key could be placed between "V" and "V0".
//
// Generated keys start with an integer part: a head letter followed by a run of
// digits whose length the head encodes ("a" one digit, "b" two, "Z" one, "Y" two
// and so on, upper case heads sorting below lower case). Appending after the last
// key or prepending before the first steps that integer, so keys only grow
// logarithmically with the number of same-end inserts. Keys between two
// neighbours add fractional digits after it. Keys that do not follow this layout
// are still accepted as bounds.
//
// The empty string is the open bound: Between("", next) sorts before next and
// Between(prev, "") sorts after prev.
package position

import "strings"

const (
	// Digits is the key alphabet in ascending order.
	Digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	base = len(Digits)

	zeroDigit = '0'
	lastDigit = 'z'
	midDigit  = 'V'
)

// Valid reports whether key is a well-formed position key.
func Valid(key string) bool {
	if key == "" || key[len(key)-1] == zeroDigit {
		return false
	}
	for i := 0; i < len(key); i++ {
		if digit(key[i]) < 0 {
			return false
		}
	}
	return true
}

// Between returns a key strictly between prev and next.
//
// Either bound may be empty to mean "before everything" or "after everything".
// If both bounds are non-empty and next <= prev, next is ignored and the result only
// sorts after prev. Malformed bounds are handled on a best-effort basis: the result
// is always greater than a non-empty prev.
func Between(prev, next string) string {
	if next != "" && prev >= next {
		next = ""
	}

	key := between(prev, next)
	if key != "" && key > prev && (next == "" || key < next) {
		return key
	}

	if prev != "" {
		if k := prev + string(midDigit); next == "" || k < next {
			return k
		}
	}

	return key
}

// NBetween returns n strictly increasing keys, all strictly between prev and next.
func NBetween(prev, next string, n int) []string {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []string{Between(prev, next)}
	}

	if next != "" && prev >= next {
		next = ""
	}

	keys := make([]string, 0, n)

	switch {
	case next == "":
		key := prev
		for len(keys) < n {
			key = Between(key, "")
			keys = append(keys, key)
		}
		return keys
	case prev == "":
		key := next
		for len(keys) < n {
			key = Between("", key)
			keys = append(keys, key)
		}
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
		return keys
	}

	mid := n / 2
	center := Between(prev, next)
	keys = append(keys, NBetween(prev, center, mid)...)
	keys = append(keys, center)
	keys = append(keys, NBetween(center, next, n-mid-1)...)

	return keys
}

func between(prev, next string) string {
	switch {
	case prev == "" && next == "":
		return "a" + string(midDigit)
	case next == "":
		return after(prev)
	case prev == "":
		return before(next)
	default:
		return midpoint(prev, next)
	}
}

// after returns a key greater than prev. It steps prev's integer part when
// prev has one and falls back to bumping the first digit that can grow.
func after(prev string) string {
	if key, ok := nextInteger(prev); ok {
		return key
	}

	i := 0
	for i < len(prev) && prev[i] == lastDigit {
		i++
	}
	if i == len(prev) {
		return prev + string(midDigit)
	}

	d := digit(prev[i])
	if d < 0 {
		return prev + string(midDigit)
	}

	return prev[:i] + string(Digits[d+1])
}

// before returns a key smaller than next, stepping next's integer part down
// when it has one and lowering the first non-zero digit otherwise.
func before(next string) string {
	if key, ok := prevInteger(next); ok {
		return key
	}

	i := 0
	for i < len(next) && next[i] == zeroDigit {
		i++
	}
	if i == len(next) {
		return ""
	}

	d := digit(next[i])
	switch {
	case d > 1:
		return next[:i] + string(Digits[d-1])
	case d == 1 && len(next) > i+1:
		return next[:i+1]
	default:
		return next[:i] + string(zeroDigit) + string(midDigit)
	}
}

// nextInteger returns the smallest integer key above prev that does not end
// with the zero digit.
func nextInteger(prev string) (string, bool) {
	x, padded, ok := integerPart(prev)
	if !ok {
		return "", false
	}
	if !padded {
		if x, ok = incrementInteger(x); !ok {
			return "", false
		}
	}
	for x[len(x)-1] == zeroDigit {
		if x, ok = incrementInteger(x); !ok {
			return "", false
		}
	}
	return x, true
}

// prevInteger returns the largest integer key below next that does not end
// with the zero digit.
func prevInteger(next string) (string, bool) {
	x, padded, ok := integerPart(next)
	if !ok {
		return "", false
	}
	if padded || len(x) == len(next) {
		if x, ok = decrementInteger(x); !ok {
			return "", false
		}
	}
	for x[len(x)-1] == zeroDigit {
		if x, ok = decrementInteger(x); !ok {
			return "", false
		}
	}
	return x, true
}

// integerPart returns the integer part key starts with. A key shorter than its
// head asks for is right-padded with zero digits and padded is set.
func integerPart(key string) (x string, padded bool, ok bool) {
	if key == "" {
		return "", false, false
	}
	n := integerLen(key[0])
	if n == 0 {
		return "", false, false
	}
	for i := 1; i < min(n, len(key)); i++ {
		if digit(key[i]) < 0 {
			return "", false, false
		}
	}
	if len(key) < n {
		return key + strings.Repeat(string(zeroDigit), n-len(key)), true, true
	}
	return key[:n], false, true
}

// integerLen is the length of the integer part opened by head, head included,
// or 0 when head is not a letter.
func integerLen(head byte) int {
	switch {
	case head >= 'a' && head <= 'z':
		return int(head-'a') + 2
	case head >= 'A' && head <= 'Z':
		return int('Z'-head) + 2
	default:
		return 0
	}
}

func incrementInteger(x string) (string, bool) {
	digits := []byte(x[1:])
	for i := len(digits) - 1; i >= 0; i-- {
		if d := digit(digits[i]); d < base-1 {
			digits[i] = Digits[d+1]
			return x[:1] + string(digits), true
		}
		digits[i] = zeroDigit
	}

	switch head := x[0]; head {
	case 'z':
		return "", false
	case 'Z':
		return filledInteger('a', zeroDigit), true
	default:
		return filledInteger(head+1, zeroDigit), true
	}
}

func decrementInteger(x string) (string, bool) {
	digits := []byte(x[1:])
	for i := len(digits) - 1; i >= 0; i-- {
		if d := digit(digits[i]); d > 0 {
			digits[i] = Digits[d-1]
			return x[:1] + string(digits), true
		}
		digits[i] = lastDigit
	}

	switch head := x[0]; head {
	case 'A':
		return "", false
	case 'a':
		return filledInteger('Z', lastDigit), true
	default:
		return filledInteger(head-1, lastDigit), true
	}
}

func filledInteger(head, fill byte) string {
	return string(head) + strings.Repeat(string(fill), integerLen(head)-1)
}

// midpoint returns the key halfway between a and b. b may be empty to mean the open
// upper bound; a is treated as right-padded with zero digits.
func midpoint(a, b string) string {
	if b != "" {
		n := 0
		for n < len(b) && digitAt(a, n) == b[n] {
			n++
		}
		if n > 0 {
			return b[:n] + midpoint(tail(a, n), b[n:])
		}
	}

	da := 0
	if a != "" {
		da = max(digit(a[0]), 0)
	}
	db := base
	if b != "" {
		db = max(digit(b[0]), 0)
	}

	if db-da > 1 {
		return string(Digits[(da+db+1)/2])
	}
	if b != "" && len(b) > 1 {
		return b[:1]
	}

	return string(Digits[da]) + midpoint(tail(a, 1), "")
}

func digitAt(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return zeroDigit
}

func tail(s string, n int) string {
	if n >= len(s) {
		return ""
	}
	return s[n:]
}

func digit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 36
	default:
		return -1
	}
}
