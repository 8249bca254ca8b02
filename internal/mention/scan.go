// Package mention extracts @nickname tokens from post and comment bodies.
package mention

// Nickname length bounds. Tokens outside the bounds are silently skipped,
// matching how the nickname directory constrains registration.
const (
	DefaultMinNickLen = 3
	DefaultMaxNickLen = 16
)

// Scanner is a pure tokenizer; it performs no I/O and resolves nothing. The
// caller maps tokens to user ids and decides who actually gets notified.
type Scanner struct {
	MinLen int
	MaxLen int
}

func NewScanner(minLen, maxLen int) Scanner {
	if minLen <= 0 {
		minLen = DefaultMinNickLen
	}
	if maxLen < minLen {
		maxLen = DefaultMaxNickLen
	}
	return Scanner{MinLen: minLen, MaxLen: maxLen}
}

// Scan returns the nickname tokens found in text, in order of appearance.
// Duplicates are preserved; too-short and too-long tokens are dropped.
func (s Scanner) Scan(text string) []string {
	var found []string
	for i := 0; i < len(text); i++ {
		if text[i] != '@' {
			continue
		}
		j := i + 1
		for j < len(text) && isNickByte(text[j]) {
			j++
		}
		length := j - (i + 1)
		if length >= s.MinLen && length <= s.MaxLen {
			found = append(found, text[i+1:j])
		}
		i = j - 1
	}
	return found
}

func isNickByte(b byte) bool {
	return b >= 'a' && b <= 'z' ||
		b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' ||
		b == '_'
}
