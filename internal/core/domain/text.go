package domain

// TruncateRunes returns the first n characters of s without splitting a rune.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Preview truncates s to n characters and marks the cut with "...".
func Preview(s string, n int) string {
	t := TruncateRunes(s, n)
	if len(t) < len(s) {
		return t + "..."
	}
	return t
}
