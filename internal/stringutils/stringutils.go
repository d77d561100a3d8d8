package stringutils

import "strings"

// IndentString prefixes each line of the string with indent.
func IndentString(str, indent string) string {
	spl := strings.SplitAfter(str, "\n")
	return strings.Join(append([]string{""}, spl...), indent)
}

const truncatedSuffix = "..."

// Truncate shortens str to at most maxLen bytes.
// If the string is shortened, the last bytes are replaced with "...".
// Multi-byte UTF-8 characters are not split.
func Truncate(str string, maxLen int) string {
	if len(str) <= maxLen {
		return str
	}

	if maxLen <= len(truncatedSuffix) {
		return truncatedSuffix[:maxLen]
	}

	cut := maxLen - len(truncatedSuffix)
	for cut > 0 && !isRuneStart(str[cut]) {
		cut--
	}

	return str[:cut] + truncatedSuffix
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
