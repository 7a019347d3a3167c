package core

import (
	"strings"
	"unicode/utf8"
)

// maxRoomIDLen bounds room identifiers in runes.
const maxRoomIDLen = 512

var lineBreaks = strings.NewReplacer("\r\n", "", "\r", "", "\n", "", "\u2028", "", "\u2029", "")

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// cleanChat strips line breaks and bounds the message. Empty results are rejected by the caller.
func cleanChat(text string, limit int) string {
	text = lineBreaks.Replace(text)
	text = strings.ToValidUTF8(text, "")
	return truncateRunes(text, limit)
}

// cleanName trims and bounds a display name.
func cleanName(name string, limit int) string {
	name = lineBreaks.Replace(name)
	name = strings.TrimSpace(strings.ToValidUTF8(name, ""))
	return strings.TrimSpace(truncateRunes(name, limit))
}

func validRoomID(id string) bool {
	return strings.TrimSpace(id) != "" && utf8.ValidString(id) && utf8.RuneCountInString(id) <= maxRoomIDLen
}
