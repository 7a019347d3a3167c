package utils

import (
	"crypto/rand"
	"encoding/hex"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewConnID returns an identifier for a single websocket connection.
func NewConnID() string {
	return uuid.NewString()
}

// NewMemberID returns a short room-scoped identifier. It is never derived from the
// connection id so that ids cannot be correlated across rooms.
func NewMemberID() string {
	const size = 12

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}

	return strconv.FormatInt(time.Now().UnixNano(), 16)
}

// ColorFor derives a stable display color from an identifier.
func ColorFor(id string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	sum := h.Sum32()

	// keep each channel away from the extremes so names stay readable
	r := 0x40 + byte(sum)%0xa0
	g := 0x40 + byte(sum>>8)%0xa0
	b := 0x40 + byte(sum>>16)%0xa0
	return "#" + hex.EncodeToString([]byte{r, g, b})
}

// ValidColor reports whether s is a #rrggbb color.
func ValidColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	_, err := hex.DecodeString(s[1:])
	return err == nil
}
