package fog

import (
	"strconv"
	"unicode/utf16"
)

// Fingerprint is a cheap, collision-tolerant summary of a list of areas. It
// hashes "areas:<count>:sum:<sum of x+y+radius>" with the 31-multiplier
// UTF-16 string hash, rendered in decimal, so browser clients can compare it
// with fingerprints they computed the same way.
func Fingerprint(areas []RevealedArea) string {
	var sum int64
	for _, a := range areas {
		// per-area sum wraps at 32 bits before widening
		sum += int64(int32(a.X) + int32(a.Y) + int32(a.Radius))
	}
	key := "areas:" + strconv.Itoa(len(areas)) + ":sum:" + strconv.FormatInt(sum, 10)
	return strconv.FormatInt(int64(stringHash(key)), 10)
}

func stringHash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(c)
	}
	return h
}
