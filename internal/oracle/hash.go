package oracle

import (
	"strconv"
	"unicode/utf16"
)

// FallbackVersion identifies the hash function and fallback list below.
// Changing either reassigns feeds for markets that were already repaired, so
// both are frozen per version.
const FallbackVersion = 1

// fallbackIDs is the ordered fallback catalog for FallbackVersion 1.
var fallbackIDs = []int{
	12245, // SPY
	12249, // QQQ
	12251, // IBIT
	12243, // VOO
	12247, // VTI
	12288, // WTI
	12292, // NG
	12276, // TLT
}

// FallbackIDs returns a copy of the fallback catalog in selection order.
func FallbackIDs() []int {
	return append([]int(nil), fallbackIDs...)
}

// StableHash is the 31-multiplier string hash over UTF-16 code units with
// 32-bit two's complement wrap-around, returned as an absolute value. The
// result for math.MinInt32 is 2^31.
func StableHash(s string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}

// FallbackIndex picks the slot in a fallback list of length n for the
// condition at index of marketID.
func FallbackIndex(marketID string, index, n int) int {
	return int(StableHash(marketID+strconv.Itoa(index)) % int64(n))
}
