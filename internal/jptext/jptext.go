// Package jptext handles the Japanese text conventions of the data sources:
// Shift-JIS decoding for the fixed-width binary export and full/half-width
// folding for scraped race and track names.
package jptext

import (
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// DecodeShiftJIS converts a Shift-JIS byte slice to UTF-8.
// Undecodable bytes yield partial output rather than failing the whole line.
func DecodeShiftJIS(b []byte) string {
	out, _, _ := transform.Bytes(japanese.ShiftJIS.NewDecoder(), b)
	return string(out)
}

// Field decodes a Shift-JIS byte range and trims ASCII and ideographic
// space padding.
func Field(b []byte) string {
	return strings.Trim(DecodeShiftJIS(b), " 　")
}

// FoldWidth converts full-width digits and latin letters to their
// half-width forms. Katakana and kanji are left alone.
func FoldWidth(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '０' && r <= '９', r >= 'Ａ' && r <= 'Ｚ', r >= 'ａ' && r <= 'ｚ':
			sb.WriteRune(r - 0xFEE0)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// DigitsOnly strips everything but ASCII digits, after width folding.
// Used to turn "2025/06/21" style dates into "20250621".
func DigitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range FoldWidth(s) {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// StripDigits removes ASCII and full-width digits. Used to reduce a
// prefixed track token like "4東京11" to the bare track name.
func StripDigits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= '０' && r <= '９') {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
