// Package lookup resolves free-text race and track queries against a
// day's schedule, tolerant of width variants and abbreviated spellings.
package lookup

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/keibalab/umadata/internal/jptext"
)

// raceNameAliases maps known abbreviated spellings to canonical names.
// Applied after width folding, full-string match only.
var raceNameAliases = map[string]string{
	"エ女王杯":  "エリザベス女王杯",
	"エリ女王杯": "エリザベス女王杯",
	"クイーS":  "クイーンS",
}

var (
	gradeRe    = regexp.MustCompile(`\((?:G|Ｇ)(?:1|2|3|I{1,3})\)`)
	ageUpRe    = regexp.MustCompile(`(\d)歳上`)
	parenRe    = regexp.MustCompile(`\([^)]*\)`)
	courseRe   = regexp.MustCompile(`([芝ダ障])[^\d]*(\d{3,4})`)
	kaisaiRe   = regexp.MustCompile(`^(\d+)([^\d]+)(\d+)$`)
	keywordSep = regexp.MustCompile(`クラス|特別|賞|S`)
)

// NormalizeTrack reduces a track token like "4東京11" to the bare track
// name.
func NormalizeTrack(s string) string {
	return strings.TrimSpace(jptext.StripDigits(jptext.FoldWidth(s)))
}

// ParseKaisaiToken splits a prefixed track token into meeting number,
// track and day-of-meeting. ok is false when the token has no prefix.
func ParseKaisaiToken(s string) (kai int, track string, nichi int, ok bool) {
	m := kaisaiRe.FindStringSubmatch(strings.TrimSpace(jptext.FoldWidth(s)))
	if m == nil {
		return 0, NormalizeTrack(s), 0, false
	}
	kai, _ = strconv.Atoi(m[1])
	nichi, _ = strconv.Atoi(m[3])
	return kai, m[2], nichi, true
}

// KaisaiKey composes the schedule meeting key, e.g. "4回東京11日目".
func KaisaiKey(kai int, track string, nichi int) string {
	return strconv.Itoa(kai) + "回" + track + strconv.Itoa(nichi) + "日目"
}

// NormalizeRaceName folds widths, drops whitespace and bracket
// variants, strips grade suffixes, expands 歳上, and applies the alias
// table.
func NormalizeRaceName(s string) string {
	s = jptext.FoldWidth(s)
	s = strings.NewReplacer(" ", "", "　", "", "（", "(", "）", ")", "【", "(", "】", ")").Replace(s)
	s = gradeRe.ReplaceAllString(s, "")
	s = ageUpRe.ReplaceAllString(s, "${1}歳以上")
	if canonical, ok := raceNameAliases[s]; ok {
		return canonical
	}
	return s
}

// BaseName strips parenthesized qualifiers (gender and eligibility
// restrictions) from a normalized race name.
func BaseName(s string) string {
	return parenRe.ReplaceAllString(NormalizeRaceName(s), "")
}

// NormalizeCourse reduces a course string to its surface marker plus
// distance digits, e.g. "芝・左2400" to "芝2400". Empty when the string
// has no recognizable course.
func NormalizeCourse(s string) string {
	m := courseRe.FindStringSubmatch(jptext.FoldWidth(s))
	if m == nil {
		return ""
	}
	return m[1] + m[2]
}

// leadingKeyword extracts the first term of a race name for the loose
// matching pass, splitting on class-word boundaries. Terms shorter than
// three runes are too ambiguous to use.
func leadingKeyword(s string) string {
	parts := keywordSep.Split(NormalizeRaceName(s), 2)
	term := parts[0]
	if len([]rune(term)) < 3 {
		return ""
	}
	return term
}
