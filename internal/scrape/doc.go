// Package scrape models the JSON race documents produced by the
// commentary scraper. One document per race per day, stored in the
// year/month/day partitioned tree as race_<n>.json.
package scrape

import (
	"encoding/json"
	"os"
	"regexp"
	"strconv"
)

// Entry is one horse's row in a scraped race document. ID schemes are
// inconsistent: HorseID is the scraper's 7-digit key, RegNum the
// 10-digit registration number when the scraper resolved it.
type Entry struct {
	HorseID   string `json:"horse_id,omitempty"`
	RegNum    string `json:"ketto_num,omitempty"`
	HorseName string `json:"horse_name"`
	Umaban    int    `json:"umaban,omitempty"`
	Comment   string `json:"comment,omitempty"`
	Mark      string `json:"mark,omitempty"`
}

// Pace holds the scraped sectional figures for a finished race.
type Pace struct {
	First3F *float64 `json:"first_3f,omitempty"`
	Last3F  *float64 `json:"last_3f,omitempty"`
}

// Doc is one scraped race document.
type Doc struct {
	RaceID     string  `json:"race_id"`
	RaceKey    string  `json:"race_key,omitempty"` // 16-char authoritative code when known
	Date       string  `json:"date"`               // "2025/06/21"
	Kaisai     string  `json:"kaisai"`             // "3回東京7日目"
	RaceNumber int     `json:"race_number"`
	RaceName   string  `json:"race_name"`
	Course     string  `json:"course,omitempty"`    // e.g. "芝2400", "ダ1600"
	Condition  string  `json:"condition,omitempty"` // going: 良, 稍重, 重, 不良
	StartTime  string  `json:"start_time,omitempty"`
	Pace       *Pace   `json:"pace,omitempty"`
	Entries    []Entry `json:"entries"`
}

var kaisaiTrackRe = regexp.MustCompile(`\d+回([^\d]+)\d+日`)

// Track extracts the bare track name from the kaisai string,
// e.g. "3回東京7日目" yields "東京".
func (d *Doc) Track() string {
	m := kaisaiTrackRe.FindStringSubmatch(d.Kaisai)
	if m == nil {
		return ""
	}
	return m[1]
}

var distanceRe = regexp.MustCompile(`(\d{3,4})`)

// Distance extracts the metres from the course string, 0 if absent.
func (d *Doc) Distance() int {
	m := distanceRe.FindStringSubmatch(d.Course)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// Read loads one race document. Any failure is returned to the caller,
// who treats it as absence.
func Read(path string) (*Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Doc
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
