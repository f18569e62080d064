// Package target decodes the fixed-width Shift-JIS export files (UM horse
// masters, SE race results, CK training sessions) and provides cached
// readers over the export tree.
package target

// Training centre locations. These are the only two valid discriminator
// values in a CK file; anything else is not a training record.
const (
	LocationMiho  = "美浦"
	LocationRitto = "栗東"
)

// SessionKind distinguishes the two workout record layouts.
type SessionKind int

const (
	KindSlope SessionKind = iota // woodchip slope course, 92-byte lines
	KindFlat                     // flat course, 47-byte lines
)

func (k SessionKind) String() string {
	if k == KindSlope {
		return "slope"
	}
	return "flat"
}

// TrainingSession is one decoded workout record. Timing fields are nil
// when the source field was zero, malformed, or outside sanity bounds.
type TrainingSession struct {
	Kind      SessionKind
	Location  string // LocationMiho or LocationRitto
	Date      string // YYYYMMDD
	TimeOfDay string // HHMM
	RegNum    string // 10-digit registration number

	F5 *float64 // 5-furlong split, flat course only
	F4 *float64 // 4-furlong split (synthesized on flat course)
	F3 *float64
	F2 *float64

	Lap1 *float64 // final furlong
	Lap2 *float64
	Lap3 *float64 // slope course only
	Lap4 *float64 // slope course only
}

// RaceResult is one decoded SE record: a single horse's run in a race.
type RaceResult struct {
	RaceKey    string // 16-char authoritative code: date+venue+kai+nichi+raceNo
	Date       string // YYYYMMDD
	VenueCode  string
	Kai        int
	Nichi      int
	RaceNumber int

	Wakuban   int
	Umaban    int
	RegNum    string
	HorseName string
	Sex       string
	Age       int
	Trainer   string
	Jockey    string
	Weight    *float64 // carried weight, kg

	HorseWeight  *int
	WeightChange *int // signed, from the zogen sign+amount fields

	FinishPos int
	Time      *float64 // finish time in seconds
	Corners   [4]int   // 0 = not recorded
	Odds      *float64
	Ninki     *int
	Last3F    *float64
}

// Horse is one decoded UM master record.
type Horse struct {
	RegNum      string
	Deleted     bool
	BirthDate   string // YYYYMMDD
	Name        string
	Kana        string
	NameEng     string
	Sex         string
	TrainerCode string
	Trainer     string
	Owner       string
}

// fptr and iptr build optional numeric fields.
func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
