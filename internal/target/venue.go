package target

// venueNames maps the 2-digit JRA venue codes used in SE records.
var venueNames = map[string]string{
	"01": "札幌",
	"02": "函館",
	"03": "福島",
	"04": "新潟",
	"05": "東京",
	"06": "中山",
	"07": "中京",
	"08": "京都",
	"09": "阪神",
	"10": "小倉",
}

// VenueName resolves a venue code to its track name, "" if unknown.
func VenueName(code string) string {
	return venueNames[code]
}
