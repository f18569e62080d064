package lookup_test

import (
	"testing"

	"github.com/keibalab/umadata/internal/index"
	"github.com/keibalab/umadata/internal/lookup"
)

func TestNormalizeTrack(t *testing.T) {
	cases := []struct{ in, want string }{
		{"4東京11", "東京"},
		{"東京", "東京"},
		{"５中山９", "中山"},
	}
	for _, c := range cases {
		if got := lookup.NormalizeTrack(c.in); got != c.want {
			t.Errorf("NormalizeTrack(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseKaisaiToken(t *testing.T) {
	kai, track, nichi, ok := lookup.ParseKaisaiToken("4東京11")
	if !ok || kai != 4 || track != "東京" || nichi != 11 {
		t.Errorf("ParseKaisaiToken = %d %q %d %v", kai, track, nichi, ok)
	}
	if lookup.KaisaiKey(kai, track, nichi) != "4回東京11日目" {
		t.Errorf("KaisaiKey = %q", lookup.KaisaiKey(kai, track, nichi))
	}
	if _, track, _, ok := lookup.ParseKaisaiToken("東京"); ok || track != "東京" {
		t.Errorf("bare track = %q %v", track, ok)
	}
}

func TestNormalizeRaceName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"日本ダービー", "日本ダービー"},
		{"２歳Ｓ", "2歳S"},
		{"安田記念(G1)", "安田記念"},
		{"安田記念（Ｇ1）", "安田記念"},
		{"3歳上1勝クラス", "3歳以上1勝クラス"},
		{"エ女王杯", "エリザベス女王杯"},
		{"エリ女王杯", "エリザベス女王杯"},
		{"クイーS", "クイーンS"},
		{"目黒記念　", "目黒記念"},
	}
	for _, c := range cases {
		if got := lookup.NormalizeRaceName(c.in); got != c.want {
			t.Errorf("NormalizeRaceName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBaseName(t *testing.T) {
	if got := lookup.BaseName("紫苑Ｓ(牝)"); got != "紫苑S" {
		t.Errorf("BaseName = %q", got)
	}
}

func TestNormalizeCourse(t *testing.T) {
	cases := []struct{ in, want string }{
		{"芝2400", "芝2400"},
		{"芝・左２４００", "芝2400"},
		{"ダ1600", "ダ1600"},
		{"障3110", "障3110"},
		{"", ""},
		{"右回り", ""},
	}
	for _, c := range cases {
		if got := lookup.NormalizeCourse(c.in); got != c.want {
			t.Errorf("NormalizeCourse(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func schedule() map[string][]index.RaceSummary {
	return map[string][]index.RaceSummary{
		"東京": {
			{Number: 9, Name: "むらさき賞", Kaisai: "4回東京11日目", Course: "芝1800"},
			{Number: 10, Name: "青嵐賞", Kaisai: "4回東京11日目", Course: "ダ1600"},
			{Number: 11, Name: "日本ダービー(G1)", Kaisai: "4回東京11日目", Course: "芝2400"},
		},
		"阪神": {
			{Number: 11, Name: "宝塚記念", Kaisai: "3回阪神8日目", Course: "芝2200"},
		},
	}
}

func TestResolveByNumber(t *testing.T) {
	r, ok := lookup.Resolve(schedule(), lookup.Query{Track: "東京", RaceNumber: 11})
	if !ok || r.Name != "日本ダービー(G1)" {
		t.Fatalf("Resolve = %+v %v", r, ok)
	}
}

func TestResolveExactNameWithWidthVariants(t *testing.T) {
	// Full-width digits in the prefixed track token and the race name.
	r, ok := lookup.Resolve(schedule(), lookup.Query{Track: "４東京１１", RaceName: "日本ダービー"})
	if !ok || r.Number != 11 {
		t.Fatalf("Resolve = %+v %v", r, ok)
	}
}

func TestResolveSubstring(t *testing.T) {
	r, ok := lookup.Resolve(schedule(), lookup.Query{Track: "東京", RaceName: "ダービー"})
	if !ok || r.Number != 11 {
		t.Fatalf("substring Resolve = %+v %v", r, ok)
	}
}

func TestResolveLooseKeyword(t *testing.T) {
	// "むらさき賞典" shares no exact or substring match but the leading
	// keyword before 賞 does.
	r, ok := lookup.Resolve(schedule(), lookup.Query{Track: "東京", RaceName: "むらさき特別"})
	if !ok || r.Number != 9 {
		t.Fatalf("loose Resolve = %+v %v", r, ok)
	}
}

func TestResolveDistanceTiebreak(t *testing.T) {
	byTrack := map[string][]index.RaceSummary{
		"東京": {
			{Number: 5, Name: "3歳未勝利", Course: "ダ1400"},
			{Number: 6, Name: "3歳未勝利", Course: "芝1800"},
		},
	}
	r, ok := lookup.Resolve(byTrack, lookup.Query{Track: "東京", RaceName: "3歳未勝利", DistanceHint: "芝1800"})
	if !ok || r.Number != 6 {
		t.Fatalf("tiebreak Resolve = %+v %v", r, ok)
	}
	// Without a hint the pass stays ambiguous and the lookup fails
	// rather than guessing.
	if _, ok := lookup.Resolve(byTrack, lookup.Query{Track: "東京", RaceName: "3歳未勝利"}); ok {
		t.Fatal("ambiguous lookup should not resolve")
	}
}

func TestResolveWrongMeetingPrefix(t *testing.T) {
	// The prefix narrows by meeting key; a wrong meeting still resolves
	// because narrowing only applies when it leaves candidates.
	r, ok := lookup.Resolve(schedule(), lookup.Query{Track: "阪神", RaceName: "宝塚記念"})
	if !ok || r.Number != 11 {
		t.Fatalf("Resolve = %+v %v", r, ok)
	}
}

func TestResolveUnknownTrack(t *testing.T) {
	if _, ok := lookup.Resolve(schedule(), lookup.Query{Track: "小倉", RaceNumber: 1}); ok {
		t.Fatal("unknown track should not resolve")
	}
}
