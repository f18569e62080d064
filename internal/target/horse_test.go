package target_test

import (
	"testing"

	"github.com/keibalab/umadata/internal/target"
)

func umLine(regNum, name string, mod func(line []byte)) []byte {
	line := make([]byte, target.UMLineLen)
	for i := range line {
		line[i] = ' '
	}
	copy(line[0:2], "UM")
	copy(line[11:21], regNum)
	line[21] = '0'
	copy(line[38:46], "20220315")
	copy(line[46:82], name)
	copy(line[82:118], "TO-KYO-SUTA-")
	copy(line[118:178], "Tokyo Star")
	line[200] = '2'
	copy(line[849:854], "01088")
	copy(line[854:862], "SUNADA")
	copy(line[970:1014], "UMADATA RACING")
	if mod != nil {
		mod(line)
	}
	return line
}

func TestDecodeHorseLine(t *testing.T) {
	h, ok := target.DecodeHorseLine(umLine("2022104567", "TOKYOSTAR", nil))
	if !ok {
		t.Fatal("expected a record")
	}
	if h.RegNum != "2022104567" {
		t.Errorf("RegNum = %q", h.RegNum)
	}
	if h.Deleted {
		t.Error("Deleted should be false for flag '0'")
	}
	if h.BirthDate != "20220315" {
		t.Errorf("BirthDate = %q", h.BirthDate)
	}
	if h.Name != "TOKYOSTAR" {
		t.Errorf("Name = %q", h.Name)
	}
	if h.NameEng != "Tokyo Star" {
		t.Errorf("NameEng = %q", h.NameEng)
	}
	if h.Sex != "牝" {
		t.Errorf("Sex = %q", h.Sex)
	}
	if h.TrainerCode != "01088" {
		t.Errorf("TrainerCode = %q", h.TrainerCode)
	}
	if h.Trainer != "SUNADA" {
		t.Errorf("Trainer = %q", h.Trainer)
	}
	if h.Owner != "UMADATA RACING" {
		t.Errorf("Owner = %q", h.Owner)
	}
}

func TestDecodeHorseLineRejects(t *testing.T) {
	if _, ok := target.DecodeHorseLine([]byte("UM short")); ok {
		t.Fatal("short line must not decode")
	}
	blank := umLine("          ", "X", nil)
	if _, ok := target.DecodeHorseLine(blank); ok {
		t.Fatal("blank registration number must not decode")
	}
}

func TestDecodeHorseFileSkipsJunk(t *testing.T) {
	data := append([]byte("not a record\n"), umLine("2022104567", "TOKYOSTAR", nil)...)
	data = append(data, '\n')
	horses := target.DecodeHorseFile(data)
	if len(horses) != 1 {
		t.Fatalf("got %d horses, want 1", len(horses))
	}
}
