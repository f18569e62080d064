package target

import (
	"bytes"

	"github.com/keibalab/umadata/internal/jptext"
)

// UMLineLen is the width of one UM horse-master record.
const UMLineLen = 1609

// DecodeHorseLine decodes one UM record. The boolean is false for lines
// of the wrong width.
func DecodeHorseLine(line []byte) (*Horse, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) != UMLineLen {
		return nil, false
	}
	h := &Horse{
		RegNum:      string(bytes.TrimSpace(line[11:21])),
		Deleted:     line[21] == '1',
		BirthDate:   string(line[38:46]),
		Name:        jptext.Field(line[46:82]),
		Kana:        jptext.Field(line[82:118]),
		NameEng:     jptext.Field(line[118:178]),
		Sex:         sexName(line[200]),
		TrainerCode: string(bytes.TrimSpace(line[849:854])),
		Trainer:     jptext.Field(line[854:862]),
		Owner:       jptext.Field(line[970:1014]),
	}
	if h.RegNum == "" {
		return nil, false
	}
	return h, true
}

// DecodeHorseFile decodes every UM record in a file buffer.
func DecodeHorseFile(data []byte) []*Horse {
	var out []*Horse
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		if h, ok := DecodeHorseLine(line); ok {
			out = append(out, h)
		}
	}
	return out
}
