// Package quran is the client for the alquran.cloud content API.
package quran

import (
	"encoding/json"
	"fmt"
)

// RevelationType is the place of revelation of a chapter.
type RevelationType string

const (
	Meccan  RevelationType = "Meccan"
	Medinan RevelationType = "Medinan"
)

// UnmarshalJSON rejects anything other than the two known tags.
func (r *RevelationType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch RevelationType(s) {
	case Meccan, Medinan:
		*r = RevelationType(s)
		return nil
	}
	return fmt.Errorf("unknown revelation type %q", s)
}

// Chapter is a surah as listed by the provider.
type Chapter struct {
	Number                 int            `json:"number"`
	Name                   string         `json:"name"`
	EnglishName            string         `json:"englishName"`
	EnglishNameTranslation string         `json:"englishNameTranslation"`
	NumberOfAyahs          int            `json:"numberOfAyahs"`
	RevelationType         RevelationType `json:"revelationType"`
}

// Verse is a single ayah. Audio is only set for audio editions.
type Verse struct {
	Number         int      `json:"number"`
	NumberInSurah  int      `json:"numberInSurah"`
	Text           string   `json:"text"`
	Audio          string   `json:"audio,omitempty"`
	AudioSecondary []string `json:"audioSecondary,omitempty"`
}

// Reciter is an audio edition.
type Reciter struct {
	Identifier  string `json:"identifier"`
	Name        string `json:"name"`
	EnglishName string `json:"englishName"`
}

// ChapterContent holds the text and audio collections of one chapter
// fetched for one reciter. The two are never replaced independently.
type ChapterContent struct {
	Chapter int
	Reciter string
	Text    []Verse
	Audio   []Verse
}

// Catalog is the startup payload.
type Catalog struct {
	Chapters []Chapter
	Reciters []Reciter
}

// envelope is the response wrapper used by every endpoint.
type envelope struct {
	Code   int             `json:"code"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type surahPayload struct {
	Number int     `json:"number"`
	Ayahs  []Verse `json:"ayahs"`
}
