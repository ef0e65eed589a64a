package models

import "time"

// Summary is one recorded summarize request.
type Summary struct {
	ID                 int64     `json:"id"`
	VideoID            string    `json:"video_id"`
	Title              string    `json:"title"`
	Channel            string    `json:"channel"`
	Mode               string    `json:"mode"` // classic, distributed
	MaxSentences       int       `json:"max_sentences"`
	EnglishSummary     string    `json:"english_summary"`
	TargetLanguage     string    `json:"target_language"`
	TranslatedSummary  string    `json:"translated_summary"`
	TranscriptLanguage string    `json:"transcript_language"`
	TranscriptSource   string    `json:"transcript_source"`
	CreatedAt          time.Time `json:"created_at"`
}
