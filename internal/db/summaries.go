package db

import (
	"database/sql"
	"errors"

	"github.com/video-stream/summarizer/internal/db/models"
)

const summaryColumns = `id, video_id, title, channel, mode, max_sentences, english_summary,
	target_language, translated_summary, transcript_language, transcript_source, created_at`

// SaveSummary records a summary and returns its ID.
func (d *Database) SaveSummary(s *models.Summary) (int64, error) {
	res, err := d.db.Exec(`
		INSERT INTO summaries (video_id, title, channel, mode, max_sentences, english_summary,
			target_language, translated_summary, transcript_language, transcript_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.VideoID, s.Title, s.Channel, s.Mode, s.MaxSentences, s.EnglishSummary,
		s.TargetLanguage, s.TranslatedSummary, s.TranscriptLanguage, s.TranscriptSource,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.ID = id
	return id, nil
}

// ListSummaries returns the newest summaries first. An empty videoID lists all.
func (d *Database) ListSummaries(videoID string, limit, offset int) ([]models.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + summaryColumns + " FROM summaries"
	args := []any{}
	if videoID != "" {
		query += " WHERE video_id = ?"
		args = append(args, videoID)
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []models.Summary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *s)
	}
	return summaries, rows.Err()
}

func (d *Database) GetSummary(id int64) (*models.Summary, error) {
	s, err := scanSummary(d.db.QueryRow("SELECT "+summaryColumns+" FROM summaries WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (d *Database) DeleteSummary(id int64) error {
	res, err := d.db.Exec("DELETE FROM summaries WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSummaries returns the number of recorded summaries.
func (d *Database) CountSummaries() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM summaries").Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (*models.Summary, error) {
	s := &models.Summary{}
	err := row.Scan(&s.ID, &s.VideoID, &s.Title, &s.Channel, &s.Mode, &s.MaxSentences, &s.EnglishSummary,
		&s.TargetLanguage, &s.TranslatedSummary, &s.TranscriptLanguage, &s.TranscriptSource, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}
