package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/video-stream/summarizer/internal/api/middleware"
	"github.com/video-stream/summarizer/internal/auth"
	"github.com/video-stream/summarizer/internal/db"
	"github.com/video-stream/summarizer/internal/db/models"
	"github.com/video-stream/summarizer/internal/job"
	"github.com/video-stream/summarizer/internal/service"
	"github.com/video-stream/summarizer/internal/storage"
	"github.com/video-stream/summarizer/internal/upscale"
	"github.com/video-stream/summarizer/internal/youtube"
)

const testVideoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type stubVideos struct {
	transcriptErr error
	thumbErr      error
	thumb         []byte
	contentType   string
}

func (s *stubVideos) VideoInfoOrDefault(_ context.Context, id string) youtube.VideoInfo {
	return youtube.VideoInfo{ID: id, Title: "Stub Title", Channel: "Stub Channel"}
}

func (s *stubVideos) Transcript(_ context.Context, id string) (youtube.Transcript, error) {
	if s.transcriptErr != nil {
		return youtube.Transcript{}, s.transcriptErr
	}
	return youtube.Transcript{
		VideoID:  id,
		Language: "en",
		Source:   "language:en",
		Fragments: []youtube.Fragment{
			{Text: "This opening sentence explains what the whole video is going to cover.", Start: 0, Duration: 2.5},
			{Text: "The second sentence digs into the details of the first major topic.", Start: 2.5, Duration: 3},
			{Text: "A third sentence wraps things up with a short and clear conclusion.", Start: 65.25, Duration: 4},
		},
	}, nil
}

func (s *stubVideos) Thumbnail(_ context.Context, id string) (youtube.Thumbnail, error) {
	if s.thumbErr != nil {
		return youtube.Thumbnail{}, s.thumbErr
	}
	return youtube.Thumbnail{VideoID: id, Quality: "maxresdefault", ContentType: s.contentType, Data: s.thumb}, nil
}

func stubJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 16), uint8(y * 28), 90, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

type env struct {
	db     *db.Database
	store  *storage.Store
	videos *stubVideos
	svc    *service.Service
	queue  *job.JobQueue
	jwt    *auth.JWTService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	database, err := db.NewSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := storage.NewStore(filepath.Join(dir, "static"))
	require.NoError(t, store.EnsureLayout())

	videos := &stubVideos{thumb: stubJPEG(t)}
	svc := service.New(videos, store, nil, database, 1)
	queue := job.NewJobQueue(database.DB(), 1)

	return &env{db: database, store: store, videos: videos, svc: svc, queue: queue, jwt: auth.NewJWTService("test-secret")}
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{service.ErrMissingURL, http.StatusBadRequest},
		{fmt.Errorf("%w: bad", service.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("%w: x", youtube.ErrInvalidURL), http.StatusBadRequest},
		{fmt.Errorf("%w: 0.5", upscale.ErrInvalidScale), http.StatusBadRequest},
		{upscale.ErrUnknownResolution, http.StatusBadRequest},
		{fmt.Errorf("%w: %w", youtube.ErrNoTranscript, &youtube.StatusError{URL: "u", Code: 503}), http.StatusBadRequest},
		{youtube.ErrThumbnailNotFound, http.StatusNotFound},
		{db.ErrNotFound, http.StatusNotFound},
		{job.ErrNotFound, http.StatusNotFound},
		{job.ErrActive, http.StatusConflict},
		{job.ErrNotRetried, http.StatusConflict},
		{fmt.Errorf("page: %w", &youtube.StatusError{URL: "u", Code: 500}), http.StatusBadGateway},
		{fmt.Errorf("x: %w", upscale.ErrDecode), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, msg := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.NotEmpty(t, msg)
	}

	_, msg := errorStatus(fmt.Errorf("secret detail"))
	assert.Equal(t, "internal server error", msg, "internal errors are not leaked")
}

func TestSummarizeHandler(t *testing.T) {
	e := newEnv(t)
	h := http.HandlerFunc(NewSummarizeHandler(e.svc, e.db).Summarize)

	rec := do(t, h, http.MethodPost, "/api/summarize", map[string]any{"video_url": testVideoURL})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "Stub Title", resp["video_info"].(map[string]any)["title"])
	assert.NotEmpty(t, resp["english_summary"])
	assert.Contains(t, resp["hindi_summary"], "Translation to hi")
	assert.Equal(t, "hi", resp["target_language"])

	rec = do(t, h, http.MethodPost, "/api/summarize", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing video URL", decode[map[string]string](t, rec)["error"])

	rec = do(t, h, http.MethodPost, "/api/summarize", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.videos.transcriptErr = youtube.ErrNoTranscript
	rec = do(t, h, http.MethodPost, "/api/summarize", map[string]any{"video_url": testVideoURL})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Could not retrieve transcript for this video", decode[map[string]string](t, rec)["error"])
}

func TestSummarizeUsesStoredDefaults(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.SetSetting(settingTargetLanguage, "fr"))
	require.NoError(t, e.db.SetSetting(settingMode, service.ModeDistributed))
	require.NoError(t, e.db.SetSetting(settingMaxSentences, "2"))
	h := http.HandlerFunc(NewSummarizeHandler(e.svc, e.db).Summarize)

	rec := do(t, h, http.MethodPost, "/api/summarize", map[string]any{"video_url": testVideoURL})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[service.SummarizeResponse](t, rec)
	assert.Equal(t, "fr", resp.TargetLanguage)
	assert.Equal(t, service.ModeDistributed, resp.Mode)
	assert.Equal(t, 2, resp.MaxSentences)

	rec = do(t, h, http.MethodPost, "/api/summarize", map[string]any{"video_url": testVideoURL, "target_language": "de"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "de", decode[service.SummarizeResponse](t, rec).TargetLanguage)
}

func TestThumbnailGet(t *testing.T) {
	e := newEnv(t)
	h := http.HandlerFunc(NewThumbnailHandler(e.svc, e.db).Get)

	rec := do(t, h, http.MethodGet, "/api/thumbnail?url="+testVideoURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, e.videos.thumb, rec.Body.Bytes())

	e.videos.contentType = "image/webp"
	rec = do(t, h, http.MethodGet, "/api/thumbnail?url="+testVideoURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))

	rec = do(t, h, http.MethodGet, "/api/thumbnail", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.videos.thumbErr = youtube.ErrThumbnailNotFound
	rec = do(t, h, http.MethodGet, "/api/thumbnail?url="+testVideoURL, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThumbnailDownload(t *testing.T) {
	e := newEnv(t)
	h := http.HandlerFunc(NewThumbnailHandler(e.svc, e.db).Download)

	rec := do(t, h, http.MethodPost, "/api/download-thumbnail", map[string]any{"video_url": testVideoURL})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "static/thumbnails/dQw4w9WgXcQ.jpg", resp["thumbnail_path"])
	assert.Equal(t, "/static/thumbnails/dQw4w9WgXcQ.jpg", resp["url"])
	assert.True(t, e.store.Exists("thumbnails/dQw4w9WgXcQ.jpg"))

	rec = do(t, h, http.MethodPost, "/api/download-thumbnail", map[string]any{"video_url": "https://example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThumbnailUpscale(t *testing.T) {
	e := newEnv(t)
	h := http.HandlerFunc(NewThumbnailHandler(e.svc, e.db).Upscale)

	rec := do(t, h, http.MethodPost, "/api/upscale-thumbnail", map[string]any{"video_url": testVideoURL})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "2x", resp["resolution"])
	assert.EqualValues(t, 32, resp["width"])
	assert.Equal(t, "static/thumbnails/dQw4w9WgXcQ.jpg", resp["original_thumbnail_path"])
	assert.Equal(t, "/static/thumbnails/upscaled/dQw4w9WgXcQ_upscaled_32x18.jpg", resp["upscaled_url"])
	assert.Equal(t, false, resp["degraded"])

	rec = do(t, h, http.MethodPost, "/api/upscale-thumbnail", map[string]any{"video_url": testVideoURL, "target_resolution": "4k"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "4K", decode[map[string]any](t, rec)["resolution"])

	rec = do(t, h, http.MethodPost, "/api/upscale-thumbnail", map[string]any{"video_url": testVideoURL, "scale_factor": 0.5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/upscale-thumbnail", map[string]any{"video_url": testVideoURL, "scale_factor": 1e7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/upscale-thumbnail", map[string]any{"video_url": testVideoURL, "target_resolution": "16K"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/upscale-thumbnail", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.videos.thumb = []byte("not an image")
	rec = do(t, h, http.MethodPost, "/api/upscale-thumbnail", map[string]any{"video_url": testVideoURL})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestUpscaleRequestDefaults(t *testing.T) {
	three := 3.0
	empty := ""
	d := defaults{ScaleFactor: 1.5, TargetResolution: "8K"}

	p := upscaleRequest{VideoURL: "u"}.params(d)
	assert.Equal(t, 1.5, p.ScaleFactor)
	assert.Equal(t, "8K", p.TargetResolution)

	p = upscaleRequest{VideoURL: "u", ScaleFactor: &three, TargetResolution: &empty}.params(d)
	assert.Equal(t, 3.0, p.ScaleFactor)
	assert.Equal(t, "", p.TargetResolution, "explicit empty overrides the default")
}

func TestSubtitleFormats(t *testing.T) {
	e := newEnv(t)
	h := http.HandlerFunc(NewSubtitleHandler(e.svc).GetTranscript)

	rec := do(t, h, http.MethodGet, "/api/transcript?url="+testVideoURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tr := decode[youtube.Transcript](t, rec)
	assert.Len(t, tr.Fragments, 3)

	rec = do(t, h, http.MethodGet, "/api/transcript?format=vtt&url="+testVideoURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	vtt := rec.Body.String()
	assert.True(t, strings.HasPrefix(vtt, "WEBVTT\n\n"))
	assert.Contains(t, vtt, "00:00:00.000 --> 00:00:02.500\n")
	assert.Contains(t, vtt, "00:01:05.250 --> 00:01:09.250\n")

	rec = do(t, h, http.MethodGet, "/api/transcript?format=srt&url="+testVideoURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "1\n00:00:00,000 --> 00:00:02,500\n"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "dQw4w9WgXcQ.en.srt")

	rec = do(t, h, http.MethodGet, "/api/transcript?format=txt&url="+testVideoURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "This opening sentence"))

	rec = do(t, h, http.MethodGet, "/api/transcript?format=pdf&url="+testVideoURL, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00.000", timestamp(0, '.'))
	assert.Equal(t, "01:01:01,001", timestamp(3661.001, ','))
	assert.Equal(t, "00:00:00.000", timestamp(-3, '.'))
}

func TestHealth(t *testing.T) {
	rec := do(t, http.HandlerFunc(Health), http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestSettingsHandler(t *testing.T) {
	e := newEnv(t)
	h := NewSettingsHandler(e.db)

	rec := do(t, http.HandlerFunc(h.UpdateSettings), http.MethodPut, "/api/settings",
		map[string]string{settingScaleFactor: "3", settingTargetResolution: "8k"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	for body, msg := range map[string]string{
		`{"default_scale_factor":"0.5"}`:      "default_scale_factor",
		`{"default_scale_factor":"1e7"}`:      "default_scale_factor",
		`{"default_mode":"abstractive"}`:      "default_mode",
		`{"default_max_sentences":"42"}`:      "default_max_sentences",
		`{"default_target_resolution":"16K"}`: "default_target_resolution",
		`{"gemini_api_key":"AIza"}`:           "unknown setting",
		`{"default_target_language":"x"}`:     "default_target_language",
	} {
		rec = do(t, http.HandlerFunc(h.UpdateSettings), http.MethodPut, "/api/settings", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), msg)
	}

	rec = do(t, http.HandlerFunc(h.GetSettings), http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]map[string]any](t, rec)
	require.Len(t, items, len(settingsKeys))
	values := map[string]any{}
	for _, it := range items {
		values[it["key"].(string)] = it["value"]
	}
	assert.Equal(t, "3", values[settingScaleFactor])
	assert.Equal(t, "8k", values[settingTargetResolution])
	assert.Equal(t, "", values[settingMode])

	d := loadDefaults(e.db)
	assert.Equal(t, 3.0, d.ScaleFactor)
	assert.Equal(t, "8k", d.TargetResolution)

	rec = do(t, http.HandlerFunc(h.UpdateSettings), http.MethodPut, "/api/settings", map[string]string{settingScaleFactor: ""})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, loadDefaults(e.db).ScaleFactor)
}

func TestAuthHandler(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.EnsureAdmin("admin", "admin-password"))
	h := NewAuthHandler(e.db, e.jwt)

	rec := do(t, http.HandlerFunc(h.Login), http.MethodPost, "/api/auth/login",
		map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, http.HandlerFunc(h.Login), http.MethodPost, "/api/auth/login",
		map[string]string{"username": "nobody", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, http.HandlerFunc(h.Login), http.MethodPost, "/api/auth/login",
		map[string]string{"username": "admin", "password": "admin-password"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[loginResponse](t, rec)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, auth.RoleAdmin, login.User.Role)
	assert.False(t, login.ExpiresAt.IsZero())

	protected := middleware.AuthMiddleware(e.jwt)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	protected(http.HandlerFunc(h.Me)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decode[map[string]any](t, rec)["username"])

	change := func(current, next string) int {
		raw, _ := json.Marshal(map[string]string{"current_password": current, "new_password": next})
		req := httptest.NewRequest(http.MethodPut, "/api/auth/password", bytes.NewReader(raw))
		req.Header.Set("Authorization", "Bearer "+login.Token)
		rec := httptest.NewRecorder()
		protected(http.HandlerFunc(h.ChangePassword)).ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusBadRequest, change("admin-password", "short"))
	assert.Equal(t, http.StatusUnauthorized, change("wrong", "long-enough-password"))
	assert.Equal(t, http.StatusOK, change("admin-password", "long-enough-password"))

	user, err := e.db.GetUserByUsername("admin")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("long-enough-password", user.Password))
}

func TestHistoryHandler(t *testing.T) {
	e := newEnv(t)
	for _, id := range []string{"aaaaaaaaaaa", "dQw4w9WgXcQ", "dQw4w9WgXcQ"} {
		_, err := e.db.SaveSummary(&models.Summary{VideoID: id, EnglishSummary: "s."})
		require.NoError(t, err)
	}
	h := NewUserHandler(e.db)
	r := chi.NewRouter()
	r.Get("/api/history", h.ListHistory)
	r.Get("/api/history/{id}", h.GetHistory)
	r.Delete("/api/history/{id}", h.DeleteHistory)

	type page struct {
		Items []models.Summary `json:"items"`
		Limit int              `json:"limit"`
	}

	rec := do(t, r, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[page](t, rec).Items, 3)

	rec = do(t, r, http.MethodGet, "/api/history?video="+testVideoURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[page](t, rec).Items, 2)

	rec = do(t, r, http.MethodGet, "/api/history?video=aaaaaaaaaaa&limit=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[page](t, rec)
	assert.Len(t, p.Items, 1)
	assert.Equal(t, maxHistoryPage, p.Limit)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/history?limit=-1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/history?video=nope", nil).Code)

	rec = do(t, r, http.MethodGet, "/api/history/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aaaaaaaaaaa", decode[models.Summary](t, rec).VideoID)

	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/api/history/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/api/history/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/history/1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/history/abc", nil).Code)
}

func TestFilesHandler(t *testing.T) {
	e := newEnv(t)
	_, err := e.store.SaveThumbnail("dQw4w9WgXcQ", []byte("x"))
	require.NoError(t, err)
	h := NewFilesHandler(e.store)
	r := chi.NewRouter()
	r.Get("/api/thumbnails/tree", h.GetTree)
	r.Get("/api/thumbnails/tree/*", h.GetTree)
	r.Get("/api/thumbnails/search", h.Search)

	rec := do(t, r, http.MethodGet, "/api/thumbnails/tree", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dQw4w9WgXcQ.jpg")
	assert.Contains(t, rec.Body.String(), `"upscaled"`)

	rec = do(t, r, http.MethodGet, "/api/thumbnails/tree/upscaled", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/thumbnails/tree/..%2F..%2F..", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/thumbnails/search?q=dqw4", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/static/thumbnails/dQw4w9WgXcQ.jpg")

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/thumbnails/search", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/thumbnails/search?q=a&limit=x", nil).Code)
}

func TestJobHandler(t *testing.T) {
	e := newEnv(t)
	h := NewJobHandler(e.queue, e.db)
	r := chi.NewRouter()
	r.Post("/api/jobs/upscale", h.EnqueueUpscale)
	r.Get("/api/jobs", h.ListJobs)
	r.Get("/api/jobs/{id}", h.GetJob)
	r.Delete("/api/jobs/{id}", h.CancelJob)
	r.Post("/api/jobs/{id}/retry", h.RetryJob)

	// The queue is not started, so jobs stay pending.
	rec := do(t, r, http.MethodPost, "/api/jobs/upscale", map[string]any{"video_url": testVideoURL, "scale_factor": 2})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	created := decode[job.Job](t, rec)
	assert.Equal(t, job.StatusPending, created.Status)
	assert.Equal(t, testVideoURL, created.Source)

	assert.Equal(t, http.StatusBadRequest,
		do(t, r, http.MethodPost, "/api/jobs/upscale", map[string]any{"video_url": testVideoURL, "target_resolution": "2K"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/jobs/upscale", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, r, http.MethodPost, "/api/jobs/upscale", map[string]any{"video_url": testVideoURL, "scale_factor": 1e7}).Code)

	rec = do(t, r, http.MethodGet, "/api/jobs?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]job.Job](t, rec), 1)

	rec = do(t, r, http.MethodGet, "/api/jobs?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/jobs?status=bogus", nil).Code)

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/jobs/missing", nil).Code)
	assert.Equal(t, http.StatusConflict, do(t, r, http.MethodPost, "/api/jobs/"+created.ID+"/retry", nil).Code)

	// First delete cancels, second removes.
	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/api/jobs/"+created.ID, nil).Code)
	rec = do(t, r, http.MethodGet, "/api/jobs/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, job.StatusCancelled, decode[job.Job](t, rec).Status)

	rec = do(t, r, http.MethodPost, "/api/jobs/"+created.ID+"/retry", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, job.StatusPending, decode[job.Job](t, rec).Status)

	require.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/api/jobs/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/api/jobs/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/jobs/"+created.ID, nil).Code)
}

func TestAdminHandler(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.EnsureAdmin("admin", "pw"))
	limiter := middleware.NewRateLimiter(5, time.Minute)
	defer limiter.Close()
	h := NewAdminHandler(e.db, e.store, nil, e.queue, limiter)

	admin, err := e.db.GetUserByUsername("admin")
	require.NoError(t, err)
	token, err := e.jwt.GenerateToken(admin.ID, admin.Username, admin.Role)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.AuthMiddleware(e.jwt))
	r.Get("/api/admin/users", h.ListUsers)
	r.Post("/api/admin/users", h.CreateUser)
	r.Put("/api/admin/users/{id}/password", h.ResetPassword)
	r.Delete("/api/admin/users/{id}", h.DeleteUser)
	r.Get("/api/admin/stats", h.DashboardStats)
	r.Get("/api/admin/rate-limits", h.RateLimits)

	call := func(method, target string, body any) *httptest.ResponseRecorder {
		var raw []byte
		if body != nil {
			raw, _ = json.Marshal(body)
		}
		req := httptest.NewRequest(method, target, bytes.NewReader(raw))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := call(http.MethodPost, "/api/admin/users", map[string]string{"username": "bob", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bobID := int64(decode[map[string]any](t, rec)["id"].(float64))

	assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, "/api/admin/users", map[string]string{"username": "eve", "password": "pw", "role": "editor"}).Code)
	assert.Equal(t, http.StatusConflict, call(http.MethodPost, "/api/admin/users", map[string]string{"username": "bob", "password": "pw"}).Code)

	rec = call(http.MethodGet, "/api/admin/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	assert.Equal(t, http.StatusOK, call(http.MethodPut, fmt.Sprintf("/api/admin/users/%d/password", bobID), map[string]string{"password": "new"}).Code)
	assert.Equal(t, http.StatusNotFound, call(http.MethodPut, "/api/admin/users/999/password", map[string]string{"password": "new"}).Code)

	assert.Equal(t, http.StatusBadRequest, call(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", admin.ID), nil).Code, "self")
	assert.Equal(t, http.StatusOK, call(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", bobID), nil).Code)
	assert.Equal(t, http.StatusNotFound, call(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", bobID), nil).Code)

	rec = call(http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, stats["user_count"])
	assert.Contains(t, stats, "system")
	assert.Equal(t, false, stats["cache"].(map[string]any)["redis"])

	rec = call(http.MethodGet, "/api/admin/rate-limits", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5, decode[map[string]any](t, rec)["limit"])
}

func TestDeleteLastAdmin(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.EnsureAdmin("admin", "pw"))
	otherID, err := e.db.CreateUser("root2", "pw", auth.RoleAdmin)
	require.NoError(t, err)
	admin, err := e.db.GetUserByUsername("admin")
	require.NoError(t, err)

	h := NewAdminHandler(e.db, e.store, nil, nil, nil)
	r := chi.NewRouter()
	r.Delete("/api/admin/users/{id}", h.DeleteUser)

	// Without claims the self-check is skipped; the last-admin check still applies.
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", otherID), nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", admin.ID), nil).Code)
}
