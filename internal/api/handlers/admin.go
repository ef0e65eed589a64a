package handlers

import (
	"net/http"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/video-stream/summarizer/internal/api/middleware"
	"github.com/video-stream/summarizer/internal/auth"
	"github.com/video-stream/summarizer/internal/cache"
	"github.com/video-stream/summarizer/internal/db"
	"github.com/video-stream/summarizer/internal/job"
	"github.com/video-stream/summarizer/internal/storage"
)

var startTime = time.Now()

type AdminHandler struct {
	db      *db.Database
	store   *storage.Store
	cache   *cache.Cache
	queue   *job.JobQueue
	limiter *middleware.RateLimiter
}

func NewAdminHandler(database *db.Database, store *storage.Store, c *cache.Cache, queue *job.JobQueue, limiter *middleware.RateLimiter) *AdminHandler {
	return &AdminHandler{db: database, store: store, cache: c, queue: queue, limiter: limiter}
}

func validRole(role string) bool {
	return role == auth.RoleAdmin || role == auth.RoleUser
}

// ListUsers returns all users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers()
	if err != nil {
		jsonError(w, "failed to list users: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, users, http.StatusOK)
}

// CreateUser creates a new user
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		jsonError(w, "username and password are required", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleUser
	}
	if !validRole(req.Role) {
		jsonError(w, "role must be one of: admin, user", http.StatusBadRequest)
		return
	}

	id, err := h.db.CreateUser(req.Username, req.Password, req.Role)
	if err != nil {
		jsonError(w, "failed to create user (username may already exist)", http.StatusConflict)
		return
	}

	jsonResponse(w, map[string]any{"id": id, "username": req.Username, "role": req.Role}, http.StatusCreated)
}

// ResetPassword sets a new password for any user
func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid user ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		jsonError(w, "password is required", http.StatusBadRequest)
		return
	}
	if err := h.db.UpdateUserPassword(id, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// DeleteUser removes a user
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	claims := middleware.GetClaims(r)
	if claims != nil && claims.UserID == id {
		jsonError(w, "cannot delete yourself", http.StatusBadRequest)
		return
	}

	user, err := h.db.GetUserByID(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if user.Role == auth.RoleAdmin {
		count, err := h.db.CountAdmins()
		if err != nil {
			jsonError(w, "failed to check admin count", http.StatusInternalServerError)
			return
		}
		if count <= 1 {
			jsonError(w, "cannot delete the last admin", http.StatusBadRequest)
			return
		}
	}

	if err := h.db.DeleteUser(id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// RateLimits returns the per-IP limiter state
func (h *AdminHandler) RateLimits(w http.ResponseWriter, r *http.Request) {
	if h.limiter == nil {
		jsonError(w, "rate limiting disabled", http.StatusNotFound)
		return
	}
	jsonResponse(w, h.limiter.Status(), http.StatusOK)
}

// ClearRateLimits forgets all tracked clients
func (h *AdminHandler) ClearRateLimits(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil {
		h.limiter.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

// DashboardStats returns system stats for the admin dashboard
func (h *AdminHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	// Disk usage of the thumbnail store
	var diskTotal, diskFree, diskUsed uint64
	var stat syscall.Statfs_t
	if err := syscall.Statfs(h.store.Root(), &stat); err == nil {
		diskTotal = stat.Blocks * uint64(stat.Bsize)
		diskFree = stat.Bavail * uint64(stat.Bsize)
		diskUsed = diskTotal - diskFree
	}

	var memStat runtime.MemStats
	runtime.ReadMemStats(&memStat)

	thumbnails, _ := h.store.Search("", 100_000)

	jobCounts := map[job.JobStatus]int{}
	if h.queue != nil {
		for _, s := range []job.JobStatus{job.StatusPending, job.StatusRunning, job.StatusCompleted, job.StatusFailed, job.StatusCancelled} {
			jobs, err := h.queue.ListJobs(s)
			if err == nil {
				jobCounts[s] = len(jobs)
			}
		}
	}

	hits, misses := h.cache.Stats()
	summaries, _ := h.db.CountSummaries()
	users, _ := h.db.ListUsers()

	jsonResponse(w, map[string]any{
		"storage": map[string]uint64{
			"total": diskTotal,
			"used":  diskUsed,
			"free":  diskFree,
		},
		"system": map[string]any{
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
			"uptime_seconds": int(time.Since(startTime).Seconds()),
			"mem_alloc":      memStat.Alloc,
			"mem_sys":        memStat.Sys,
		},
		"cache": map[string]any{
			"hits":   hits,
			"misses": misses,
			"redis":  h.cache.Redis(),
		},
		"jobs":            jobCounts,
		"thumbnail_count": len(thumbnails),
		"summary_count":   summaries,
		"user_count":      len(users),
	}, http.StatusOK)
}
