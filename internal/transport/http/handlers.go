package http

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"neonote/internal/application/jobs"
	"neonote/internal/domain/account"
	chatdomain "neonote/internal/domain/chat"
	"neonote/internal/domain/job"
	"neonote/internal/infrastructure/session"
)

const (
	maxJSONBody      = 1 << 20
	multipartMemory  = 32 << 20
	maxFilesPerBatch = 20

	// partOverhead covers part headers and boundaries.
	partOverhead = 1 << 20
)

type jobUseCases interface {
	SubmitBatch(ctx context.Context, uploads []job.Upload) []jobs.Result
	Get(id string) (job.Job, error)
	List() []job.Job
	Delete(id string) error
	Resume(id string) (job.Job, error)
	Artifact(id string, feature job.Feature) (string, error)
	Subscribe() (<-chan jobs.Event, func())
}

type chatUseCases interface {
	History(ctx context.Context) ([]chatdomain.Session, error)
	Send(ctx context.Context, sessionID, text string) (chatdomain.Reply, error)
	Feedback(ctx context.Context, sessionID, messageID string, feedback chatdomain.Feedback) error
}

type authUseCases interface {
	Login(ctx context.Context, creds account.Credentials) (session.Session, error)
	Register(ctx context.Context, reg account.Registration) (session.Session, error)
	Logout() error
	Current() (session.Session, error)
}

// Handler serves the local tracker API.
type Handler struct {
	jobs           jobUseCases
	chat           chatUseCases
	auth           authUseCases
	maxUploadBytes int64
	heartbeat      time.Duration
	logger         zerolog.Logger
}

// NewHandler wires HTTP handlers with application use cases.
func NewHandler(jobService jobUseCases, chatService chatUseCases, authService authUseCases, maxUploadBytes int64, logger zerolog.Logger) *Handler {
	return &Handler{
		jobs:           jobService,
		chat:           chatService,
		auth:           authService,
		maxUploadBytes: maxUploadBytes,
		heartbeat:      15 * time.Second,
		logger:         logger.With().Str("component", "api").Logger(),
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadResult struct {
	FileName string         `json:"fileName"`
	Job      *job.Job       `json:"job,omitempty"`
	Error    *ErrorResponse `json:"error,omitempty"`
}

// Upload handles POST /api/uploads with one or more "file" parts.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadBodyLimit())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, r, h.logger, errors.Join(errBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 || len(headers) > maxFilesPerBatch {
		writeError(w, r, h.logger, errBadRequest)
		return
	}

	uploads := make([]job.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		files = append(files, f)
		uploads = append(uploads, job.Upload{
			FileName: fh.Filename,
			Size:     fh.Size,
			MimeType: fh.Header.Get("Content-Type"),
			Body:     f,
		})
	}

	results := h.jobs.SubmitBatch(r.Context(), uploads)
	if len(results) == 1 && results[0].Err != nil {
		writeError(w, r, h.logger, results[0].Err)
		return
	}

	resp := make([]uploadResult, 0, len(results))
	accepted := 0
	for _, res := range results {
		item := uploadResult{FileName: res.FileName}
		if res.Err != nil {
			_, payload := classify(res.Err)
			item.Error = &payload
		} else {
			j := res.Job
			item.Job = &j
			accepted++
		}
		resp = append(resp, item)
	}

	status := http.StatusCreated
	if accepted == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, h.logger, status, map[string]any{"results": resp})
}

// uploadBodyLimit admits a full batch of files at the size limit. An
// oversized file inside that budget still reaches the submitter, which
// rejects it with a per-file validation error.
func (h *Handler) uploadBodyLimit() int64 {
	return maxFilesPerBatch*(h.maxUploadBytes+partOverhead) + maxJSONBody
}

// ListJobs handles GET /api/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.jobs.List())
}

// GetJob handles GET /api/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, j)
}

// DeleteJob handles DELETE /api/jobs/{id}.
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResumeJob handles POST /api/jobs/{id}/poll.
func (h *Handler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Resume(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, j)
}

// Artifact handles GET /api/jobs/{id}/artifacts/{feature}.
func (h *Handler) Artifact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	feature := job.Feature(vars["feature"])
	value, err := h.jobs.Artifact(vars["id"], feature)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := map[string]any{"feature": feature}
	switch feature {
	case job.FeatureMindMap, job.FeatureFlashcards:
		resp["data"] = json.RawMessage(value)
	default:
		resp["value"] = value
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// ChatHistory handles GET /api/chat.
func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chat.History(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, sessions)
}

// SendChat handles POST /api/chat.
func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"sessionId"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.chat.Send(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, reply)
}

// ChatFeedback handles POST /api/chat/feedback.
func (h *Handler) ChatFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string              `json:"sessionId"`
		MessageID string              `json:"messageId"`
		Feedback  chatdomain.Feedback `json:"feedback"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.chat.Feedback(r.Context(), req.SessionID, req.MessageID, req.Feedback); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *account.User `json:"user,omitempty"`
	SavedAt       *time.Time    `json:"savedAt,omitempty"`
}

func toSessionResponse(sess session.Session) sessionResponse {
	user := sess.User
	saved := sess.SavedAt
	return sessionResponse{Authenticated: true, User: &user, SavedAt: &saved}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds account.Credentials
	if !h.decode(w, r, &creds) {
		return
	}
	sess, err := h.auth.Login(r.Context(), creds)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toSessionResponse(sess))
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var reg account.Registration
	if !h.decode(w, r, &reg) {
		return
	}
	sess, err := h.auth.Register(r.Context(), reg)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, toSessionResponse(sess))
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/auth/session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	sess, err := h.auth.Current()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(out); err != nil {
		writeError(w, r, h.logger, errors.Join(errBadRequest, err))
		return false
	}
	return true
}
