package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"neonote/internal/domain/account"
	"neonote/internal/domain/chat"
	"neonote/internal/domain/job"
	"neonote/internal/infrastructure/gateway"
)

const (
	pathUploadPDF = "/api/v1/ai/upload-pdf"
	pathUploadPPT = "/api/v1/ai/upload-ppt"
	pathStatus    = "/api/v1/ai/interactions/%s/status"
	pathChat      = "/api/v1/ai/chat"
	pathFeedback  = "/api/v1/ai/feedback"
	pathLogin     = "/api/v1/auth/student/login"
	pathRegister  = "/api/v1/auth/student/register"
)

// Sender is the transport the backend client runs on.
type Sender interface {
	Send(ctx context.Context, method, path string, body any) (json.RawMessage, error)
	SendMultipart(ctx context.Context, path string, file gateway.File) (json.RawMessage, error)
}

// Client maps NeoNote REST endpoints onto domain types.
type Client struct {
	sender Sender
	logger zerolog.Logger
}

// NewClient wraps a transport.
func NewClient(sender Sender, logger zerolog.Logger) *Client {
	return &Client{sender: sender, logger: logger.With().Str("component", "backend").Logger()}
}

// UploadPath returns the upload endpoint for a document kind.
func UploadPath(kind job.Kind) (string, error) {
	switch kind {
	case job.KindPDF:
		return pathUploadPDF, nil
	case job.KindPresentation:
		return pathUploadPPT, nil
	default:
		return "", fmt.Errorf("no upload endpoint for kind %q", kind)
	}
}

// UploadDocument posts the document and returns the created job's report.
func (c *Client) UploadDocument(ctx context.Context, kind job.Kind, upload job.Upload) (job.Report, error) {
	path, err := UploadPath(kind)
	if err != nil {
		return job.Report{}, err
	}
	raw, err := c.sender.SendMultipart(ctx, path, gateway.File{
		FieldName:   "file",
		FileName:    upload.FileName,
		ContentType: job.NormalizeMime(upload.MimeType),
		Body:        upload.Body,
	})
	if err != nil {
		return job.Report{}, err
	}
	return c.decodeJob(raw)
}

// JobStatus fetches the current state of a job.
func (c *Client) JobStatus(ctx context.Context, id string) (job.Report, error) {
	raw, err := c.sender.Send(ctx, http.MethodGet, fmt.Sprintf(pathStatus, url.PathEscape(id)), nil)
	if err != nil {
		return job.Report{}, err
	}
	report, err := c.decodeJob(raw)
	if err != nil {
		return job.Report{}, err
	}
	if report.ID == "" {
		report.ID = id
	}
	return report, nil
}

type jobDTO struct {
	ID           string     `json:"_id"`
	AltID        string     `json:"id"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"errorMessage"`
	Output       *outputDTO `json:"output"`
}

type outputDTO struct {
	VideoURL    string          `json:"videoUrl"`
	AudioURL    string          `json:"audioUrl"`
	SummaryText string          `json:"summaryText"`
	MindMap     json.RawMessage `json:"mindMap"`
	Flashcards  json.RawMessage `json:"flashcards"`
}

func (c *Client) decodeJob(raw json.RawMessage) (job.Report, error) {
	var dto jobDTO
	if err := decode(raw, &dto); err != nil {
		return job.Report{}, err
	}

	status, known := job.ParseStatus(dto.Status)
	if !known {
		c.logger.Warn().Str("status", dto.Status).Str("job_id", dto.ID).Msg("unknown job status, treating as processing")
	}

	report := job.Report{
		ID:           strings.TrimSpace(dto.ID),
		Status:       status,
		ErrorMessage: dto.ErrorMessage,
	}
	if report.ID == "" {
		report.ID = strings.TrimSpace(dto.AltID)
	}
	if dto.Output != nil {
		out := &job.Output{
			VideoURL:    dto.Output.VideoURL,
			AudioURL:    dto.Output.AudioURL,
			SummaryText: dto.Output.SummaryText,
		}
		if len(dto.Output.MindMap) > 0 && string(dto.Output.MindMap) != "null" {
			out.MindMap = dto.Output.MindMap
		}
		if len(dto.Output.Flashcards) > 0 {
			if err := json.Unmarshal(dto.Output.Flashcards, &out.Flashcards); err != nil {
				c.logger.Warn().Err(err).Str("job_id", report.ID).Msg("ignoring unreadable flashcards")
			}
		}
		report.Output = out
	}
	return report, nil
}

type grantDTO struct {
	AccessToken string `json:"accessToken"`
	User        struct {
		ID    string `json:"_id"`
		AltID string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

func (g grantDTO) grant() (account.Grant, error) {
	if g.AccessToken == "" {
		return account.Grant{}, fmt.Errorf("%w: missing access token", ErrMalformedResponse)
	}
	id := g.User.ID
	if id == "" {
		id = g.User.AltID
	}
	return account.Grant{
		AccessToken: g.AccessToken,
		User: account.User{
			ID:    id,
			Name:  g.User.Name,
			Email: g.User.Email,
			Role:  account.Role(g.User.Role),
		},
	}, nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, creds account.Credentials) (account.Grant, error) {
	raw, err := c.sender.Send(ctx, http.MethodPost, pathLogin, creds)
	if err != nil {
		return account.Grant{}, err
	}
	var dto grantDTO
	if err := decode(raw, &dto); err != nil {
		return account.Grant{}, err
	}
	return dto.grant()
}

// Register creates an account and returns its access token.
func (c *Client) Register(ctx context.Context, reg account.Registration) (account.Grant, error) {
	raw, err := c.sender.Send(ctx, http.MethodPost, pathRegister, reg)
	if err != nil {
		return account.Grant{}, err
	}
	var dto grantDTO
	if err := decode(raw, &dto); err != nil {
		return account.Grant{}, err
	}
	return dto.grant()
}

type chatMessageDTO struct {
	ID        string `json:"_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Feedback  string `json:"feedback"`
}

type chatSessionDTO struct {
	SessionID string           `json:"sessionId"`
	Messages  []chatMessageDTO `json:"messages"`
}

// ChatHistory returns stored chat sessions, most recent first.
func (c *Client) ChatHistory(ctx context.Context) ([]chat.Session, error) {
	raw, err := c.sender.Send(ctx, http.MethodGet, pathChat, nil)
	if err != nil {
		return nil, err
	}
	var dtos []chatSessionDTO
	if err := decode(raw, &dtos); err != nil {
		return nil, err
	}

	sessions := make([]chat.Session, 0, len(dtos))
	for _, dto := range dtos {
		session := chat.Session{ID: dto.SessionID, Messages: make([]chat.Message, 0, len(dto.Messages))}
		for _, m := range dto.Messages {
			msg := chat.Message{
				ID:       m.ID,
				Role:     m.Role,
				Content:  m.Content,
				Feedback: chat.Feedback(m.Feedback),
			}
			msg.Timestamp = parseTimestamp(m.Timestamp)
			session.Messages = append(session.Messages, msg)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// SendChat posts a user message. An empty sessionID starts a new conversation.
func (c *Client) SendChat(ctx context.Context, sessionID, text string) (chat.Reply, error) {
	body := map[string]any{"message": text}
	if sessionID != "" {
		body["sessionId"] = sessionID
	}
	raw, err := c.sender.Send(ctx, http.MethodPost, pathChat, body)
	if err != nil {
		return chat.Reply{}, err
	}
	var reply chat.Reply
	if err := decode(raw, &reply); err != nil {
		return chat.Reply{}, err
	}
	if reply.SessionID == "" {
		reply.SessionID = sessionID
	}
	return reply, nil
}

// SendFeedback records a relevance vote on an assistant message.
func (c *Client) SendFeedback(ctx context.Context, sessionID, messageID string, feedback chat.Feedback) error {
	raw, err := c.sender.Send(ctx, http.MethodPost, pathFeedback, map[string]string{
		"sessionId": sessionID,
		"messageId": messageID,
		"feedback":  string(feedback),
	})
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return decode(raw, nil)
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}
