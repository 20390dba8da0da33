package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"neonote/internal/domain/account"
	"neonote/internal/domain/chat"
	"neonote/internal/domain/job"
	"neonote/internal/infrastructure/gateway"
)

type stubSender struct {
	method string
	path   string
	body   any
	file   gateway.File
	raw    string
	err    error
}

func (s *stubSender) Send(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	s.method, s.path, s.body = method, path, body
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.raw), nil
}

func (s *stubSender) SendMultipart(ctx context.Context, path string, file gateway.File) (json.RawMessage, error) {
	s.path, s.file = path, file
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.raw), nil
}

func TestUploadDocumentRoutesByKind(t *testing.T) {
	sender := &stubSender{raw: `{"success":true,"data":{"_id":"j1","status":"processing"}}`}
	c := NewClient(sender, zerolog.Nop())

	report, err := c.UploadDocument(context.Background(), job.KindPresentation, job.Upload{
		FileName: "deck.pptx",
		MimeType: job.MimePPTX,
		Body:     strings.NewReader("deck"),
	})
	require.NoError(t, err)
	require.Equal(t, "/api/v1/ai/upload-ppt", sender.path)
	require.Equal(t, "file", sender.file.FieldName)
	require.Equal(t, job.MimePPTX, sender.file.ContentType)
	data, _ := io.ReadAll(sender.file.Body)
	require.Equal(t, "deck", string(data))
	require.Equal(t, job.Report{ID: "j1", Status: job.StatusProcessing}, report)

	_, err = c.UploadDocument(context.Background(), job.KindPDF, job.Upload{FileName: "a.pdf", Body: strings.NewReader("")})
	require.NoError(t, err)
	require.Equal(t, "/api/v1/ai/upload-pdf", sender.path)
}

func TestJobStatusDecodesOutput(t *testing.T) {
	sender := &stubSender{raw: `{"success":true,"data":{"_id":"j1","status":"completed","output":{"videoUrl":"v","summaryText":"s","mindMap":{"root":"x"},"flashcards":[{"front":"f","back":"b"}]}}}`}
	c := NewClient(sender, zerolog.Nop())

	report, err := c.JobStatus(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, "/api/v1/ai/interactions/j1/status", sender.path)
	require.Equal(t, job.StatusCompleted, report.Status)
	require.Equal(t, "v", report.Output.VideoURL)
	require.JSONEq(t, `{"root":"x"}`, string(report.Output.MindMap))
	require.Equal(t, []job.Flashcard{{Front: "f", Back: "b"}}, report.Output.Flashcards)
}

func TestJobStatusDefaultsMissingFields(t *testing.T) {
	sender := &stubSender{raw: `{"success":true,"data":{"errorMessage":""}}`}
	report, err := NewClient(sender, zerolog.Nop()).JobStatus(context.Background(), "a/b")
	require.NoError(t, err)
	require.Equal(t, "/api/v1/ai/interactions/a%2Fb/status", sender.path)
	require.Equal(t, "a/b", report.ID)
	require.Equal(t, job.StatusProcessing, report.Status)
}

func TestRejectedEnvelope(t *testing.T) {
	sender := &stubSender{raw: `{"success":false,"message":"quota exceeded"}`}
	_, err := NewClient(sender, zerolog.Nop()).JobStatus(context.Background(), "j1")
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, "quota exceeded", rejected.Message)
}

func TestMalformedBody(t *testing.T) {
	sender := &stubSender{raw: `not json`}
	_, err := NewClient(sender, zerolog.Nop()).JobStatus(context.Background(), "j1")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestTransportErrorsPassThrough(t *testing.T) {
	netErr := &gateway.NetworkError{Method: "GET", Path: "/x", Err: io.ErrUnexpectedEOF}
	sender := &stubSender{err: netErr}
	_, err := NewClient(sender, zerolog.Nop()).JobStatus(context.Background(), "j1")
	require.Same(t, netErr, err)
}

func TestLoginReturnsGrant(t *testing.T) {
	sender := &stubSender{raw: `{"success":true,"data":{"accessToken":"tok","user":{"_id":"u1","name":"Ada","email":"ada@example.com","role":"student"}}}`}
	grant, err := NewClient(sender, zerolog.Nop()).Login(context.Background(), account.Credentials{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "/api/v1/auth/student/login", sender.path)
	require.Equal(t, "tok", grant.AccessToken)
	require.Equal(t, account.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: account.RoleStudent}, grant.User)
}

func TestLoginWithoutTokenIsMalformed(t *testing.T) {
	sender := &stubSender{raw: `{"success":true,"data":{"user":{}}}`}
	_, err := NewClient(sender, zerolog.Nop()).Login(context.Background(), account.Credentials{})
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestChatRoundTrip(t *testing.T) {
	sender := &stubSender{raw: `{"success":true,"data":[{"sessionId":"s1","messages":[{"_id":"m1","role":"user","content":"hi","timestamp":"2024-05-01T10:00:00Z"}]}]}`}
	c := NewClient(sender, zerolog.Nop())

	sessions, err := c.ChatHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "s1", sessions[0].ID)
	require.Equal(t, "hi", sessions[0].Messages[0].Content)
	require.Equal(t, 2024, sessions[0].Messages[0].Timestamp.Year())

	sender.raw = `{"success":true,"data":{"reply":"hello","messageId":"m2"}}`
	reply, err := c.SendChat(context.Background(), "s1", "hi")
	require.NoError(t, err)
	require.Equal(t, chat.Reply{SessionID: "s1", MessageID: "m2", Text: "hello"}, reply)
	require.Equal(t, map[string]any{"message": "hi", "sessionId": "s1"}, sender.body)

	sender.raw = `{"success":true}`
	require.NoError(t, c.SendFeedback(context.Background(), "s1", "m2", chat.FeedbackRelevant))
	require.Equal(t, "/api/v1/ai/feedback", sender.path)
}
