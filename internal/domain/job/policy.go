package job

import (
	"fmt"
	"io"
	"mime"
	"strings"
)

// Kind selects the backend pipeline for a document.
type Kind string

const (
	KindPDF          Kind = "pdf"
	KindPresentation Kind = "ppt"
)

// MaxUploadBytes is the backend's upload limit.
const MaxUploadBytes int64 = 50 * 1024 * 1024

const (
	MimePDF  = "application/pdf"
	MimePPT  = "application/vnd.ms-powerpoint"
	MimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

var defaultTypes = map[string]Kind{
	MimePDF:  KindPDF,
	MimePPT:  KindPresentation,
	MimePPTX: KindPresentation,
}

// Upload is a document waiting to be submitted.
type Upload struct {
	FileName string
	Size     int64
	MimeType string
	Body     io.Reader
}

// Reason classifies a local validation failure.
type Reason string

const (
	ReasonUnsupportedType Reason = "unsupported_type"
	ReasonTooLarge        Reason = "too_large"
)

// ValidationError is returned when an upload is rejected before any network call.
type ValidationError struct {
	Reason   Reason
	FileName string
	MimeType string
	Size     int64
	Limit    int64
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonTooLarge:
		return fmt.Sprintf("%s: file size %d exceeds limit of %d bytes", e.FileName, e.Size, e.Limit)
	case ReasonUnsupportedType:
		return fmt.Sprintf("%s: unsupported file type %q, expected a PDF or PPT file", e.FileName, e.MimeType)
	default:
		return fmt.Sprintf("%s: invalid upload", e.FileName)
	}
}

// UploadPolicy is the local allow-list and size limit.
type UploadPolicy struct {
	MaxBytes int64
	Types    map[string]Kind
}

// DefaultPolicy accepts PDF and PowerPoint up to MaxUploadBytes.
func DefaultPolicy() UploadPolicy {
	types := make(map[string]Kind, len(defaultTypes))
	for k, v := range defaultTypes {
		types[k] = v
	}
	return UploadPolicy{MaxBytes: MaxUploadBytes, Types: types}
}

// Check validates an upload and returns the pipeline kind it maps to.
func (p UploadPolicy) Check(u Upload) (Kind, error) {
	mimeType := NormalizeMime(u.MimeType)
	kind, ok := p.Types[mimeType]
	if !ok {
		return "", &ValidationError{Reason: ReasonUnsupportedType, FileName: u.FileName, MimeType: u.MimeType, Size: u.Size, Limit: p.MaxBytes}
	}
	if p.MaxBytes > 0 && u.Size > p.MaxBytes {
		return "", &ValidationError{Reason: ReasonTooLarge, FileName: u.FileName, MimeType: mimeType, Size: u.Size, Limit: p.MaxBytes}
	}
	return kind, nil
}

// Supports reports whether a MIME type is on the allow-list.
func (p UploadPolicy) Supports(mimeType string) bool {
	_, ok := p.Types[NormalizeMime(mimeType)]
	return ok
}

// NormalizeMime lowercases a media type and drops its parameters.
func NormalizeMime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(raw); err == nil {
		return mt
	}
	if i := strings.IndexByte(raw, ';'); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
