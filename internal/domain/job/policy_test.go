package job

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyAcceptsDocuments(t *testing.T) {
	p := DefaultPolicy()

	cases := map[string]Kind{
		MimePDF:                KindPDF,
		"Application/PDF; q=1": KindPDF,
		MimePPT:                KindPresentation,
		MimePPTX:               KindPresentation,
	}
	for mimeType, want := range cases {
		kind, err := p.Check(Upload{FileName: "doc", Size: 10, MimeType: mimeType})
		require.NoError(t, err, mimeType)
		require.Equal(t, want, kind, mimeType)
	}
}

func TestPolicySizeLimitIsInclusive(t *testing.T) {
	p := DefaultPolicy()

	_, err := p.Check(Upload{FileName: "edge.pdf", Size: MaxUploadBytes, MimeType: MimePDF})
	require.NoError(t, err)

	_, err = p.Check(Upload{FileName: "big.pdf", Size: MaxUploadBytes + 1, MimeType: MimePDF})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, ReasonTooLarge, verr.Reason)
	require.Equal(t, int64(52428800), verr.Limit)
}

func TestPolicyRejectsUnsupportedType(t *testing.T) {
	p := DefaultPolicy()

	for _, mimeType := range []string{"image/png", "", "application/msword"} {
		_, err := p.Check(Upload{FileName: "x", Size: 1, MimeType: mimeType})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), mimeType)
		require.Equal(t, ReasonUnsupportedType, verr.Reason)
	}
}

func TestUnsupportedTypeWinsOverSize(t *testing.T) {
	_, err := DefaultPolicy().Check(Upload{FileName: "huge.png", Size: MaxUploadBytes * 2, MimeType: "image/png"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, ReasonUnsupportedType, verr.Reason)
}
