package job

import (
	"encoding/json"
	"errors"
)

// Feature names a learning artifact derived from a completed job.
type Feature string

const (
	FeatureVideo        Feature = "video"
	FeatureAudioSummary Feature = "audio-summary"
	FeatureMindMap      Feature = "mind-map"
	FeatureFlashcards   Feature = "flashcards"
)

var (
	ErrNotReady            = errors.New("job is still processing")
	ErrArtifactUnavailable = errors.New("artifact not available for this job")
	ErrUnknownFeature      = errors.New("unknown feature")
)

// Artifact returns the payload for a feature: a URL, summary text, or JSON.
func (j Job) Artifact(f Feature) (string, error) {
	switch f {
	case FeatureVideo, FeatureAudioSummary, FeatureMindMap, FeatureFlashcards:
	default:
		return "", ErrUnknownFeature
	}
	if j.Status != StatusCompleted || j.Output == nil {
		if j.Status == StatusFailed {
			return "", ErrArtifactUnavailable
		}
		return "", ErrNotReady
	}

	out := j.Output
	switch f {
	case FeatureVideo:
		if out.VideoURL != "" {
			return out.VideoURL, nil
		}
	case FeatureAudioSummary:
		if out.SummaryText != "" {
			return out.SummaryText, nil
		}
		if out.AudioURL != "" {
			return out.AudioURL, nil
		}
	case FeatureMindMap:
		if len(out.MindMap) > 0 && string(out.MindMap) != "null" {
			return string(out.MindMap), nil
		}
	case FeatureFlashcards:
		if len(out.Flashcards) > 0 {
			raw, err := json.Marshal(out.Flashcards)
			if err != nil {
				return "", err
			}
			return string(raw), nil
		}
	}
	return "", ErrArtifactUnavailable
}
