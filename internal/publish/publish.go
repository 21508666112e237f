// Package publish writes pipeline artifacts to environment-scoped storage
// keys.
//
// Keys are a pure function of (environment, category, file name): they never
// depend on file content or run timing, so repeated runs on the same inputs
// overwrite their previous outputs instead of accumulating duplicates.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/audio-localizer/internal/core"
	"github.com/book-expert/audio-localizer/internal/retryutil"
	"github.com/book-expert/logger"
)

// Artifact categories, the middle segment of every storage key.
const (
	CategoryAudioInputs    = "audio_inputs"
	CategoryTranscribeJobs = "transcribe_jobs"
	CategoryTranscripts    = "transcripts"
	CategoryTranslations   = "translations"
	CategoryAudioOutputs   = "audio_outputs"
)

// Content types for uploaded artifacts.
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeMP3  = "audio/mpeg"
)

// Key builds a storage key like "beta/transcripts/lesson1.txt".
func Key(environment, category, filename string) string {
	return environment + "/" + category + "/" + filename
}

// Publisher writes transcript, translation, and synthesized-audio artifacts
// through an object store under one environment prefix. A failed publish is
// reported to the caller and never rolls back sibling artifacts.
type Publisher struct {
	store       core.ObjectStore
	environment string
	maxRetries  uint64
	timeout     time.Duration
	log         *logger.Logger
}

// New creates a Publisher for the given environment tag. Transient upload
// failures are retried up to maxRetries times before being reported.
func New(
	store core.ObjectStore,
	environment string,
	maxRetries uint64,
	timeout time.Duration,
	log *logger.Logger,
) *Publisher {
	return &Publisher{
		store:       store,
		environment: environment,
		maxRetries:  maxRetries,
		timeout:     timeout,
		log:         log,
	}
}

// upload writes one artifact with bounded retries.
func (p *Publisher) upload(ctx context.Context, key string, data []byte, contentType string) error {
	return retryutil.Do(ctx, p.maxRetries, func() error {
		uploadCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		return p.store.Upload(uploadCtx, key, data, contentType)
	})
}

// PublishTranscript uploads the transcript as
// <environment>/transcripts/<base>.txt.
func (p *Publisher) PublishTranscript(ctx context.Context, transcript core.Transcript) (string, error) {
	key := Key(p.environment, CategoryTranscripts, transcript.Base+".txt")

	err := p.upload(ctx, key, []byte(transcript.Text), ContentTypeText)
	if err != nil {
		return "", fmt.Errorf("failed to publish transcript '%s': %w", key, err)
	}

	p.log.Info("Published transcript: %s", key)

	return key, nil
}

// PublishTranslation uploads the translation as
// <environment>/translations/<base>_<lang>.txt.
func (p *Publisher) PublishTranslation(ctx context.Context, translation core.Translation) (string, error) {
	filename := fmt.Sprintf("%s_%s.txt", translation.Base, translation.Language)
	key := Key(p.environment, CategoryTranslations, filename)

	err := p.upload(ctx, key, []byte(translation.Text), ContentTypeText)
	if err != nil {
		return "", fmt.Errorf("failed to publish translation '%s': %w", key, err)
	}

	p.log.Info("Published translation: %s", key)

	return key, nil
}

// PublishAudio uploads the synthesized audio as
// <environment>/audio_outputs/<base>_<lang>.mp3.
func (p *Publisher) PublishAudio(ctx context.Context, audio core.SynthesizedAudio) (string, error) {
	filename := fmt.Sprintf("%s_%s.mp3", audio.Base, audio.Language)
	key := Key(p.environment, CategoryAudioOutputs, filename)

	err := p.upload(ctx, key, audio.Data, ContentTypeMP3)
	if err != nil {
		return "", fmt.Errorf("failed to publish audio '%s': %w", key, err)
	}

	p.log.Info("Published audio: %s (%d bytes)", key, len(audio.Data))

	return key, nil
}
