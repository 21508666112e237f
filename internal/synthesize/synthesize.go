// Package synthesize provides the speech synthesis adapter backed by Amazon
// Polly.
package synthesize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/book-expert/logger"

	"github.com/book-expert/audio-localizer/internal/core"
	"github.com/book-expert/audio-localizer/internal/retryutil"
)

const engineStandard = "standard"

// Static synthesis errors.
var (
	// ErrNoVoiceForLanguage indicates a target language with no mapped voice.
	// The language-to-voice mapping is required configuration; an unmapped
	// language fails before any call to the service.
	ErrNoVoiceForLanguage = errors.New("no voice mapped for language")
	// ErrEmptyAudioStream indicates the service returned no audio data.
	ErrEmptyAudioStream = errors.New("synthesis returned empty audio stream")
)

// API is the subset of the Amazon Polly client used by the service.
type API interface {
	SynthesizeSpeech(
		ctx context.Context,
		params *polly.SynthesizeSpeechInput,
		optFns ...func(*polly.Options),
	) (*polly.SynthesizeSpeechOutput, error)
}

// Service implements core.Synthesizer. The preferred engine is tried first;
// if the voice rejects it the standard engine is used as a fallback, since
// neural voice coverage varies by region.
type Service struct {
	client     API
	voices     map[string]string
	engine     string
	maxRetries uint64
	timeout    time.Duration
	log        *logger.Logger
}

// New creates a synthesis Service with the given language-to-voice mapping
// and preferred engine ("neural" or "standard"); timeout bounds each remote
// call.
func New(
	client API,
	voices map[string]string,
	engine string,
	maxRetries uint64,
	timeout time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		client:     client,
		voices:     voices,
		engine:     engine,
		maxRetries: maxRetries,
		timeout:    timeout,
		log:        log,
	}
}

// Synthesize converts the translation into MP3 speech using the voice mapped
// to the translation's language.
func (s *Service) Synthesize(ctx context.Context, translation core.Translation) (core.SynthesizedAudio, error) {
	var audio core.SynthesizedAudio

	voice, ok := s.voices[translation.Language]
	if !ok {
		return audio, fmt.Errorf("%w: %q", ErrNoVoiceForLanguage, translation.Language)
	}

	data, err := s.synthesizeWithFallback(ctx, translation.Text, voice)
	if err != nil {
		return audio, fmt.Errorf(
			"failed to synthesize '%s' in %s with voice %s: %w",
			translation.Base, translation.Language, voice, err,
		)
	}

	s.log.Info("Synthesized %s_%s with voice %s (%d bytes)",
		translation.Base, translation.Language, voice, len(data))

	audio = core.SynthesizedAudio{
		Base:     translation.Base,
		Language: translation.Language,
		Data:     data,
	}

	return audio, nil
}

// synthesizeWithFallback tries the preferred engine, then the standard
// engine when the preferred one is rejected for this voice.
func (s *Service) synthesizeWithFallback(ctx context.Context, text, voice string) ([]byte, error) {
	engines := []string{s.engine}
	if s.engine != engineStandard {
		engines = append(engines, engineStandard)
	}

	var lastErr error

	for _, engine := range engines {
		data, err := s.synthesizeOnce(ctx, text, voice, engine)
		if err == nil {
			return data, nil
		}

		s.log.Warn("Synthesis with engine %s failed for voice %s: %v", engine, voice, err)
		lastErr = err
	}

	return nil, lastErr
}

func (s *Service) synthesizeOnce(ctx context.Context, text, voice, engine string) ([]byte, error) {
	var data []byte

	err := retryutil.Do(ctx, s.maxRetries, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		output, callErr := s.client.SynthesizeSpeech(callCtx, &polly.SynthesizeSpeechInput{
			Text:         aws.String(text),
			VoiceId:      types.VoiceId(voice),
			OutputFormat: types.OutputFormatMp3,
			Engine:       types.Engine(engine),
		})
		if callErr != nil {
			return fmt.Errorf("synthesize call failed: %w", callErr)
		}

		audioData, readErr := io.ReadAll(output.AudioStream)

		closeErr := output.AudioStream.Close()
		if closeErr != nil {
			s.log.Warn("Failed to close audio stream: %v", closeErr)
		}

		if readErr != nil {
			return fmt.Errorf("failed to read audio stream: %w", readErr)
		}

		if len(audioData) == 0 {
			return retryutil.Permanent(ErrEmptyAudioStream)
		}

		data = audioData

		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}
