// Package translate provides the text translation adapter backed by Amazon
// Translate.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awstranslate "github.com/aws/aws-sdk-go-v2/service/translate"
	"github.com/book-expert/logger"

	"github.com/book-expert/audio-localizer/internal/core"
	"github.com/book-expert/audio-localizer/internal/retryutil"
)

// ErrBlankTranscript indicates a transcript with no translatable text. Blank
// transcripts short-circuit: no remote call is made.
var ErrBlankTranscript = errors.New("transcript is blank, nothing to translate")

// API is the subset of the Amazon Translate client used by the service.
type API interface {
	TranslateText(
		ctx context.Context,
		params *awstranslate.TranslateTextInput,
		optFns ...func(*awstranslate.Options),
	) (*awstranslate.TranslateTextOutput, error)
}

// Service implements core.Translator.
type Service struct {
	client         API
	sourceLanguage string
	maxRetries     uint64
	timeout        time.Duration
	log            *logger.Logger
}

// New creates a translation Service. sourceLanguage is the two-letter code
// of the transcript language, e.g. "en"; timeout bounds each remote call.
func New(
	client API,
	sourceLanguage string,
	maxRetries uint64,
	timeout time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		client:         client,
		sourceLanguage: sourceLanguage,
		maxRetries:     maxRetries,
		timeout:        timeout,
		log:            log,
	}
}

// Translate renders the transcript into targetLanguage. Transient remote
// failures are retried with bounded backoff before being reported.
func (s *Service) Translate(
	ctx context.Context,
	transcript core.Transcript,
	targetLanguage string,
) (core.Translation, error) {
	var translation core.Translation

	if strings.TrimSpace(transcript.Text) == "" {
		return translation, ErrBlankTranscript
	}

	var translated string

	err := retryutil.Do(ctx, s.maxRetries, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		output, callErr := s.client.TranslateText(callCtx, &awstranslate.TranslateTextInput{
			Text:               aws.String(transcript.Text),
			SourceLanguageCode: aws.String(s.sourceLanguage),
			TargetLanguageCode: aws.String(targetLanguage),
		})
		if callErr != nil {
			return fmt.Errorf("translate call failed: %w", callErr)
		}

		translated = aws.ToString(output.TranslatedText)

		return nil
	})
	if err != nil {
		return translation, fmt.Errorf(
			"failed to translate '%s' to %s: %w", transcript.Base, targetLanguage, err,
		)
	}

	s.log.Info("Translated %s to %s (%d chars)", transcript.Base, targetLanguage, len(translated))

	translation = core.Translation{
		Base:     transcript.Base,
		Language: targetLanguage,
		Text:     translated,
	}

	return translation, nil
}
