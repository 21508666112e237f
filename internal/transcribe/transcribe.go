// Package transcribe provides the speech-to-text adapter backed by Amazon
// Transcribe.
//
// Transcribe runs asynchronously: the adapter uploads the source audio,
// starts a job, polls the job to a terminal state, and reads the job's JSON
// output back from the bucket. No partial transcripts are ever returned.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awstranscribe "github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/audio-localizer/internal/core"
	"github.com/book-expert/audio-localizer/internal/publish"
)

const jobIDLength = 10

// Static transcription errors.
var (
	// ErrJobFailed indicates the remote job reached the FAILED state.
	ErrJobFailed = errors.New("transcription job failed")
	// ErrJobTimeout indicates the job did not reach a terminal state in time.
	ErrJobTimeout = errors.New("transcription job timed out")
	// ErrNoTranscripts indicates the job output carried no transcript entries.
	ErrNoTranscripts = errors.New("no transcripts in job output")
	// ErrEmptyTranscript indicates the job produced only blank text.
	ErrEmptyTranscript = errors.New("transcript text is empty")
)

// API is the subset of the Amazon Transcribe client used by the service.
type API interface {
	StartTranscriptionJob(
		ctx context.Context,
		params *awstranscribe.StartTranscriptionJobInput,
		optFns ...func(*awstranscribe.Options),
	) (*awstranscribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(
		ctx context.Context,
		params *awstranscribe.GetTranscriptionJobInput,
		optFns ...func(*awstranscribe.Options),
	) (*awstranscribe.GetTranscriptionJobOutput, error)
}

// Service implements core.Transcriber.
type Service struct {
	client       API
	store        core.ObjectStore
	bucket       string
	environment  string
	pollInterval time.Duration
	timeout      time.Duration
	log          *logger.Logger
}

// New creates a transcription Service. The store must be backed by the same
// bucket that is passed in, since the job media URI references it directly.
func New(
	client API,
	store core.ObjectStore,
	bucket string,
	environment string,
	pollInterval time.Duration,
	timeout time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		client:       client,
		store:        store,
		bucket:       bucket,
		environment:  environment,
		pollInterval: pollInterval,
		timeout:      timeout,
		log:          log,
	}
}

// jobOutput mirrors the fragment of the Transcribe output JSON the pipeline
// needs: the full transcript lives at results.transcripts[0].transcript.
type jobOutput struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

// Transcribe uploads the audio, runs a transcription job to a terminal
// state, and returns the extracted transcript.
func (s *Service) Transcribe(ctx context.Context, audio core.SourceAudio) (core.Transcript, error) {
	var transcript core.Transcript

	inputKey := publish.Key(s.environment, publish.CategoryAudioInputs, audio.Name)

	err := s.store.Upload(ctx, inputKey, audio.Data, publish.ContentTypeMP3)
	if err != nil {
		return transcript, fmt.Errorf("failed to upload source audio: %w", err)
	}

	jobName := s.jobName(audio.Base)
	outputKey := publish.Key(s.environment, publish.CategoryTranscribeJobs, jobName+".json")

	err = s.startJob(ctx, jobName, inputKey, outputKey, audio.Language)
	if err != nil {
		return transcript, err
	}

	s.log.Info("Started transcription job %s for %s", jobName, audio.Name)

	err = s.waitForJob(ctx, jobName)
	if err != nil {
		return transcript, err
	}

	text, err := s.fetchTranscriptText(ctx, outputKey)
	if err != nil {
		return transcript, err
	}

	transcript = core.Transcript{
		Base:     audio.Base,
		Text:     text,
		Language: audio.Language,
	}

	return transcript, nil
}

// jobName builds a unique job name like "prod-lesson1-1a2b3c4d5e". Job names
// must be unique per region, so a fresh id fragment is appended each run.
func (s *Service) jobName(base string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:jobIDLength]

	return fmt.Sprintf("%s-%s-%s", s.environment, base, id)
}

func (s *Service) startJob(ctx context.Context, jobName, inputKey, outputKey, language string) error {
	mediaURI := fmt.Sprintf("s3://%s/%s", s.bucket, inputKey)

	_, err := s.client.StartTranscriptionJob(ctx, &awstranscribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		LanguageCode:         types.LanguageCode(language),
		Media: &types.Media{
			MediaFileUri: aws.String(mediaURI),
		},
		OutputBucketName: aws.String(s.bucket),
		OutputKey:        aws.String(outputKey),
	})
	if err != nil {
		return fmt.Errorf("failed to start transcription job '%s': %w", jobName, err)
	}

	return nil
}

// waitForJob polls the job until it reaches COMPLETED or FAILED, bounded by
// the configured timeout. Exceeding the timeout is a remote-service failure
// for this file only.
func (s *Service) waitForJob(ctx context.Context, jobName string) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		output, err := s.client.GetTranscriptionJob(waitCtx, &awstranscribe.GetTranscriptionJobInput{
			TranscriptionJobName: aws.String(jobName),
		})
		if err != nil {
			if waitCtx.Err() != nil {
				return fmt.Errorf("%w after %s: %s", ErrJobTimeout, s.timeout, jobName)
			}

			return fmt.Errorf("failed to get transcription job '%s': %w", jobName, err)
		}

		switch output.TranscriptionJob.TranscriptionJobStatus {
		case types.TranscriptionJobStatusCompleted:
			return nil
		case types.TranscriptionJobStatusFailed:
			reason := aws.ToString(output.TranscriptionJob.FailureReason)

			return fmt.Errorf("%w: %s: %s", ErrJobFailed, jobName, reason)
		case types.TranscriptionJobStatusQueued, types.TranscriptionJobStatusInProgress:
			// Keep polling.
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("%w after %s: %s", ErrJobTimeout, s.timeout, jobName)
		case <-ticker.C:
		}
	}
}

// fetchTranscriptText downloads the job's JSON output and extracts the
// transcript text.
func (s *Service) fetchTranscriptText(ctx context.Context, outputKey string) (string, error) {
	data, err := s.store.Download(ctx, outputKey)
	if err != nil {
		return "", fmt.Errorf("failed to download job output '%s': %w", outputKey, err)
	}

	return ExtractTranscriptText(data)
}

// ExtractTranscriptText parses Transcribe job output JSON and returns the
// trimmed transcript text. Missing or blank transcripts are errors: an empty
// transcript must short-circuit the downstream stages.
func ExtractTranscriptText(data []byte) (string, error) {
	var output jobOutput

	err := json.Unmarshal(data, &output)
	if err != nil {
		return "", fmt.Errorf("failed to parse job output JSON: %w", err)
	}

	if len(output.Results.Transcripts) == 0 {
		return "", ErrNoTranscripts
	}

	text := strings.TrimSpace(output.Results.Transcripts[0].Transcript)
	if text == "" {
		return "", ErrEmptyTranscript
	}

	return text, nil
}
