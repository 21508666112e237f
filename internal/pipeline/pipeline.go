// Package pipeline orchestrates the per-file stage chain and collects the
// run summary.
//
// Files are processed concurrently under a bounded worker pool; within one
// file the stages transcribe -> translate -> synthesize -> publish are a
// strict sequence. Failures are isolated: a file failing never stops other
// files, and a language branch failing never stops other languages for the
// same file. Every failure is collected and surfaced at the end of the run.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/book-expert/logger"

	"github.com/book-expert/audio-localizer/internal/core"
)

// Stage names used in failure reports.
const (
	StageIngest     = "ingest"
	StageTranscribe = "transcribe"
	StageTranslate  = "translate"
	StageSynthesize = "synthesize"
	StagePublish    = "publish"
)

// Failure records one error against a file, and a language when the failure
// is scoped to a single language branch.
type Failure struct {
	File     string
	Language string
	Stage    string
	Err      error
}

// String renders the failure for the run summary.
func (f Failure) String() string {
	if f.Language == "" {
		return fmt.Sprintf("%s [%s]: %v", f.File, f.Stage, f.Err)
	}

	return fmt.Sprintf("%s/%s [%s]: %v", f.File, f.Language, f.Stage, f.Err)
}

// Summary is the outcome of one run. The run as a whole fails if any
// failure was collected, even though all successful artifacts were still
// published.
type Summary struct {
	Processed int
	Published int
	Failures  []Failure
}

// Failed reports whether the run collected any failure.
func (s *Summary) Failed() bool {
	return len(s.Failures) > 0
}

// Report renders the failure list, one line per failure.
func (s *Summary) Report() string {
	lines := make([]string, 0, len(s.Failures))
	for _, failure := range s.Failures {
		lines = append(lines, failure.String())
	}

	return strings.Join(lines, "\n")
}

// Pipeline wires the capability adapters together. All fields are set at
// construction and never mutated; per-file state lives on the stack of each
// worker.
type Pipeline struct {
	transcriber core.Transcriber
	translator  core.Translator
	synthesizer core.Synthesizer
	publisher   core.Publisher
	languages   []string
	workers     int
	log         *logger.Logger
}

// New creates a Pipeline over the given adapters, target language set, and
// worker bound.
func New(
	transcriber core.Transcriber,
	translator core.Translator,
	synthesizer core.Synthesizer,
	publisher core.Publisher,
	languages []string,
	workers int,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		transcriber: transcriber,
		translator:  translator,
		synthesizer: synthesizer,
		publisher:   publisher,
		languages:   languages,
		workers:     workers,
		log:         log,
	}
}

// Run processes every file and returns the collected summary. Files share no
// mutable state, so they run concurrently under the worker bound; the
// summary is the only shared value and is guarded by a mutex.
func (p *Pipeline) Run(ctx context.Context, files []core.SourceAudio) *Summary {
	summary := &Summary{
		Processed: len(files),
		Published: 0,
		Failures:  nil,
	}

	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
	)

	workerPool := make(chan struct{}, p.workers)

	for _, file := range files {
		waitGroup.Add(1)

		go func(audio core.SourceAudio) {
			defer waitGroup.Done()

			workerPool <- struct{}{}

			defer func() { <-workerPool }()

			published, failures := p.processFile(ctx, audio)

			mutex.Lock()

			summary.Published += published
			summary.Failures = append(summary.Failures, failures...)

			mutex.Unlock()
		}(file)
	}

	waitGroup.Wait()
	close(workerPool)

	return summary
}

// processFile runs the full stage chain for one file. The transcription
// stage gates everything: on its failure no translation or synthesis call is
// made for this file. Later stages only abort their own branch.
func (p *Pipeline) processFile(ctx context.Context, audio core.SourceAudio) (int, []Failure) {
	var (
		published int
		failures  []Failure
	)

	transcript, err := p.transcriber.Transcribe(ctx, audio)
	if err != nil {
		p.log.Error("Transcription failed for %s: %v", audio.Name, err)

		return 0, []Failure{{File: audio.Base, Language: "", Stage: StageTranscribe, Err: err}}
	}

	_, err = p.publisher.PublishTranscript(ctx, transcript)
	if err != nil {
		// Publishing is per artifact: the in-memory transcript still feeds
		// the translation stages.
		p.log.Error("Failed to publish transcript for %s: %v", audio.Base, err)
		failures = append(failures, Failure{
			File: audio.Base, Language: "", Stage: StagePublish, Err: err,
		})
	} else {
		published++
	}

	for _, language := range p.languages {
		branchPublished, branchFailures := p.processLanguage(ctx, transcript, language)
		published += branchPublished
		failures = append(failures, branchFailures...)
	}

	return published, failures
}

// processLanguage runs translate -> publish -> synthesize -> publish for one
// (file, language) branch.
func (p *Pipeline) processLanguage(
	ctx context.Context,
	transcript core.Transcript,
	language string,
) (int, []Failure) {
	var (
		published int
		failures  []Failure
	)

	translation, err := p.translator.Translate(ctx, transcript, language)
	if err != nil {
		p.log.Error("Translation to %s failed for %s: %v", language, transcript.Base, err)

		return 0, []Failure{{
			File: transcript.Base, Language: language, Stage: StageTranslate, Err: err,
		}}
	}

	_, err = p.publisher.PublishTranslation(ctx, translation)
	if err != nil {
		p.log.Error("Failed to publish %s translation for %s: %v", language, transcript.Base, err)
		failures = append(failures, Failure{
			File: transcript.Base, Language: language, Stage: StagePublish, Err: err,
		})
	} else {
		published++
	}

	audio, err := p.synthesizer.Synthesize(ctx, translation)
	if err != nil {
		p.log.Error("Synthesis in %s failed for %s: %v", language, transcript.Base, err)
		failures = append(failures, Failure{
			File: transcript.Base, Language: language, Stage: StageSynthesize, Err: err,
		})

		return published, failures
	}

	_, err = p.publisher.PublishAudio(ctx, audio)
	if err != nil {
		p.log.Error("Failed to publish %s audio for %s: %v", language, transcript.Base, err)
		failures = append(failures, Failure{
			File: transcript.Base, Language: language, Stage: StagePublish, Err: err,
		})

		return published, failures
	}

	published++

	return published, failures
}
