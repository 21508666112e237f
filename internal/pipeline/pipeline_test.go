// Package pipeline_test tests per-file orchestration and failure isolation.
package pipeline_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/audio-localizer/internal/core"
	"github.com/book-expert/audio-localizer/internal/pipeline"
)

var (
	errMockTranscribe = errors.New("mock transcription error")
	errMockTranslate  = errors.New("mock translation error")
	errMockSynthesize = errors.New("mock synthesis error")
	errMockPublish    = errors.New("mock publish error")
)

// fakeTranscriber fails for file bases listed in failFor.
type fakeTranscriber struct {
	mutex   sync.Mutex
	failFor map[string]bool
	calls   []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio core.SourceAudio) (core.Transcript, error) {
	f.mutex.Lock()
	f.calls = append(f.calls, audio.Base)
	f.mutex.Unlock()

	if f.failFor[audio.Base] {
		return core.Transcript{}, errMockTranscribe
	}

	return core.Transcript{
		Base:     audio.Base,
		Text:     "transcript of " + audio.Base,
		Language: audio.Language,
	}, nil
}

// fakeTranslator fails for (base, language) pairs listed in failFor.
type fakeTranslator struct {
	mutex   sync.Mutex
	failFor map[string]bool
	calls   []string
}

func (f *fakeTranslator) Translate(
	_ context.Context,
	transcript core.Transcript,
	targetLanguage string,
) (core.Translation, error) {
	branch := transcript.Base + "/" + targetLanguage

	f.mutex.Lock()
	f.calls = append(f.calls, branch)
	f.mutex.Unlock()

	if f.failFor[branch] {
		return core.Translation{}, errMockTranslate
	}

	return core.Translation{
		Base:     transcript.Base,
		Language: targetLanguage,
		Text:     "translated " + branch,
	}, nil
}

type fakeSynthesizer struct {
	mutex   sync.Mutex
	failFor map[string]bool
	calls   []string
}

func (f *fakeSynthesizer) Synthesize(
	_ context.Context,
	translation core.Translation,
) (core.SynthesizedAudio, error) {
	branch := translation.Base + "/" + translation.Language

	f.mutex.Lock()
	f.calls = append(f.calls, branch)
	f.mutex.Unlock()

	if f.failFor[branch] {
		return core.SynthesizedAudio{}, errMockSynthesize
	}

	return core.SynthesizedAudio{
		Base:     translation.Base,
		Language: translation.Language,
		Data:     []byte("audio " + branch),
	}, nil
}

// fakePublisher records the keys it was asked to publish.
type fakePublisher struct {
	mutex          sync.Mutex
	failTranscript bool
	keys           []string
}

func (f *fakePublisher) record(key string) {
	f.mutex.Lock()
	f.keys = append(f.keys, key)
	f.mutex.Unlock()
}

func (f *fakePublisher) PublishTranscript(_ context.Context, transcript core.Transcript) (string, error) {
	if f.failTranscript {
		return "", errMockPublish
	}

	key := "prod/transcripts/" + transcript.Base + ".txt"
	f.record(key)

	return key, nil
}

func (f *fakePublisher) PublishTranslation(_ context.Context, translation core.Translation) (string, error) {
	key := "prod/translations/" + translation.Base + "_" + translation.Language + ".txt"
	f.record(key)

	return key, nil
}

func (f *fakePublisher) PublishAudio(_ context.Context, audio core.SynthesizedAudio) (string, error) {
	key := "prod/audio_outputs/" + audio.Base + "_" + audio.Language + ".mp3"
	f.record(key)

	return key, nil
}

func (f *fakePublisher) sortedKeys() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	keys := make([]string, len(f.keys))
	copy(keys, f.keys)
	sort.Strings(keys)

	return keys
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	return log
}

type fixtures struct {
	transcriber *fakeTranscriber
	translator  *fakeTranslator
	synthesizer *fakeSynthesizer
	publisher   *fakePublisher
	pipeline    *pipeline.Pipeline
}

func newFixtures(t *testing.T, languages []string) *fixtures {
	t.Helper()

	fix := &fixtures{
		transcriber: &fakeTranscriber{mutex: sync.Mutex{}, failFor: map[string]bool{}, calls: nil},
		translator:  &fakeTranslator{mutex: sync.Mutex{}, failFor: map[string]bool{}, calls: nil},
		synthesizer: &fakeSynthesizer{mutex: sync.Mutex{}, failFor: map[string]bool{}, calls: nil},
		publisher:   &fakePublisher{mutex: sync.Mutex{}, failTranscript: false, keys: nil},
		pipeline:    nil,
	}

	fix.pipeline = pipeline.New(
		fix.transcriber,
		fix.translator,
		fix.synthesizer,
		fix.publisher,
		languages,
		2,
		newTestLogger(t),
	)

	return fix
}

func sourceFile(base string) core.SourceAudio {
	return core.SourceAudio{
		Name:     base + ".mp3",
		Base:     base,
		Data:     []byte("audio"),
		Language: "en-US",
	}
}

func TestRunPublishesAllArtifacts(t *testing.T) {
	t.Parallel()

	fix := newFixtures(t, []string{"es", "fr"})

	summary := fix.pipeline.Run(context.Background(), []core.SourceAudio{sourceFile("lesson1")})

	assert.False(t, summary.Failed())
	assert.Equal(t, 1, summary.Processed)
	// One transcript plus one translation and one audio output per language.
	assert.Equal(t, 5, summary.Published)

	expected := []string{
		"prod/audio_outputs/lesson1_es.mp3",
		"prod/audio_outputs/lesson1_fr.mp3",
		"prod/translations/lesson1_es.txt",
		"prod/translations/lesson1_fr.txt",
		"prod/transcripts/lesson1.txt",
	}
	sort.Strings(expected)
	assert.Equal(t, expected, fix.publisher.sortedKeys())
}

func TestTranscriptionFailureAbortsOnlyThatFile(t *testing.T) {
	t.Parallel()

	fix := newFixtures(t, []string{"es", "fr"})
	fix.transcriber.failFor["lesson2"] = true

	files := []core.SourceAudio{sourceFile("lesson1"), sourceFile("lesson2")}

	summary := fix.pipeline.Run(context.Background(), files)

	require.True(t, summary.Failed())
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "lesson2", summary.Failures[0].File)
	assert.Equal(t, pipeline.StageTranscribe, summary.Failures[0].Stage)
	require.ErrorIs(t, summary.Failures[0].Err, errMockTranscribe)

	// No downstream calls made for the failed file.
	for _, call := range fix.translator.calls {
		assert.False(t, strings.HasPrefix(call, "lesson2/"))
	}

	for _, call := range fix.synthesizer.calls {
		assert.False(t, strings.HasPrefix(call, "lesson2/"))
	}

	// The healthy file still published its full artifact set.
	assert.Equal(t, 5, summary.Published)
}

func TestTranslationFailureIsPerLanguage(t *testing.T) {
	t.Parallel()

	fix := newFixtures(t, []string{"es", "fr"})
	fix.translator.failFor["lesson1/fr"] = true

	summary := fix.pipeline.Run(context.Background(), []core.SourceAudio{sourceFile("lesson1")})

	require.True(t, summary.Failed())
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "fr", summary.Failures[0].Language)
	assert.Equal(t, pipeline.StageTranslate, summary.Failures[0].Stage)

	// The es branch and the transcript were unaffected.
	keys := fix.publisher.sortedKeys()
	assert.Contains(t, keys, "prod/translations/lesson1_es.txt")
	assert.Contains(t, keys, "prod/audio_outputs/lesson1_es.mp3")
	assert.Contains(t, keys, "prod/transcripts/lesson1.txt")
	assert.NotContains(t, keys, "prod/translations/lesson1_fr.txt")

	// Synthesis never ran for the failed branch.
	assert.NotContains(t, fix.synthesizer.calls, "lesson1/fr")
}

func TestSynthesisFailureKeepsTranslationPublished(t *testing.T) {
	t.Parallel()

	fix := newFixtures(t, []string{"es"})
	fix.synthesizer.failFor["lesson1/es"] = true

	summary := fix.pipeline.Run(context.Background(), []core.SourceAudio{sourceFile("lesson1")})

	require.True(t, summary.Failed())
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, pipeline.StageSynthesize, summary.Failures[0].Stage)

	keys := fix.publisher.sortedKeys()
	assert.Contains(t, keys, "prod/translations/lesson1_es.txt")
	assert.NotContains(t, keys, "prod/audio_outputs/lesson1_es.mp3")
}

func TestTranscriptPublishFailureStillTranslates(t *testing.T) {
	t.Parallel()

	fix := newFixtures(t, []string{"es"})
	fix.publisher.failTranscript = true

	summary := fix.pipeline.Run(context.Background(), []core.SourceAudio{sourceFile("lesson1")})

	require.True(t, summary.Failed())
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, pipeline.StagePublish, summary.Failures[0].Stage)
	require.ErrorIs(t, summary.Failures[0].Err, errMockPublish)

	// Translation and synthesis proceed from the in-memory transcript.
	keys := fix.publisher.sortedKeys()
	assert.Contains(t, keys, "prod/translations/lesson1_es.txt")
	assert.Contains(t, keys, "prod/audio_outputs/lesson1_es.mp3")
	assert.Equal(t, 2, summary.Published)
}

func TestSummaryReport(t *testing.T) {
	t.Parallel()

	fix := newFixtures(t, []string{"es", "fr"})
	fix.transcriber.failFor["lesson2"] = true
	fix.translator.failFor["lesson1/fr"] = true

	files := []core.SourceAudio{sourceFile("lesson1"), sourceFile("lesson2")}

	summary := fix.pipeline.Run(context.Background(), files)

	require.True(t, summary.Failed())
	report := summary.Report()
	assert.Contains(t, report, "lesson2 [transcribe]")
	assert.Contains(t, report, "lesson1/fr [translate]")
}

func TestManyFilesUnderWorkerBound(t *testing.T) {
	t.Parallel()

	fix := newFixtures(t, []string{"es"})

	files := make([]core.SourceAudio, 0, 8)
	for _, base := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		files = append(files, sourceFile(base))
	}

	summary := fix.pipeline.Run(context.Background(), files)

	assert.False(t, summary.Failed())
	assert.Equal(t, 8, summary.Processed)
	// Per file: transcript, es translation, es audio.
	assert.Equal(t, 24, summary.Published)
	assert.Len(t, fix.transcriber.calls, 8)
}
