// Package core defines the transient pipeline entities and the capability
// interfaces for the audio localization pipeline.
package core

import "context"

// SourceAudio is one ingested audio file queued for processing. Entities are
// per-run values; nothing persists past the process except uploaded artifacts.
type SourceAudio struct {
	// Name is the file name including extension, e.g. "lesson1.mp3".
	Name string

	// Base is the file name without extension, e.g. "lesson1". All storage
	// keys for downstream artifacts derive from it.
	Base string

	// Data is the raw audio content.
	Data []byte

	// Language is the spoken language of the recording, e.g. "en-US".
	Language string
}

// Transcript is the plain-text result of speech-to-text for one source file.
type Transcript struct {
	Base     string
	Text     string
	Language string
}

// Translation is the transcript rendered into one target language.
type Translation struct {
	Base     string
	Language string
	Text     string
}

// SynthesizedAudio is the speech rendering of one translation.
type SynthesizedAudio struct {
	Base     string
	Language string
	Data     []byte
}

// Transcriber converts source audio to a transcript. Implementations must
// drive any asynchronous remote job to a terminal state before returning;
// partial transcripts are never returned.
type Transcriber interface {
	Transcribe(ctx context.Context, audio SourceAudio) (Transcript, error)
}

// Translator renders a transcript into one target language.
type Translator interface {
	Translate(ctx context.Context, transcript Transcript, targetLanguage string) (Translation, error)
}

// Synthesizer converts a translation back into speech, selecting the voice
// that matches the translation's language.
type Synthesizer interface {
	Synthesize(ctx context.Context, translation Translation) (SynthesizedAudio, error)
}

// Publisher writes artifacts to environment-scoped storage and returns the
// key each artifact was stored under. Re-publishing the same artifact
// overwrites the previous object; last write wins.
type Publisher interface {
	PublishTranscript(ctx context.Context, transcript Transcript) (string, error)
	PublishTranslation(ctx context.Context, translation Translation) (string, error)
	PublishAudio(ctx context.Context, audio SynthesizedAudio) (string, error)
}

// ObjectStore is the interface for a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}
