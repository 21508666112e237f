// Package ingest enumerates the source audio files queued for one run.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/audio-localizer/internal/core"
	"github.com/book-expert/logger"
)

// Static ingestion errors.
var (
	// ErrEmptyFile indicates a candidate file with no content.
	ErrEmptyFile = errors.New("file is empty")
	// ErrWrongExtension indicates a file that does not carry the configured
	// audio extension.
	ErrWrongExtension = errors.New("not an audio file for this run")
)

// Skipped records one candidate file that was excluded from the run, with
// the reason. Skips are reported, never fatal.
type Skipped struct {
	Name string
	Err  error
}

// DirectoryIngestor lists audio files from a fixed directory. It is
// read-only: ingestion never modifies the input location.
type DirectoryIngestor struct {
	dir       string
	extension string
	language  string
	log       *logger.Logger
}

// New creates a DirectoryIngestor for the given directory. Only files whose
// extension matches (case-insensitive) are ingested; language is the spoken
// language attached to every SourceAudio.
func New(dir, extension, language string, log *logger.Logger) *DirectoryIngestor {
	return &DirectoryIngestor{
		dir:       dir,
		extension: extension,
		language:  language,
		log:       log,
	}
}

// List returns the ordered set of audio files to process, plus the files
// that were skipped and why. Directory order is the sorted order of
// os.ReadDir, so repeated runs see the same sequence.
func (d *DirectoryIngestor) List() ([]core.SourceAudio, []Skipped, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read input directory '%s': %w", d.dir, err)
	}

	var (
		files   []core.SourceAudio
		skipped []Skipped
	)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		audio, readErr := d.readOne(name)
		if readErr != nil {
			if errors.Is(readErr, ErrWrongExtension) {
				d.log.Info("Ignoring non-audio file: %s", name)

				continue
			}

			d.log.Warn("Skipping file '%s': %v", name, readErr)
			skipped = append(skipped, Skipped{Name: name, Err: readErr})

			continue
		}

		files = append(files, audio)
	}

	return files, skipped, nil
}

func (d *DirectoryIngestor) readOne(name string) (core.SourceAudio, error) {
	var audio core.SourceAudio

	ext := filepath.Ext(name)
	if !strings.EqualFold(ext, d.extension) {
		return audio, ErrWrongExtension
	}

	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		return audio, fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return audio, ErrEmptyFile
	}

	audio = core.SourceAudio{
		Name:     name,
		Base:     strings.TrimSuffix(name, ext),
		Data:     data,
		Language: d.language,
	}

	return audio, nil
}
