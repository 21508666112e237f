// Package config provides the configuration structure for the audio-localizer.
//
// Configuration is read once at process start from the CI environment
// (secrets and variables) plus an optional TOML voice-map file, and is
// immutable afterwards. Every validation failure here is fatal: the run
// aborts before any remote call is made.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Environment tags selecting the storage prefix.
const (
	EnvironmentBeta = "beta"
	EnvironmentProd = "prod"
)

// Environment variable names.
const (
	envAWSRegion          = "AWS_REGION"
	envBucket             = "S3_BUCKET"
	envEnvPrefix          = "ENV_PREFIX"
	envGithubEventName    = "GITHUB_EVENT_NAME"
	envInputDir           = "INPUT_DIR"
	envTargetLanguages    = "TARGET_LANGUAGES"
	envTranscribeLanguage = "TRANSCRIBE_LANGUAGE"
	envPollyEngine        = "POLLY_ENGINE"
	envAudioExtension     = "AUDIO_EXTENSION"
	envWorkers            = "WORKERS"
	envMaxRetries         = "MAX_RETRIES"
	envTranscribeTimeout  = "TRANSCRIBE_TIMEOUT_SECONDS"
	envRequestTimeout     = "REQUEST_TIMEOUT_SECONDS"
	envPollInterval       = "POLL_INTERVAL_SECONDS"
	envLogDir             = "LOG_DIR"
	envVoicesFile         = "VOICES_FILE"
)

// CI trigger event names recognized for environment resolution.
const (
	eventPullRequest = "pull_request"
	eventPush        = "push"
)

// Defaults.
const (
	defaultInputDir           = "audio_inputs"
	defaultTargetLanguages    = "es,fr"
	defaultTranscribeLanguage = "en-US"
	defaultPollyEngine        = "neural"
	defaultAudioExtension     = ".mp3"
	defaultWorkers            = 4
	defaultMaxRetries         = 3
	defaultTranscribeTimeout  = 900
	defaultRequestTimeout     = 60
	defaultPollInterval       = 5
)

// Static configuration errors. All of them abort the run before work begins.
var (
	// ErrMissingRegion indicates AWS_REGION is not set.
	ErrMissingRegion = errors.New("AWS_REGION is required")
	// ErrMissingBucket indicates S3_BUCKET is not set.
	ErrMissingBucket = errors.New("S3_BUCKET is required")
	// ErrUnknownEnvironment indicates the environment tag is neither beta nor prod.
	ErrUnknownEnvironment = errors.New("environment must be beta or prod")
	// ErrUnknownTrigger indicates the CI trigger does not map to an environment.
	ErrUnknownTrigger = errors.New("unrecognized CI trigger event")
	// ErrNoTargetLanguages indicates the target language set is empty.
	ErrNoTargetLanguages = errors.New("target language set cannot be empty")
	// ErrUnmappedLanguage indicates a target language has no configured voice.
	ErrUnmappedLanguage = errors.New("no voice mapped for target language")
	// ErrNonPositive indicates a numeric setting that must be positive is not.
	ErrNonPositive = errors.New("value must be positive")
)

// Config is the root configuration, constructed once and passed to every
// component. Credentials themselves stay inside the AWS credential chain and
// are never copied in here.
type Config struct {
	// Region is the AWS region hosting every remote service.
	Region string

	// Bucket is the destination S3 bucket for all artifacts.
	Bucket string

	// Environment is the storage prefix tag: beta for pull-request-triggered
	// runs, prod for merge-to-main-triggered runs.
	Environment string

	// InputDir is the repository directory scanned for source audio.
	InputDir string

	// AudioExtension is the file extension that marks a file for ingestion.
	AudioExtension string

	// TranscribeLanguage is the spoken language of the source audio, e.g. "en-US".
	TranscribeLanguage string

	// TranslateSourceLanguage is the two-letter form passed to translation,
	// derived from TranscribeLanguage ("en-US" -> "en").
	TranslateSourceLanguage string

	// TargetLanguages is the fixed set of translation targets.
	TargetLanguages []string

	// Voices maps each target language code to a synthesis voice.
	Voices map[string]string

	// PollyEngine is the preferred synthesis engine, e.g. "neural".
	PollyEngine string

	// Workers bounds how many files are processed concurrently.
	Workers int

	// MaxRetries bounds retry attempts for transient remote failures.
	MaxRetries uint64

	// TranscribeTimeout bounds one transcription job from start to terminal state.
	TranscribeTimeout time.Duration

	// RequestTimeout bounds every single-shot remote call.
	RequestTimeout time.Duration

	// PollInterval is the delay between transcription job status checks.
	PollInterval time.Duration

	// LogDir is where the run log is written.
	LogDir string
}

// voicesFile is the TOML shape of an optional voice-map override file.
type voicesFile struct {
	Voices map[string]string `toml:"voices"`
}

// defaultVoices returns the built-in language-to-voice mapping. Languages not
// listed here must be mapped through VOICES_FILE before they can be targeted.
func defaultVoices() map[string]string {
	return map[string]string{
		"es": "Lupe",
		"fr": "Lea",
		"de": "Vicki",
		"it": "Bianca",
		"pt": "Camila",
	}
}

// Load builds and validates the configuration from the process environment.
// A .env file in the working directory is honored when present, for local
// runs outside CI.
func Load(log *logger.Logger) (*Config, error) {
	err := godotenv.Load()
	if err == nil {
		log.Info("Loaded .env file from working directory.")
	}

	environment, err := resolveEnvironment()
	if err != nil {
		return nil, err
	}

	voices, err := loadVoices(getEnv(envVoicesFile, ""))
	if err != nil {
		return nil, err
	}

	numbers, err := loadNumbers()
	if err != nil {
		return nil, err
	}

	transcribeLanguage := getEnv(envTranscribeLanguage, defaultTranscribeLanguage)

	cfg := &Config{
		Region:                  getEnv(envAWSRegion, ""),
		Bucket:                  getEnv(envBucket, ""),
		Environment:             environment,
		InputDir:                getEnv(envInputDir, defaultInputDir),
		AudioExtension:          getEnv(envAudioExtension, defaultAudioExtension),
		TranscribeLanguage:      transcribeLanguage,
		TranslateSourceLanguage: shortLanguage(transcribeLanguage),
		TargetLanguages:         splitLanguages(getEnv(envTargetLanguages, defaultTargetLanguages)),
		Voices:                  voices,
		PollyEngine:             getEnv(envPollyEngine, defaultPollyEngine),
		Workers:                 numbers.workers,
		MaxRetries:              numbers.maxRetries,
		TranscribeTimeout:       time.Duration(numbers.transcribeTimeout) * time.Second,
		RequestTimeout:          time.Duration(numbers.requestTimeout) * time.Second,
		PollInterval:            time.Duration(numbers.pollInterval) * time.Second,
		LogDir:                  getEnv(envLogDir, os.TempDir()),
	}

	validationErr := cfg.validate()
	if validationErr != nil {
		return nil, validationErr
	}

	return cfg, nil
}

// validate enforces the required settings and the voice mapping for every
// configured target language, so an unmapped language fails the run before
// any remote call instead of mid-pipeline.
func (c *Config) validate() error {
	if c.Region == "" {
		return ErrMissingRegion
	}

	if c.Bucket == "" {
		return ErrMissingBucket
	}

	if len(c.TargetLanguages) == 0 {
		return ErrNoTargetLanguages
	}

	for _, lang := range c.TargetLanguages {
		_, ok := c.Voices[lang]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnmappedLanguage, lang)
		}
	}

	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers", ErrNonPositive)
	}

	if c.TranscribeTimeout <= 0 || c.RequestTimeout <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("%w: timeouts", ErrNonPositive)
	}

	return nil
}

// resolveEnvironment maps the CI trigger to a storage environment tag. An
// explicit ENV_PREFIX wins; otherwise the GitHub event name is consulted.
// Only pull_request and push are recognized.
func resolveEnvironment() (string, error) {
	prefix := getEnv(envEnvPrefix, "")
	if prefix != "" {
		if prefix != EnvironmentBeta && prefix != EnvironmentProd {
			return "", fmt.Errorf("%w: got %q", ErrUnknownEnvironment, prefix)
		}

		return prefix, nil
	}

	event := getEnv(envGithubEventName, "")
	switch event {
	case eventPullRequest:
		return EnvironmentBeta, nil
	case eventPush:
		return EnvironmentProd, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrUnknownTrigger, event)
	}
}

// loadVoices returns the built-in voice map, optionally overlaid with the
// entries of a TOML voices file.
func loadVoices(path string) (map[string]string, error) {
	voices := defaultVoices()

	if path == "" {
		return voices, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read voices file %q: %w", path, err)
	}

	var file voicesFile

	err = toml.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse voices file %q: %w", path, err)
	}

	for lang, voice := range file.Voices {
		voices[strings.TrimSpace(lang)] = strings.TrimSpace(voice)
	}

	return voices, nil
}

type numericSettings struct {
	workers           int
	maxRetries        uint64
	transcribeTimeout int
	requestTimeout    int
	pollInterval      int
}

func loadNumbers() (numericSettings, error) {
	settings := numericSettings{
		workers:           0,
		maxRetries:        0,
		transcribeTimeout: 0,
		requestTimeout:    0,
		pollInterval:      0,
	}

	workers, err := getEnvInt(envWorkers, defaultWorkers)
	if err != nil {
		return settings, err
	}

	maxRetries, err := getEnvInt(envMaxRetries, defaultMaxRetries)
	if err != nil {
		return settings, err
	}

	if maxRetries < 0 {
		return settings, fmt.Errorf("%w: %s", ErrNonPositive, envMaxRetries)
	}

	transcribeTimeout, err := getEnvInt(envTranscribeTimeout, defaultTranscribeTimeout)
	if err != nil {
		return settings, err
	}

	requestTimeout, err := getEnvInt(envRequestTimeout, defaultRequestTimeout)
	if err != nil {
		return settings, err
	}

	pollInterval, err := getEnvInt(envPollInterval, defaultPollInterval)
	if err != nil {
		return settings, err
	}

	settings.workers = workers
	settings.maxRetries = uint64(maxRetries)
	settings.transcribeTimeout = transcribeTimeout
	settings.requestTimeout = requestTimeout
	settings.pollInterval = pollInterval

	return settings, nil
}

// splitLanguages splits a comma-separated language list into clean codes.
func splitLanguages(csv string) []string {
	var langs []string

	for _, part := range strings.Split(csv, ",") {
		code := strings.TrimSpace(part)
		if code != "" {
			langs = append(langs, code)
		}
	}

	return langs
}

// shortLanguage reduces a locale code to its language part: "en-US" -> "en".
func shortLanguage(locale string) string {
	lang, _, _ := strings.Cut(locale, "-")

	return lang
}

func getEnv(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}

	return value
}

func getEnvInt(name string, fallback int) (int, error) {
	raw := getEnv(name, "")
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", name, err)
	}

	return value, nil
}
