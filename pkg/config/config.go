// Package config assembles runtime settings from a .env file, an optional
// YAML file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	KeyScratchRoot         = "SCRATCH_ROOT"
	KeyWorkspaceRetention  = "WORKSPACE_RETENTION"
	KeySweepInterval       = "SWEEP_INTERVAL"
	KeyChunkMaxChars       = "CHUNK_MAX_CHARS"
	KeySynthMaxRetries     = "SYNTH_MAX_RETRIES"
	KeySynthRetryDelay     = "SYNTH_RETRY_DELAY"
	KeySynthConcurrency    = "SYNTH_CONCURRENCY"
	KeySynthBackend        = "SYNTH_BACKEND"
	KeyAzureSpeechKey      = "AZURE_SPEECH_KEY"
	KeyAzureRegion         = "AZURE_REGION"
	KeyAzureSpeechVoice    = "AZURE_SPEECH_VOICE"
	KeyAzureVisionKey      = "AZURE_VISION_KEY"
	KeyAzureVisionEndpoint = "AZURE_VISION_ENDPOINT"
	KeyOCRBackend          = "OCR_BACKEND"
	KeyGeminiKey           = "GEMINI_KEY"
	KeyOpenAIToken         = "OPEN_API_TOKEN"
	KeyOpenAIBaseURL       = "OPENAI_BASE_URL"
	KeyOpenAITTSModel      = "OPENAI_TTS_MODEL"
	KeyOpenAITTSVoice      = "OPENAI_TTS_VOICE"
	KeyBlobBucket          = "BLOB_BUCKET"
	KeyBlobPrefix          = "BLOB_PREFIX"
	KeyBlobEndpoint        = "BLOB_ENDPOINT"
	KeyAWSRegion           = "AWS_REGION"
	KeyAWSAccessKeyID      = "AWS_ACCESS_KEY_ID"
	KeyAWSSecretAccessKey  = "AWS_SECRET_ACCESS_KEY"
	KeyAWSSessionToken     = "AWS_SESSION_TOKEN"
	KeyAWSProfile          = "AWS_PROFILE"
	KeyTranscribeLocale    = "TRANSCRIBE_LOCALE"
	KeyFFmpegPath          = "FFMPEG_PATH"
	KeyLogLevel            = "LOG_LEVEL"
	KeyLogFormat           = "LOG_FORMAT"
)

var knownKeys = []string{
	KeyScratchRoot, KeyWorkspaceRetention, KeySweepInterval,
	KeyChunkMaxChars, KeySynthMaxRetries, KeySynthRetryDelay, KeySynthConcurrency, KeySynthBackend,
	KeyAzureSpeechKey, KeyAzureRegion, KeyAzureSpeechVoice,
	KeyAzureVisionKey, KeyAzureVisionEndpoint, KeyOCRBackend, KeyGeminiKey,
	KeyOpenAIToken, KeyOpenAIBaseURL, KeyOpenAITTSModel, KeyOpenAITTSVoice,
	KeyBlobBucket, KeyBlobPrefix, KeyBlobEndpoint,
	KeyAWSRegion, KeyAWSAccessKeyID, KeyAWSSecretAccessKey, KeyAWSSessionToken, KeyAWSProfile,
	KeyTranscribeLocale, KeyFFmpegPath, KeyLogLevel, KeyLogFormat,
}

const (
	BackendAzure  = "azure"
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
)

type Config struct {
	ScratchRoot        string
	WorkspaceRetention time.Duration
	SweepInterval      time.Duration

	ChunkMaxChars    int
	SynthMaxRetries  int
	SynthRetryDelay  time.Duration
	SynthConcurrency int
	SynthBackend     string

	AzureSpeechKey      string
	AzureRegion         string
	AzureSpeechVoice    string
	AzureVisionKey      string
	AzureVisionEndpoint string

	OCRBackend string
	GeminiKey  string

	OpenAIToken    string
	OpenAIBaseURL  string
	OpenAITTSModel string
	OpenAITTSVoice string

	BlobBucket   string
	BlobPrefix   string
	BlobEndpoint string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	AWSProfile         string

	TranscribeLocale string
	FFmpegPath       string

	LogLevel  string
	LogFormat string
}

// Default is the configuration with nothing set.
func Default() *Config {
	return &Config{
		ScratchRoot:        filepath.Join(os.TempDir(), "docvoice"),
		WorkspaceRetention: 6 * time.Hour,
		SweepInterval:      30 * time.Minute,
		ChunkMaxChars:      model.DefaultChunkMaxChars,
		SynthMaxRetries:    model.DefaultMaxRetries,
		SynthRetryDelay:    model.DefaultRetryDelay,
		SynthConcurrency:   model.DefaultConcurrency,
		SynthBackend:       BackendAzure,
		AzureSpeechVoice:   "en-US-JennyNeural",
		OCRBackend:         BackendAzure,
		OpenAITTSModel:     "gpt-4o-mini-tts",
		OpenAITTSVoice:     "alloy",
		TranscribeLocale:   "en-US",
		FFmpegPath:         "ffmpeg",
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads envFiles (".env" when none are given; missing files are
// skipped) into the environment without overriding it, then layers the YAML
// file at yamlPath, if any, under the environment.
func Load(yamlPath string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, utils.WrapIfNotNil(err, envFile)
		}
	}

	values := map[string]string{}
	if strings.TrimSpace(yamlPath) != "" {
		fileValues, err := readYAML(yamlPath)
		if err != nil {
			return nil, err
		}
		for key, value := range fileValues {
			values[key] = value
		}
	}
	for _, key := range knownKeys {
		if value, ok := os.LookupEnv(key); ok {
			values[key] = value
		}
	}
	return FromValues(values)
}

// readYAML accepts a flat mapping whose keys are the environment names,
// case-insensitively, e.g. "chunk_max_chars: 1200".
func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.WrapIfNotNil(err, path)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, utils.WrapIfNotNil(err, path)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		values[strings.ToUpper(strings.TrimSpace(key))] = fmt.Sprint(value)
	}
	return values, nil
}

// FromValues builds a Config from key/value pairs over the defaults.
func FromValues(values map[string]string) (*Config, error) {
	cfg := Default()
	p := parser{values: values}

	p.str(KeyScratchRoot, &cfg.ScratchRoot)
	p.duration(KeyWorkspaceRetention, &cfg.WorkspaceRetention)
	p.duration(KeySweepInterval, &cfg.SweepInterval)

	p.integer(KeyChunkMaxChars, &cfg.ChunkMaxChars)
	p.integer(KeySynthMaxRetries, &cfg.SynthMaxRetries)
	p.duration(KeySynthRetryDelay, &cfg.SynthRetryDelay)
	p.integer(KeySynthConcurrency, &cfg.SynthConcurrency)
	p.str(KeySynthBackend, &cfg.SynthBackend)

	p.str(KeyAzureSpeechKey, &cfg.AzureSpeechKey)
	p.str(KeyAzureRegion, &cfg.AzureRegion)
	p.str(KeyAzureSpeechVoice, &cfg.AzureSpeechVoice)
	p.str(KeyAzureVisionKey, &cfg.AzureVisionKey)
	p.str(KeyAzureVisionEndpoint, &cfg.AzureVisionEndpoint)

	p.str(KeyOCRBackend, &cfg.OCRBackend)
	p.str(KeyGeminiKey, &cfg.GeminiKey)

	p.str(KeyOpenAIToken, &cfg.OpenAIToken)
	p.str(KeyOpenAIBaseURL, &cfg.OpenAIBaseURL)
	p.str(KeyOpenAITTSModel, &cfg.OpenAITTSModel)
	p.str(KeyOpenAITTSVoice, &cfg.OpenAITTSVoice)

	p.str(KeyBlobBucket, &cfg.BlobBucket)
	p.str(KeyBlobPrefix, &cfg.BlobPrefix)
	p.str(KeyBlobEndpoint, &cfg.BlobEndpoint)

	p.str(KeyAWSRegion, &cfg.AWSRegion)
	p.str(KeyAWSAccessKeyID, &cfg.AWSAccessKeyID)
	p.str(KeyAWSSecretAccessKey, &cfg.AWSSecretAccessKey)
	p.str(KeyAWSSessionToken, &cfg.AWSSessionToken)
	p.str(KeyAWSProfile, &cfg.AWSProfile)

	p.str(KeyTranscribeLocale, &cfg.TranscribeLocale)
	p.str(KeyFFmpegPath, &cfg.FFmpegPath)
	p.str(KeyLogLevel, &cfg.LogLevel)
	p.str(KeyLogFormat, &cfg.LogFormat)

	cfg.SynthBackend = strings.ToLower(cfg.SynthBackend)
	cfg.OCRBackend = strings.ToLower(cfg.OCRBackend)

	if err := errors.Join(p.errs...); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return cfg, nil
}

type parser struct {
	values map[string]string
	errs   []error
}

func (p *parser) lookup(key string) (string, bool) {
	value, ok := p.values[key]
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func (p *parser) str(key string, dst *string) {
	if value, ok := p.lookup(key); ok {
		*dst = value
	}
}

func (p *parser) integer(key string, dst *int) {
	value, ok := p.lookup(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", key, value))
		return
	}
	*dst = parsed
}

func (p *parser) duration(key string, dst *time.Duration) {
	value, ok := p.lookup(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a duration", key, value))
		return
	}
	*dst = parsed
}

// ValidateSpeech reports every setting the document-to-speech path is missing.
func (c *Config) ValidateSpeech() error {
	var errs []error
	switch c.SynthBackend {
	case BackendAzure:
		errs = append(errs, require(KeyAzureSpeechKey, c.AzureSpeechKey), require(KeyAzureRegion, c.AzureRegion))
	case BackendOpenAI:
		errs = append(errs, require(KeyOpenAIToken, c.OpenAIToken))
	default:
		errs = append(errs, fmt.Errorf("%s: unknown backend %q", KeySynthBackend, c.SynthBackend))
	}

	switch c.OCRBackend {
	case BackendAzure:
		errs = append(errs, require(KeyAzureVisionKey, c.AzureVisionKey), require(KeyAzureVisionEndpoint, c.AzureVisionEndpoint))
	case BackendGemini:
		errs = append(errs, require(KeyGeminiKey, c.GeminiKey))
	default:
		errs = append(errs, fmt.Errorf("%s: unknown backend %q", KeyOCRBackend, c.OCRBackend))
	}

	errs = append(errs, c.validateCommon())
	return errors.Join(errs...)
}

// ValidateTranscription reports every setting the recording-to-transcript path is missing.
func (c *Config) ValidateTranscription() error {
	errs := []error{
		require(KeyAzureSpeechKey, c.AzureSpeechKey),
		require(KeyAzureRegion, c.AzureRegion),
		require(KeyBlobBucket, c.BlobBucket),
		c.validateCommon(),
	}
	if c.AWSAccessKeyID == "" && c.AWSSecretAccessKey == "" && c.AWSProfile == "" {
		errs = append(errs, fmt.Errorf("%s/%s or %s is required", KeyAWSAccessKeyID, KeyAWSSecretAccessKey, KeyAWSProfile))
	}
	return errors.Join(errs...)
}

func (c *Config) validateCommon() error {
	var errs []error
	if c.ChunkMaxChars <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyChunkMaxChars))
	}
	if c.SynthMaxRetries < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeySynthMaxRetries))
	}
	if c.SynthConcurrency < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeySynthConcurrency))
	}
	if c.WorkspaceRetention <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyWorkspaceRetention))
	}
	return errors.Join(errs...)
}

func require(key string, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", key)
	}
	return nil
}

// PipelineOptions maps the tuning settings onto pipeline options.
func (c *Config) PipelineOptions() []model.PipelineOption {
	return []model.PipelineOption{
		model.WithChunkMaxChars(c.ChunkMaxChars),
		model.WithMaxRetries(c.SynthMaxRetries),
		model.WithRetryDelay(c.SynthRetryDelay),
		model.WithConcurrency(c.SynthConcurrency),
	}
}
