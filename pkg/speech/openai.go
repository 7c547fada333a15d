package speech

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
	"github.com/Nephrolytics-ai/docvoice/pkg/wav"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultOpenAIModel = "gpt-4o-mini-tts"
	DefaultOpenAIVoice = "alloy"
)

// openAIPCM is the raw format returned for response_format=pcm.
var openAIPCM = wav.Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

type OpenAIOption func(*openAISettings)

type openAISettings struct {
	model       string
	voice       string
	authToken   string
	url         string
	requestOpts []option.RequestOption
}

func WithOpenAIModel(name string) OpenAIOption {
	return func(s *openAISettings) {
		if name = strings.TrimSpace(name); name != "" {
			s.model = name
		}
	}
}

func WithOpenAIVoice(voice string) OpenAIOption {
	return func(s *openAISettings) {
		if voice = strings.TrimSpace(voice); voice != "" {
			s.voice = voice
		}
	}
}

func WithOpenAIAuthToken(token string) OpenAIOption {
	return func(s *openAISettings) { s.authToken = strings.TrimSpace(token) }
}

func WithOpenAIURL(url string) OpenAIOption {
	return func(s *openAISettings) { s.url = strings.TrimSpace(url) }
}

func WithOpenAIRequestOptions(opts ...option.RequestOption) OpenAIOption {
	return func(s *openAISettings) { s.requestOpts = append(s.requestOpts, opts...) }
}

// OpenAISynthesizer uses the OpenAI speech endpoint. Audio is requested as raw
// PCM and given a WAV header locally. Fragments are 24 kHz mono 16-bit, not the
// 16 kHz the Azure backend produces, so every chunk of a job must come from
// the same backend; wav.Merge rejects mixed formats with ErrFormatMismatch.
type OpenAISynthesizer struct {
	apiClient openai.Client
	model     string
	voice     string
}

func NewOpenAISynthesizer(opts ...OpenAIOption) *OpenAISynthesizer {
	settings := openAISettings{model: DefaultOpenAIModel, voice: DefaultOpenAIVoice}
	for _, opt := range opts {
		opt(&settings)
	}

	requestOpts := make([]option.RequestOption, 0, 2+len(settings.requestOpts))
	if settings.url != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(settings.url))
	}
	if settings.authToken != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(settings.authToken))
	}
	requestOpts = append(requestOpts, settings.requestOpts...)

	return &OpenAISynthesizer{
		apiClient: openai.NewClient(requestOpts...),
		model:     settings.model,
		voice:     settings.voice,
	}
}

func (s *OpenAISynthesizer) SynthesizeToFile(ctx context.Context, text string, path string) error {
	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.model),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	}

	response, err := s.apiClient.Audio.Speech.New(ctx, params, option.WithJSONSet("voice", s.voice))
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	if response == nil {
		return utils.WrapIfNotNil(errors.New("speech API returned nil response"))
	}
	defer func() {
		_ = response.Body.Close()
	}()

	pcm, err := io.ReadAll(response.Body)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	if len(pcm) == 0 {
		return utils.WrapIfNotNil(errors.New("speech response is empty"))
	}
	if err := wav.WriteFile(path, openAIPCM, pcm); err != nil {
		return utils.WrapIfNotNil(err)
	}
	return nil
}

var _ model.Synthesizer = (*OpenAISynthesizer)(nil)
