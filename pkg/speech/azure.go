package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/Nephrolytics-ai/docvoice/pkg/azure"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
)

const (
	DefaultAzureVoice = "en-US-JennyNeural"
	azureOutputFormat = "riff-16khz-16bit-mono-pcm"
	azureUserAgent    = "docvoice"
)

// SynthesisCanceledError is the service refusing or aborting a synthesis.
type SynthesisCanceledError struct {
	StatusCode int
	Detail     string
}

func (e *SynthesisCanceledError) Error() string {
	return fmt.Sprintf("synthesis canceled (%d): %s", e.StatusCode, e.Detail)
}

type AzureOption func(*AzureSynthesizer)

func WithVoice(voice string) AzureOption {
	return func(s *AzureSynthesizer) {
		if voice = strings.TrimSpace(voice); voice != "" {
			s.voice = voice
		}
	}
}

// WithTTSEndpoint replaces https://<region>.tts.speech.microsoft.com/cognitiveservices/v1.
func WithTTSEndpoint(endpoint string) AzureOption {
	return func(s *AzureSynthesizer) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			s.endpoint = endpoint
		}
	}
}

func WithAzureClientOptions(opts ...azure.ClientOption) AzureOption {
	return func(s *AzureSynthesizer) { s.clientOpts = append(s.clientOpts, opts...) }
}

// AzureSynthesizer calls the Azure Speech text-to-speech REST endpoint and
// receives 16 kHz mono 16-bit PCM WAV.
type AzureSynthesizer struct {
	client     *azure.Client
	endpoint   string
	voice      string
	clientOpts []azure.ClientOption
}

func NewAzureSynthesizer(region string, apiKey string, opts ...AzureOption) (*AzureSynthesizer, error) {
	s := &AzureSynthesizer{voice: DefaultAzureVoice}
	for _, opt := range opts {
		opt(s)
	}

	if s.endpoint == "" {
		region = strings.TrimSpace(region)
		if region == "" {
			return nil, utils.WrapIfNotNil(errors.New("speech region is required"))
		}
		s.endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region)
	}

	client, err := azure.NewClient(apiKey, s.clientOpts...)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	s.client = client
	return s, nil
}

func (s *AzureSynthesizer) SynthesizeToFile(ctx context.Context, text string, path string) error {
	ssml, err := buildSSML(s.voice, text)
	if err != nil {
		return err
	}

	response, err := s.client.Do(ctx, azure.Request{
		Method:      http.MethodPost,
		URL:         s.endpoint,
		ContentType: "application/ssml+xml",
		Header: map[string]string{
			"X-Microsoft-OutputFormat": azureOutputFormat,
			"User-Agent":               azureUserAgent,
		},
		Body: ssml,
	})
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	if !response.OK() {
		detail := azure.ErrorMessage(response.Body)
		if detail == "" {
			detail = strings.TrimSpace(string(response.Body))
		}
		if detail == "" {
			detail = http.StatusText(response.StatusCode)
		}
		return &SynthesisCanceledError{StatusCode: response.StatusCode, Detail: detail}
	}

	if err := os.WriteFile(path, response.Body, 0o600); err != nil {
		return utils.WrapIfNotNil(err)
	}
	return nil
}

// buildSSML wraps text in a single voice element. The document language is
// taken from the voice name, e.g. en-US for en-US-JennyNeural.
func buildSSML(voice string, text string) ([]byte, error) {
	lang := "en-US"
	if parts := strings.SplitN(voice, "-", 3); len(parts) == 3 {
		lang = parts[0] + "-" + parts[1]
	}

	var buf bytes.Buffer
	buf.WriteString(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="`)
	if err := xml.EscapeText(&buf, []byte(lang)); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	buf.WriteString(`"><voice name="`)
	if err := xml.EscapeText(&buf, []byte(voice)); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	buf.WriteString(`">`)
	if err := xml.EscapeText(&buf, []byte(text)); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	buf.WriteString(`</voice></speak>`)
	return buf.Bytes(), nil
}

var _ model.Synthesizer = (*AzureSynthesizer)(nil)
