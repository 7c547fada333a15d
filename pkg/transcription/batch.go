// Package transcription runs Azure batch speech-to-text jobs and models
// their transcript documents.
package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Nephrolytics-ai/docvoice/pkg/azure"
	"github.com/Nephrolytics-ai/docvoice/pkg/longjob"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
)

const (
	transcriptionsPath     = "/speechtotext/v3.1/transcriptions"
	batchServiceName       = "azure-batch-transcription"
	resultKindTranscript   = "Transcription"
	DefaultLocale          = "en-US"
	DefaultDisplayName     = "docvoice transcription"
	DefaultPunctuationMode = "DictatedAndAutomatic"
	DefaultPollInterval    = longjob.DefaultInterval
	DefaultPollTimeout     = longjob.DefaultTimeout
)

type createRequest struct {
	ContentURLs []string         `json:"contentUrls"`
	Locale      string           `json:"locale"`
	DisplayName string           `json:"displayName"`
	Properties  createProperties `json:"properties"`
}

type createProperties struct {
	PunctuationMode            string `json:"punctuationMode"`
	WordLevelTimestampsEnabled bool   `json:"wordLevelTimestampsEnabled"`
}

type jobStatus struct {
	Self   string `json:"self"`
	Status string `json:"status"`
	Links  struct {
		Files string `json:"files"`
	} `json:"links"`
	Properties struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"properties"`
}

type resultFiles struct {
	Values []struct {
		Kind  string `json:"kind"`
		Name  string `json:"name"`
		Links struct {
			ContentURL string `json:"contentUrl"`
		} `json:"links"`
	} `json:"values"`
}

type batchService struct {
	client      *azure.Client
	createURL   string
	locale      string
	displayName string
}

// Submit creates a transcription for one audio URL. The returned handle is the
// job's self link.
func (s *batchService) Submit(ctx context.Context, contentURL string) (longjob.Handle, error) {
	body, err := json.Marshal(createRequest{
		ContentURLs: []string{contentURL},
		Locale:      s.locale,
		DisplayName: s.displayName,
		Properties: createProperties{
			PunctuationMode:            DefaultPunctuationMode,
			WordLevelTimestampsEnabled: true,
		},
	})
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}

	response, err := s.client.Do(ctx, azure.Request{
		Method:      http.MethodPost,
		URL:         s.createURL,
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	if !response.OK() {
		return "", &model.SubmitRejectedError{Status: response.StatusCode, Body: string(response.Body)}
	}

	created := jobStatus{}
	if err := json.Unmarshal(response.Body, &created); err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	if strings.TrimSpace(created.Self) == "" {
		return "", utils.WrapIfNotNil(errors.New("transcription response has no self link"))
	}
	return longjob.Handle(created.Self), nil
}

func (s *batchService) Poll(ctx context.Context, handle longjob.Handle) (longjob.Status, error) {
	response, err := s.client.Do(ctx, azure.Request{Method: http.MethodGet, URL: string(handle)})
	if err != nil {
		return longjob.Status{}, utils.WrapIfNotNil(err)
	}
	if !response.OK() {
		return longjob.Status{}, utils.WrapIfNotNil(response.Err(), "transcription poll")
	}

	status := jobStatus{}
	if err := json.Unmarshal(response.Body, &status); err != nil {
		return longjob.Status{}, utils.WrapIfNotNil(err)
	}

	state := longjob.ParseState(status.Status)
	message := ""
	if state == longjob.StateFailed && status.Properties.Error != nil {
		message = strings.TrimSpace(status.Properties.Error.Message)
	}
	return longjob.Status{State: state, Message: message, Body: response.Body}, nil
}

// Fetch follows links.files to the Transcription entry and downloads its
// content. Content URLs are pre-signed and must be fetched without the key.
func (s *batchService) Fetch(ctx context.Context, handle longjob.Handle, status longjob.Status) (json.RawMessage, error) {
	job := jobStatus{}
	if err := json.Unmarshal(status.Body, &job); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if strings.TrimSpace(job.Links.Files) == "" {
		return nil, utils.WrapIfNotNil(fmt.Errorf("transcription %s has no files link", handle))
	}

	files := resultFiles{}
	if err := s.client.GetJSON(ctx, job.Links.Files, false, &files); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	contentURL := ""
	for _, file := range files.Values {
		if file.Kind == resultKindTranscript {
			contentURL = file.Links.ContentURL
			break
		}
	}
	if contentURL == "" {
		return nil, utils.WrapIfNotNil(errors.New("transcription result file not found"))
	}

	response, err := s.client.Do(ctx, azure.Request{Method: http.MethodGet, URL: contentURL, Unsigned: true})
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if !response.OK() {
		return nil, utils.WrapIfNotNil(response.Err(), "transcript download")
	}
	if !json.Valid(response.Body) {
		return nil, utils.WrapIfNotNil(errors.New("transcript content is not valid JSON"))
	}
	return json.RawMessage(response.Body), nil
}

type BatchOption func(*batchSettings)

type batchSettings struct {
	endpoint    string
	locale      string
	displayName string
	clientOpts  []azure.ClientOption
	pollOpts    []longjob.Option
}

// WithEndpoint replaces the regional https://<region>.api.cognitive.microsoft.com host.
func WithEndpoint(endpoint string) BatchOption {
	return func(s *batchSettings) { s.endpoint = strings.TrimSpace(endpoint) }
}

func WithLocale(locale string) BatchOption {
	return func(s *batchSettings) {
		if locale = strings.TrimSpace(locale); locale != "" {
			s.locale = locale
		}
	}
}

func WithDisplayName(name string) BatchOption {
	return func(s *batchSettings) {
		if name = strings.TrimSpace(name); name != "" {
			s.displayName = name
		}
	}
}

func WithClientOptions(opts ...azure.ClientOption) BatchOption {
	return func(s *batchSettings) { s.clientOpts = append(s.clientOpts, opts...) }
}

// WithPollOptions tunes polling; the defaults are a 5s interval and 30m timeout.
func WithPollOptions(opts ...longjob.Option) BatchOption {
	return func(s *batchSettings) { s.pollOpts = append(s.pollOpts, opts...) }
}

// BatchTranscriber transcribes remotely hosted audio and returns the
// transcript document verbatim.
type BatchTranscriber struct {
	poller *longjob.Poller[string, json.RawMessage]
}

func NewBatchTranscriber(region string, apiKey string, opts ...BatchOption) (*BatchTranscriber, error) {
	settings := batchSettings{
		locale:      DefaultLocale,
		displayName: DefaultDisplayName,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	if settings.endpoint == "" {
		region = strings.TrimSpace(region)
		if region == "" {
			return nil, utils.WrapIfNotNil(errors.New("speech region is required"))
		}
		settings.endpoint = fmt.Sprintf("https://%s.api.cognitive.microsoft.com", region)
	}
	createURL, err := url.JoinPath(settings.endpoint, transcriptionsPath)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	client, err := azure.NewClient(apiKey, settings.clientOpts...)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	pollOpts := append([]longjob.Option{
		longjob.WithInterval(DefaultPollInterval),
		longjob.WithTimeout(DefaultPollTimeout),
	}, settings.pollOpts...)

	service := &batchService{
		client:      client,
		createURL:   createURL,
		locale:      settings.locale,
		displayName: settings.displayName,
	}
	return &BatchTranscriber{
		poller: longjob.New[string, json.RawMessage](batchServiceName, service, pollOpts...),
	}, nil
}

func (t *BatchTranscriber) Transcribe(ctx context.Context, contentURL string) (json.RawMessage, error) {
	if strings.TrimSpace(contentURL) == "" {
		return nil, utils.WrapIfNotNil(errors.New("content url is required"))
	}
	result, err := t.poller.Run(ctx, contentURL)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return result, nil
}

var _ model.Transcriber = (*BatchTranscriber)(nil)
