// Package ocr recognizes text in scanned documents and images.
package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/docvoice/pkg/azure"
	"github.com/Nephrolytics-ai/docvoice/pkg/longjob"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
)

const (
	readAnalyzePath     = "/vision/v3.2/read/analyze"
	readServiceName     = "azure-read"
	DefaultReadInterval = 1200 * time.Millisecond
	DefaultReadTimeout  = 180 * time.Second
)

type readStatus struct {
	Status        string `json:"status"`
	AnalyzeResult *struct {
		ReadResults []struct {
			Page  int `json:"page"`
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
}

// readService speaks the Azure Read v3.2 operation protocol.
type readService struct {
	client     *azure.Client
	analyzeURL string
}

func (s *readService) Submit(ctx context.Context, document []byte) (longjob.Handle, error) {
	response, err := s.client.Do(ctx, azure.Request{
		Method:      http.MethodPost,
		URL:         s.analyzeURL,
		ContentType: "application/octet-stream",
		Body:        document,
	})
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	if !response.OK() {
		return "", &model.SubmitRejectedError{Status: response.StatusCode, Body: string(response.Body)}
	}

	location := strings.TrimSpace(response.Header.Get("Operation-Location"))
	if location == "" {
		return "", utils.WrapIfNotNil(errors.New("missing operation-location header"))
	}
	return longjob.Handle(location), nil
}

func (s *readService) Poll(ctx context.Context, handle longjob.Handle) (longjob.Status, error) {
	response, err := s.client.Do(ctx, azure.Request{Method: http.MethodGet, URL: string(handle)})
	if err != nil {
		return longjob.Status{}, utils.WrapIfNotNil(err)
	}
	if !response.OK() {
		return longjob.Status{}, utils.WrapIfNotNil(response.Err(), "read poll")
	}

	status := readStatus{}
	if err := json.Unmarshal(response.Body, &status); err != nil {
		return longjob.Status{}, utils.WrapIfNotNil(err)
	}

	state := longjob.ParseState(status.Status)
	message := ""
	if state == longjob.StateFailed {
		message = azure.ErrorMessage(response.Body)
		if message == "" {
			message = strings.TrimSpace(string(response.Body))
		}
	}
	return longjob.Status{State: state, Message: message, Body: response.Body}, nil
}

// Fetch reads the lines embedded in the final status payload, page by page.
func (s *readService) Fetch(ctx context.Context, handle longjob.Handle, status longjob.Status) (string, error) {
	result := readStatus{}
	if err := json.Unmarshal(status.Body, &result); err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	if result.AnalyzeResult == nil {
		return "", nil
	}

	var lines []string
	for _, page := range result.AnalyzeResult.ReadResults {
		for _, line := range page.Lines {
			lines = append(lines, line.Text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// ReadRecognizer runs documents through Azure Read.
type ReadRecognizer struct {
	poller *longjob.Poller[[]byte, string]
}

// NewReadRecognizer targets the Computer Vision resource at endpoint.
// Polling defaults to every 1.2s with a 3 minute deadline.
func NewReadRecognizer(endpoint string, apiKey string, clientOpts []azure.ClientOption, pollOpts ...longjob.Option) (*ReadRecognizer, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, utils.WrapIfNotNil(errors.New("vision endpoint is required"))
	}
	analyzeURL, err := url.JoinPath(endpoint, readAnalyzePath)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	client, err := azure.NewClient(apiKey, clientOpts...)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	opts := append([]longjob.Option{
		longjob.WithInterval(DefaultReadInterval),
		longjob.WithTimeout(DefaultReadTimeout),
	}, pollOpts...)

	service := &readService{client: client, analyzeURL: analyzeURL}
	return &ReadRecognizer{poller: longjob.New[[]byte, string](readServiceName, service, opts...)}, nil
}

func (r *ReadRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	document, err := os.ReadFile(path)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	text, err := r.poller.Run(ctx, document)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	return text, nil
}

var _ model.Recognizer = (*ReadRecognizer)(nil)
