package ocr

import (
	"context"
	"errors"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
	"google.golang.org/genai"
)

const (
	defaultGeminiModelName = "gemini-2.5-flash"
	recognitionPrompt      = "Extract all readable text from this document in reading order. " +
		"Keep one output line per printed line. Return only the text."
)

type GeminiOption func(*geminiSettings)

type geminiSettings struct {
	model     string
	authToken string
	url       string
}

func WithGeminiModel(name string) GeminiOption {
	return func(s *geminiSettings) { s.model = strings.TrimSpace(name) }
}

// WithGeminiAuthToken overrides the GEMINI_KEY environment variable.
func WithGeminiAuthToken(token string) GeminiOption {
	return func(s *geminiSettings) { s.authToken = strings.TrimSpace(token) }
}

func WithGeminiURL(url string) GeminiOption {
	return func(s *geminiSettings) { s.url = strings.TrimSpace(url) }
}

// GeminiRecognizer asks a multimodal Gemini model to read a document in a
// single synchronous call.
type GeminiRecognizer struct {
	settings geminiSettings
}

func NewGeminiRecognizer(opts ...GeminiOption) *GeminiRecognizer {
	settings := geminiSettings{model: defaultGeminiModelName}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.model == "" {
		settings.model = defaultGeminiModelName
	}
	return &GeminiRecognizer{settings: settings}
}

func (r *GeminiRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	log := logging.NewLogger(ctx)

	mimeType, err := resolveDocumentMIMEType(path)
	if err != nil {
		return "", err
	}
	document, err := os.ReadFile(path)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}

	client, err := r.newAPIClient(ctx)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(
			[]*genai.Part{
				genai.NewPartFromText(recognitionPrompt),
				genai.NewPartFromBytes(document, mimeType),
			},
			genai.RoleUser,
		),
	}

	response, err := client.Models.GenerateContent(ctx, r.settings.model, contents, &genai.GenerateContentConfig{})
	if err != nil {
		log.Errorf("error: %v", err)
		return "", utils.WrapIfNotNil(err)
	}

	return strings.TrimSpace(response.Text()), nil
}

func (r *GeminiRecognizer) newAPIClient(ctx context.Context) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	}

	token := r.settings.authToken
	if token == "" {
		token = strings.TrimSpace(os.Getenv("GEMINI_KEY"))
	}
	if token != "" {
		clientCfg.APIKey = token
	}
	if r.settings.url != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: r.settings.url}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return client, nil
}

func resolveDocumentMIMEType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(path)))
	if ext == "" {
		return "", utils.WrapIfNotNil(errors.New("document extension is required to determine mime type"))
	}

	switch ext {
	case ".pdf":
		return "application/pdf", nil
	case ".png":
		return "image/png", nil
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	case ".tif", ".tiff":
		return "image/tiff", nil
	case ".bmp":
		return "image/bmp", nil
	case ".webp":
		return "image/webp", nil
	}

	mimeType := mime.TypeByExtension(ext)
	mimeType = strings.TrimSpace(strings.Split(mimeType, ";")[0])
	if !strings.HasPrefix(mimeType, "image/") {
		return "", utils.WrapIfNotNil(errors.New("unsupported document extension: " + ext))
	}
	return mimeType, nil
}

var _ model.Recognizer = (*GeminiRecognizer)(nil)
