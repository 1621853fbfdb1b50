package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
)

const cardSeparator = "\n\n---\n\n"

type GammaOptions struct {
	BaseURL  string
	APIKey   string
	NumCards int
	Timeout  time.Duration
}

// GammaClient creates presentations through the Gamma generations API.
type GammaClient struct {
	baseURL  string
	numCards int
	req      *requester
}

var _ pipeline.Producer = (*GammaClient)(nil)

func NewGammaClient(opts GammaOptions) *GammaClient {
	return &GammaClient{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		numCards: opts.NumCards,
		req: &requester{
			name:       "gamma",
			httpClient: newHTTPClient(opts.Timeout),
			headers:    map[string]string{"X-API-KEY": opts.APIKey},
		},
	}
}

type generationRequest struct {
	InputText string `json:"inputText"`
	TextMode  string `json:"textMode"`
	Format    string `json:"format"`
	NumCards  int    `json:"numCards"`
	ExportAs  string `json:"exportAs"`
	ThemeID   string `json:"themeId,omitempty"`
}

type generationResponse struct {
	GenerationID string            `json:"generationId"`
	Status       string            `json:"status"`
	GammaURL     string            `json:"gammaUrl"`
	PptxURL      string            `json:"pptxUrl,omitempty"`
	PdfURL       string            `json:"pdfUrl,omitempty"`
	Exports      map[string]string `json:"exports,omitempty"`
	Error        json.RawMessage   `json:"error,omitempty"`
}

// Submit starts a generation and returns its id.
func (g *GammaClient) Submit(ctx context.Context, inputText string, themeID string) (string, error) {
	cards := g.numCards
	if strings.TrimSpace(inputText) != "" {
		cards = strings.Count(inputText, cardSeparator) + 1
	}

	var resp generationResponse
	err := g.req.doJSON(ctx, http.MethodPost, g.baseURL+"/generations", generationRequest{
		InputText: inputText,
		TextMode:  "preserve",
		Format:    "presentation",
		NumCards:  cards,
		ExportAs:  "pptx",
		ThemeID:   themeID,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.GenerationID == "" {
		return "", pipeline.Permanent(errors.New("gamma did not return a generation id"))
	}
	return resp.GenerationID, nil
}

// Status reports whether the generation finished. A failed generation is a permanent error.
func (g *GammaClient) Status(ctx context.Context, generationID string) (pipeline.PollStatus[domain.Artifact], error) {
	var resp generationResponse
	if err := g.req.doJSON(ctx, http.MethodGet, g.baseURL+"/generations/"+url.PathEscape(generationID), nil, &resp); err != nil {
		return pipeline.PollStatus[domain.Artifact]{}, err
	}

	switch resp.Status {
	case "completed":
		return pipeline.PollStatus[domain.Artifact]{
			Done:  true,
			State: resp.Status,
			Value: resp.artifact(generationID),
		}, nil
	case "failed":
		return pipeline.PollStatus[domain.Artifact]{State: resp.Status},
			pipeline.Permanent(fmt.Errorf("gamma generation %s failed: %s", generationID, resp.errorMessage()))
	default:
		return pipeline.PollStatus[domain.Artifact]{State: resp.Status}, nil
	}
}

func (r generationResponse) artifact(fallbackID string) domain.Artifact {
	a := domain.Artifact{
		GenerationID: r.GenerationID,
		URL:          r.GammaURL,
		ExportURLs:   map[string]string{},
	}
	if a.GenerationID == "" {
		a.GenerationID = fallbackID
	}
	for format, u := range r.Exports {
		if u != "" {
			a.ExportURLs[format] = u
		}
	}
	if r.PptxURL != "" {
		a.ExportURLs["pptx"] = r.PptxURL
	}
	if r.PdfURL != "" {
		a.ExportURLs["pdf"] = r.PdfURL
	}
	return a
}

func (r generationResponse) errorMessage() string {
	if len(r.Error) == 0 {
		return "unknown error"
	}
	var structured struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Error, &structured); err == nil && structured.Message != "" {
		return structured.Message
	}
	var plain string
	if err := json.Unmarshal(r.Error, &plain); err == nil && plain != "" {
		return plain
	}
	return string(r.Error)
}

// ListThemes returns the themes of the workspace the API key belongs to.
func (g *GammaClient) ListThemes(ctx context.Context) ([]domain.Theme, error) {
	var raw json.RawMessage
	if err := g.req.doJSON(ctx, http.MethodGet, g.baseURL+"/themes", nil, &raw); err != nil {
		return nil, err
	}

	var themes []domain.Theme
	if err := json.Unmarshal(raw, &themes); err == nil {
		return themes, nil
	}
	var paged struct {
		Data []domain.Theme `json:"data"`
	}
	if err := json.Unmarshal(raw, &paged); err != nil {
		return nil, pipeline.Permanent(fmt.Errorf("failed to decode gamma themes: %w", err))
	}
	return paged.Data, nil
}
