// Package domain holds the values passed between pipeline stages.
package domain

import "strings"

// Prospect is one business record to build a deck for.
type Prospect struct {
	RowIndex     int    `json:"row_index"`
	CompanyName  string `json:"company_name" validate:"required"`
	Industry     string `json:"industry,omitempty"`
	WebsiteURL   string `json:"website_url,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactTitle string `json:"contact_title,omitempty"`
	ExtraContext string `json:"extra_context,omitempty"`
}

// NormalizedName is the cache key of the prospect's company.
func (p Prospect) NormalizedName() string {
	return NormalizeKey(p.CompanyName)
}

// NormalizeKey trims and case-folds a business key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

type ResearchDepth string

const (
	ResearchDepthQuick ResearchDepth = "quick"
	ResearchDepthDeep  ResearchDepth = "deep"
)

// Research is the structured output of the research stage.
type Research struct {
	CompanyName    string        `json:"company_name"`
	Industry       string        `json:"industry,omitempty"`
	Overview       string        `json:"overview"`
	PainPoints     []string      `json:"pain_points"`
	RecentActivity string        `json:"recent_activity,omitempty"`
	Depth          ResearchDepth `json:"depth"`
	Sources        []string      `json:"sources,omitempty"`
	// Raw is every provider answer, separated by horizontal rules.
	Raw string `json:"raw,omitempty"`
}

// Text concatenates the research fields used for keyword matching.
func (r Research) Text() string {
	parts := []string{r.Overview, r.RecentActivity}
	parts = append(parts, r.PainPoints...)
	return strings.Join(parts, " ")
}

// Service is a catalog entry offered to prospects.
type Service struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Tagline             string   `json:"tagline,omitempty"`
	Description         string   `json:"description"`
	PainPointsAddressed []string `json:"pain_points_addressed,omitempty"`
	IdealForIndustries  []string `json:"ideal_for_industries,omitempty"`
	ROIMetrics          []string `json:"roi_metrics,omitempty"`
	KeyDifferentiators  []string `json:"key_differentiators,omitempty"`
}

// Slide is one labeled content block.
type Slide struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Notes  string `json:"notes,omitempty"`
}

// Content is the synthesized deck: ordered slides plus the flattened text submitted for production.
type Content struct {
	Slides     []Slide  `json:"slides"`
	InputText  string   `json:"input_text"`
	ServiceIDs []string `json:"service_ids,omitempty"`
}

// Artifact is the produced document.
type Artifact struct {
	GenerationID string `json:"generation_id"`
	URL          string `json:"url"`
	// ExportURLs maps an export format (pptx, pdf) to its download link.
	ExportURLs map[string]string `json:"export_urls,omitempty"`
}

// PrimaryExport returns the pptx export, falling back to any other export.
func (a Artifact) PrimaryExport() string {
	if u, ok := a.ExportURLs["pptx"]; ok {
		return u
	}
	if u, ok := a.ExportURLs["pdf"]; ok {
		return u
	}
	for _, u := range a.ExportURLs {
		return u
	}
	return ""
}

// Theme is a document theme offered by the production provider.
type Theme struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}
