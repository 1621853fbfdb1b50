package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
)

const (
	pitchServices   = 3
	pitchSlides     = 15
	pitchMaxTokens  = 8192
	selectMaxTokens = 200
	researchExcerpt = 6000
	overviewExcerpt = 2000
)

// Synthesizer writes pitch deck content with a chat model. When more than
// three services are offered it first asks the model to pick three.
type Synthesizer struct {
	llm   Completer
	model string
}

var _ pipeline.Synthesizer = (*Synthesizer)(nil)

func NewSynthesizer(llm Completer, model string) *Synthesizer {
	return &Synthesizer{llm: llm, model: model}
}

func (s *Synthesizer) Synthesize(ctx context.Context, p domain.Prospect, research domain.Research, services []domain.Service) (*domain.Content, error) {
	selected, err := s.selectServices(ctx, p, research, services)
	if err != nil {
		return nil, err
	}

	c, err := s.llm.Complete(ctx, s.model, []ChatMessage{
		{Role: "user", Content: pitchPrompt(p, research, selected)},
	}, pitchMaxTokens)
	if err != nil {
		return nil, err
	}

	slides := ParseSlides(c.Content)
	if len(slides) == 0 {
		return nil, pipeline.Permanent(errors.New("model output contained no slides"))
	}

	ids := make([]string, 0, len(selected))
	for _, svc := range selected {
		ids = append(ids, svc.ID)
	}
	return &domain.Content{
		Slides:     slides,
		InputText:  BuildInputText(slides),
		ServiceIDs: ids,
	}, nil
}

func (s *Synthesizer) selectServices(ctx context.Context, p domain.Prospect, research domain.Research, candidates []domain.Service) ([]domain.Service, error) {
	if len(candidates) <= pitchServices {
		return candidates, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a B2B sales strategist for LakeB2B.\n\n")
	fmt.Fprintf(&b, "Prospect: %s (%s)\nContact: %s, %s\n\n", p.CompanyName, p.Industry, p.ContactName, p.ContactTitle)
	fmt.Fprintf(&b, "Research summary:\n%s\n\nPain points found:\n", truncate(research.Overview, overviewExcerpt))
	for i, pain := range research.PainPoints {
		if i == 8 {
			break
		}
		fmt.Fprintf(&b, "- %s\n", pain)
	}
	fmt.Fprintf(&b, "\nAvailable services:\n%s\n", formatServices(candidates))
	fmt.Fprintf(&b, "Select exactly %d services that are most relevant for this prospect. "+
		"Return only the service ids, one per line, most relevant first.", pitchServices)

	c, err := s.llm.Complete(ctx, s.model, []ChatMessage{{Role: "user", Content: b.String()}}, selectMaxTokens)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Service, len(candidates))
	for _, svc := range candidates {
		byID[strings.ToLower(svc.ID)] = svc
	}
	var selected []domain.Service
	for _, line := range strings.Split(c.Content, "\n") {
		if svc, ok := byID[strings.ToLower(strings.TrimSpace(line))]; ok {
			selected = append(selected, svc)
			delete(byID, strings.ToLower(svc.ID))
		}
	}
	if len(selected) == 0 {
		return candidates[:pitchServices], nil
	}
	if len(selected) > pitchServices {
		selected = selected[:pitchServices]
	}
	return selected, nil
}

func pitchPrompt(p domain.Prospect, research domain.Research, services []domain.Service) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert B2B pitch deck writer for LakeB2B, a B2B data services company.\n")
	fmt.Fprintf(&b, "Create a persuasive, data-driven pitch deck for the following prospect.\n\n")
	fmt.Fprintf(&b, "## PROSPECT\n- Company: %s\n- Industry: %s\n- Website: %s\n- Contact: %s, %s\n",
		p.CompanyName, p.Industry, p.WebsiteURL, p.ContactName, p.ContactTitle)
	if p.ExtraContext != "" {
		fmt.Fprintf(&b, "- Extra context: %s\n", p.ExtraContext)
	}
	raw := research.Raw
	if raw == "" {
		raw = research.Text()
	}
	fmt.Fprintf(&b, "\n## RESEARCH\n%s\n\n## SERVICES TO PITCH\n%s\n", truncate(raw, researchExcerpt), formatServices(services))
	fmt.Fprintf(&b, "## INSTRUCTIONS\nWrite %d slides: a title slide, an overview of %s, the key pain points, "+
		"a problem, impact and solution deep dive per service, an ROI summary, why LakeB2B and next steps. "+
		"Use specific data from the research and ROI metrics from the services.\n\n", pitchSlides, p.CompanyName)
	fmt.Fprintf(&b, "## OUTPUT FORMAT\nFor each slide output exactly:\n"+
		"---SLIDE [number]---\nTITLE: [slide title]\nBODY:\n[slide body in markdown]\nNOTES:\n[speaker notes]\n---END SLIDE---\n")
	return b.String()
}

func formatServices(services []domain.Service) string {
	parts := make([]string, 0, len(services))
	for _, s := range services {
		parts = append(parts, fmt.Sprintf("### %s (id: %s)\nTagline: %s\nDescription: %s\nPain points addressed: %s\nROI metrics: %s\nKey differentiators: %s\n",
			s.Name, s.ID, s.Tagline, s.Description,
			strings.Join(s.PainPointsAddressed, ", "),
			strings.Join(s.ROIMetrics, ", "),
			strings.Join(s.KeyDifferentiators, ", ")))
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type slideSection int

const (
	sectionNone slideSection = iota
	sectionBody
	sectionNotes
)

// ParseSlides reads the ---SLIDE n--- blocks of a model answer. A block is
// closed by ---END SLIDE--- or by the next block header.
func ParseSlides(raw string) []domain.Slide {
	var (
		slides  []domain.Slide
		current *domain.Slide
		body    []string
		notes   []string
		section slideSection
		lastNum int
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		current.Notes = strings.TrimSpace(strings.Join(notes, "\n"))
		slides = append(slides, *current)
		lastNum = current.Number
		current, body, notes, section = nil, nil, nil, sectionNone
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "---END SLIDE---"):
			flush()
		case strings.HasPrefix(trimmed, "---SLIDE"):
			flush()
			header := strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(trimmed, "---SLIDE"), "---", ""))
			num, err := strconv.Atoi(header)
			if err != nil {
				num = lastNum + 1
			}
			current = &domain.Slide{Number: num}
		case current == nil:
		case strings.HasPrefix(trimmed, "TITLE:"):
			current.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "TITLE:"))
			section = sectionNone
		case trimmed == "BODY:":
			section = sectionBody
		case trimmed == "NOTES:":
			section = sectionNotes
		case section == sectionBody:
			body = append(body, line)
		case section == sectionNotes:
			notes = append(notes, line)
		}
	}
	flush()

	return slides
}

// BuildInputText flattens slides into the markdown the deck provider expects,
// one card per slide separated by horizontal rules.
func BuildInputText(slides []domain.Slide) string {
	parts := make([]string, 0, len(slides))
	for _, s := range slides {
		part := fmt.Sprintf("# %s\n\n%s", s.Title, s.Body)
		if s.Notes != "" {
			part += "\n\n> **Speaker Notes:** " + s.Notes
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
