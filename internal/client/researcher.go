package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
	"github.com/thoas/go-funk"
)

const researchSystemPrompt = "You are a B2B company research analyst. Provide detailed, factual " +
	"information about companies including their technology stack, business challenges, " +
	"industry position, and recent developments. Be specific and data-driven."

// wellKnownCompanies get quick research even without any hints.
var wellKnownCompanies = []string{
	"salesforce", "snowflake", "hubspot", "adobe", "oracle", "sap", "microsoft",
	"google", "amazon", "meta", "apple", "ibm", "cisco", "dell", "intel",
	"zoom", "slack", "shopify", "stripe", "twilio", "datadog", "splunk",
	"servicenow", "workday", "atlassian", "dropbox", "zendesk", "intercom",
	"marketo", "eloqua", "pardot", "mailchimp", "sendgrid", "segment",
}

// Researcher answers a fixed set of questions about a company with a search backed model.
type Researcher struct {
	llm   Completer
	model string
}

var _ pipeline.Researcher = (*Researcher)(nil)

func NewResearcher(llm Completer, model string) *Researcher {
	return &Researcher{llm: llm, model: model}
}

// DepthFor picks quick research for well known companies and for prospects
// that come with both an industry and a website.
func DepthFor(p domain.Prospect) domain.ResearchDepth {
	if funk.ContainsString(wellKnownCompanies, p.NormalizedName()) {
		return domain.ResearchDepthQuick
	}
	if p.Industry != "" && p.WebsiteURL != "" {
		return domain.ResearchDepthQuick
	}
	return domain.ResearchDepthDeep
}

func (r *Researcher) Research(ctx context.Context, p domain.Prospect) (*domain.Research, error) {
	depth := DepthFor(p)
	queries := researchQueries(p, depth)

	answers := make([]string, 0, len(queries))
	var sources []string
	for _, q := range queries {
		c, err := r.llm.Complete(ctx, r.model, []ChatMessage{
			{Role: "system", Content: researchSystemPrompt},
			{Role: "user", Content: q},
		}, 0)
		if err != nil {
			return nil, err
		}
		answers = append(answers, c.Content)
		sources = append(sources, c.Citations...)
	}

	research := &domain.Research{
		CompanyName: p.CompanyName,
		Industry:    p.Industry,
		Overview:    answers[0],
		Depth:       depth,
		Sources:     funk.UniqString(sources),
		Raw:         strings.Join(answers, "\n\n---\n\n"),
	}
	switch depth {
	case domain.ResearchDepthQuick:
		research.PainPoints = ExtractBulletPoints(answers[1])
		research.RecentActivity = answers[2]
	default:
		research.PainPoints = ExtractBulletPoints(answers[2])
		research.RecentActivity = answers[3]
	}
	return research, nil
}

func researchQueries(p domain.Prospect, depth domain.ResearchDepth) []string {
	company := p.CompanyName
	urlHint := ""
	if p.WebsiteURL != "" {
		urlHint = fmt.Sprintf(" (website: %s)", p.WebsiteURL)
	}
	industryHint := ""
	if p.Industry != "" {
		industryHint = fmt.Sprintf(" in the %s industry", p.Industry)
	}

	if depth == domain.ResearchDepthQuick {
		return []string{
			fmt.Sprintf("Give me a comprehensive overview of %s%s%s. Include what they do, company size, "+
				"target market, key products and their technology stack.", company, urlHint, industryHint),
			fmt.Sprintf("What are the top business challenges and pain points for %s%s? Focus on data quality, "+
				"sales and marketing efficiency, lead generation and technology gaps.", company, industryHint),
			fmt.Sprintf("What are the latest news, initiatives and strategic priorities for %s? Include funding, "+
				"partnerships, product launches or market expansion.", company),
		}
	}

	return []string{
		fmt.Sprintf("Provide a detailed company overview of %s%s%s. Include founding year, headquarters, "+
			"employee count, revenue range, leadership and business model.", company, urlHint, industryHint),
		fmt.Sprintf("What technology stack does %s use? Include CRM, marketing automation, analytics, "+
			"sales enablement and cloud infrastructure.", company),
		fmt.Sprintf("What are the key business pain points facing %s? Focus on data enrichment needs, SDR "+
			"productivity, buyer intent visibility, lead scoring and demand generation.", company),
		fmt.Sprintf("Describe the competitive landscape for %s%s. Who are the main competitors and where is "+
			"%s vulnerable?", company, industryHint, company),
		fmt.Sprintf("Who are the buyer personas at %s involved in purchasing B2B data or sales intelligence "+
			"solutions, and what are their decision criteria?", company),
	}
}

// ExtractBulletPoints returns the bulleted lines of text. Without bullets it
// falls back to the first five sentences longer than 20 characters.
func ExtractBulletPoints(text string) []string {
	var points []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 5 || !hasBullet(line) {
			continue
		}
		if cleaned := strings.TrimSpace(strings.TrimLeft(line, "-•*– ")); cleaned != "" {
			points = append(points, cleaned)
		}
	}
	if len(points) > 0 {
		return points
	}

	for _, s := range strings.Split(text, ".") {
		s = strings.TrimSpace(s)
		if len(s) > 20 {
			points = append(points, s)
		}
		if len(points) == 5 {
			break
		}
	}
	return points
}

func hasBullet(line string) bool {
	for _, prefix := range []string{"-", "•", "*", "–"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
