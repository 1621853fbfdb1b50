package mappers

import (
	"fmt"
	"strings"

	api "github.com/Champ-Deep/LakeB2B-SlideSmith/api/v1alpha1"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
)

// ProspectFromSingle maps the single-prospect form. Optional contact details
// are folded into the extra context.
func ProspectFromSingle(form api.SingleProspectCreate) domain.Prospect {
	return domain.Prospect{
		CompanyName:  strings.TrimSpace(form.Company),
		ContactName:  strings.TrimSpace(form.ClientName),
		ContactTitle: strings.TrimSpace(form.Role),
		ExtraContext: extraContext(form),
	}
}

func extraContext(form api.SingleProspectCreate) string {
	parts := []string{}
	for _, f := range []struct{ label, value string }{
		{"LinkedIn", form.LinkedInURL},
		{"Email", form.Email},
		{"Phone", form.Phone},
		{"Notes", form.Notes},
	} {
		if v := strings.TrimSpace(f.value); v != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", f.label, v))
		}
	}
	return strings.Join(parts, " | ")
}
