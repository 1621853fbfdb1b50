// Package excel reads prospect spreadsheets and writes result workbooks.
package excel

import (
	"fmt"
	"io"
	"strings"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/pkg/errors"
	"github.com/thoas/go-funk"
	"github.com/xuri/excelize/v2"
)

var (
	ErrNoDataRows      = errors.New("spreadsheet must have a header row and at least one data row")
	ErrNoCompanyColumn = errors.New("could not find a company name column")
)

const (
	fieldCompany  = "company_name"
	fieldIndustry = "industry"
	fieldWebsite  = "website_url"
	fieldContact  = "contact_name"
	fieldTitle    = "contact_title"
)

// columnAliases are matched case-insensitively against the header row.
var columnAliases = map[string][]string{
	fieldCompany:  {"company name", "company", "account name", "account", "organization"},
	fieldIndustry: {"industry", "vertical", "sector"},
	fieldWebsite:  {"website url", "website", "url", "domain", "company url", "web"},
	fieldContact:  {"contact name", "contact", "name", "full name", "first name"},
	fieldTitle:    {"contact title", "title", "job title", "role", "position"},
}

var fieldOrder = []string{fieldCompany, fieldIndustry, fieldWebsite, fieldContact, fieldTitle}

// ParseProspects reads the first sheet. Row indexes are the 1-based sheet row
// numbers, so the first data row is 2. Rows without a company are skipped and
// unmapped columns are folded into the extra context.
func ParseProspects(r io.Reader) ([]domain.Prospect, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening spreadsheet")
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %q", sheet)
	}
	if len(rows) < 2 {
		return nil, ErrNoDataRows
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	columns := mapColumns(headers)
	companyCol, ok := columns[fieldCompany]
	if !ok {
		return nil, errors.Wrapf(ErrNoCompanyColumn, "found headers %v, expected one of %v", headers, columnAliases[fieldCompany])
	}

	mapped := funk.Values(columns).([]int)
	var extra []int
	for i, h := range headers {
		if h != "" && !funk.ContainsInt(mapped, i) {
			extra = append(extra, i)
		}
	}

	var prospects []domain.Prospect
	for i, row := range rows[1:] {
		company := cell(row, companyCol)
		if company == "" {
			continue
		}

		var extraParts []string
		for _, ei := range extra {
			if v := cell(row, ei); v != "" {
				extraParts = append(extraParts, fmt.Sprintf("%s: %s", headers[ei], v))
			}
		}

		prospects = append(prospects, domain.Prospect{
			RowIndex:     i + 2,
			CompanyName:  company,
			Industry:     cellOf(row, columns, fieldIndustry),
			WebsiteURL:   cellOf(row, columns, fieldWebsite),
			ContactName:  cellOf(row, columns, fieldContact),
			ContactTitle: cellOf(row, columns, fieldTitle),
			ExtraContext: strings.Join(extraParts, "; "),
		})
	}
	if len(prospects) == 0 {
		return nil, ErrNoDataRows
	}
	return prospects, nil
}

// mapColumns assigns each field the first header matching one of its aliases.
func mapColumns(headers []string) map[string]int {
	columns := map[string]int{}
	for _, field := range fieldOrder {
		for i, h := range headers {
			if funk.ContainsString(columnAliases[field], strings.ToLower(h)) {
				columns[field] = i
				break
			}
		}
	}
	return columns
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func cellOf(row []string, columns map[string]int, field string) string {
	idx, ok := columns[field]
	if !ok {
		return ""
	}
	return cell(row, idx)
}
