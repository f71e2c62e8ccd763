package marketwatch

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/jsamuelsen/stockquote-service/internal/domain"
)

// Page selectors. All page-shape knowledge lives here.
const (
	selCompanyName     = "h1.company__name"
	selCompetitorRows  = "div.Competitors tr.table__row"
	selCompetitorName  = "td.w50"
	selCompetitorCap   = "td.w25.number"
	selPerformanceRows = "div.performance tr.table__row"
	selPerformanceName = "td.table__cell"
	selPerformanceVal  = "li.value"
)

// Page is what the parser extracts from a stock page.
type Page struct {
	CompanyName string
	Competitors []domain.Competitor
	Performance *domain.Performance

	// Skipped lists rows dropped because a field was missing or unparseable.
	Skipped []string
}

// ParsePage extracts company, competitor and performance data.
// A page without a company name is not a stock page and fails with ErrPageShape.
// Individual rows that do not match the schema are skipped, never zero-filled.
func ParsePage(r io.Reader, defaultCurrency string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}

	name := cleanText(doc.Find(selCompanyName).First())
	if name == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrPageShape, selCompanyName)
	}

	page := &Page{CompanyName: name, Competitors: []domain.Competitor{}}
	page.parseCompetitors(doc, defaultCurrency)
	page.parsePerformance(doc)

	return page, nil
}

func (p *Page) parseCompetitors(doc *goquery.Document, defaultCurrency string) {
	doc.Find(selCompetitorRows).Each(func(i int, row *goquery.Selection) {
		name := cleanText(row.Find(selCompetitorName).First())
		if name == "" {
			p.skip("competitor row %d: missing name", i)
			return
		}

		capCell := row.Find(selCompetitorCap).First()
		if capCell.Length() == 0 {
			p.skip("competitor %q: missing market cap", name)
			return
		}

		mc, err := ParseMarketCap(cleanText(capCell), defaultCurrency)
		if err != nil {
			p.skip("competitor %q: %v", name, err)
			return
		}

		p.Competitors = append(p.Competitors, domain.Competitor{Name: name, MarketCap: mc})
	})
}

func (p *Page) parsePerformance(doc *goquery.Document) {
	perf := &domain.Performance{}

	doc.Find(selPerformanceRows).Each(func(_ int, row *goquery.Selection) {
		period := cleanText(row.Find(selPerformanceName).First())
		raw := strings.TrimSuffix(cleanText(row.Find(selPerformanceVal).First()), "%")

		value, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
		if err != nil {
			p.skip("performance %q: %q is not a percentage", period, raw)
			return
		}

		switch {
		case strings.Contains(period, "5 Day"):
			perf.FiveDay = &value
		case strings.Contains(period, "1 Month"):
			perf.OneMonth = &value
		case strings.Contains(period, "3 Month"):
			perf.ThreeMonth = &value
		case strings.Contains(period, "YTD"):
			perf.YearToDate = &value
		case strings.Contains(period, "1 Year"):
			perf.OneYear = &value
		}
	})

	if !perf.IsEmpty() {
		p.Performance = perf
	}
}

func (p *Page) skip(format string, args ...any) {
	p.Skipped = append(p.Skipped, fmt.Sprintf(format, args...))
}

// cleanText returns the selection's text with whitespace runs collapsed.
func cleanText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
