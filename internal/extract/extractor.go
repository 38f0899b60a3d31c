package extract

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pageguard/internal/logger"
	"pageguard/pkg/model"
)

// maxBodyText caps the normalized body text to keep requests small.
const maxBodyText = 500

// Page is one observable snapshot of a live page.
type Page struct {
	URL   string
	Title string
	HTML  string
}

// SearchMemory persists and recalls the durable search context.
type SearchMemory interface {
	SaveSearch(ctx context.Context, query string, now int64) error
	RecallSearch(ctx context.Context, now int64) (string, bool)
}

// Extractor turns a page snapshot into a submittable content summary, a
// short-form flag, or "no data".
type Extractor struct {
	mem SearchMemory
	log logger.Logger
	now func() time.Time
}

func New(mem SearchMemory, l logger.Logger) *Extractor {
	if l == nil {
		l = logger.NewNop()
	}
	return &Extractor{mem: mem, log: l, now: time.Now}
}

// Extract classifies the snapshot by URL shape and reads content
// accordingly. Recognized short-form shapes short-circuit without reading
// the document at all.
func (e *Extractor) Extract(ctx context.Context, p Page) model.Extraction {
	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return model.Extraction{Kind: model.ExtractNone}
	}
	if IsShortForm(p.URL) {
		return model.Extraction{Kind: model.ExtractShortForm, Summary: model.ShortFormFlag(p.URL)}
	}

	query := normalize(searchQueryOf(u))
	if query != "" && e.mem != nil {
		if err := e.mem.SaveSearch(ctx, query, e.now().UnixMilli()); err != nil {
			e.log.Warn("search context not persisted", "error", err)
		}
	}

	sum := model.PageSummary{URL: p.URL, SearchQuery: query}
	doc := parseDoc(p.HTML)

	if isWatch(u) {
		title := firstStrategy(doc, watchStrategies)
		if title == "" {
			// a watch page without real content is flicker, not data
			return model.Extraction{Kind: model.ExtractNone}
		}
		sum.Title = title
		sum.H1 = title
		sum.Description = metaDescription(doc)
	} else {
		sum.Title = normalize(p.Title)
		if sum.Title == "" && doc != nil {
			sum.Title = normalize(doc.Find("title").First().Text())
		}
		sum.Description = metaDescription(doc)
		sum.Keywords = metaContent(doc, `meta[name="keywords"]`)
		if query == "" && doc != nil {
			sum.H1 = normalize(doc.Find("h1").First().Text())
		}
		if query == "" {
			// the query stands in for page body content on search pages
			sum.BodyText = capText(bodyText(doc), maxBodyText)
		}
	}

	if sum.SearchQuery == "" && query == "" && e.mem != nil {
		if q, ok := e.mem.RecallSearch(ctx, e.now().UnixMilli()); ok {
			sum.SearchQuery = q
		}
	}

	if !sum.Submittable() {
		return model.Extraction{Kind: model.ExtractNone}
	}
	return model.Extraction{Kind: model.ExtractPage, Summary: sum}
}

func parseDoc(html string) *goquery.Document {
	if html == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	return doc
}

func firstStrategy(doc *goquery.Document, list []strategy) string {
	if doc == nil {
		return ""
	}
	for _, s := range list {
		sel := doc.Find(s.Selector).First()
		var v string
		if s.Attr == "" {
			v = sel.Text()
		} else {
			v = sel.AttrOr(s.Attr, "")
		}
		v = normalize(v)
		if !isPlaceholder(v) {
			return v
		}
	}
	return ""
}

func metaDescription(doc *goquery.Document) string {
	if v := metaContent(doc, `meta[name="description"]`); v != "" {
		return v
	}
	return metaContent(doc, `meta[property="og:description"]`)
}

func metaContent(doc *goquery.Document, selector string) string {
	if doc == nil {
		return ""
	}
	return normalize(doc.Find(selector).First().AttrOr("content", ""))
}

func bodyText(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	return normalize(doc.Find("body").Text())
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func capText(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
