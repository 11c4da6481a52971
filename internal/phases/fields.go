package phases

import (
	"bytes"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FieldExtractor pulls structured fields out of an HTML page: the title,
// the meta description, any configured CSS selectors and which keywords
// appear in the body.
type FieldExtractor struct {
	selectors map[string]string
	keywords  []string
}

// NewFieldExtractor builds an extractor. selectors maps field name to CSS
// selector; keywords are matched case-insensitively against the page text.
func NewFieldExtractor(selectors map[string]string, keywords []string) *FieldExtractor {
	lower := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lower = append(lower, kw)
		}
	}
	return &FieldExtractor{selectors: selectors, keywords: lower}
}

// Extract returns the fields found in body. A body that is not HTML yields
// no fields.
func (x *FieldExtractor) Extract(body []byte) map[string]string {
	if x == nil || len(body) == 0 {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	fields := make(map[string]string)
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		fields["title"] = title
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok && strings.TrimSpace(desc) != "" {
		fields["description"] = strings.TrimSpace(desc)
	}
	for name, sel := range x.selectors {
		if sel == "" {
			continue
		}
		if text := collapse(doc.Find(sel).First().Text()); text != "" {
			fields[name] = text
		}
	}
	if len(x.keywords) > 0 {
		text := strings.ToLower(doc.Find("body").Text())
		hits := make([]string, 0, len(x.keywords))
		for _, kw := range x.keywords {
			if strings.Contains(text, kw) {
				hits = append(hits, kw)
			}
		}
		if len(hits) > 0 {
			sort.Strings(hits)
			fields["keywords"] = strings.Join(hits, ",")
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
