package dataflows

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const duckDuckGoHTMLEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoClient scrapes the DuckDuckGo HTML results page.
type DuckDuckGoClient struct {
	client   *resty.Client
	endpoint string
	retry    *RetryConfig
}

// NewDuckDuckGoClient creates a search client. An empty endpoint selects the
// public DuckDuckGo HTML page.
func NewDuckDuckGoClient(endpoint string, timeout time.Duration) *DuckDuckGoClient {
	if endpoint == "" {
		endpoint = duckDuckGoHTMLEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; TickerGo/1.0)")

	return &DuckDuckGoClient{
		client:   client,
		endpoint: endpoint,
		retry:    DefaultRetryConfig(),
	}
}

func (d *DuckDuckGoClient) Name() string { return "duckduckgo" }

// Search returns at most max organic results for query in page order.
func (d *DuckDuckGoClient) Search(ctx context.Context, query string, max int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	var result []SearchHit
	err := WithRetry(ctx, d.retry, func() error {
		resp, err := d.client.R().
			SetContext(ctx).
			SetQueryParam("q", query).
			Get(d.endpoint)
		if err != nil {
			return fmt.Errorf("failed to fetch search results: %w", err)
		}

		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("HTTP error %d when fetching search results", resp.StatusCode())
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
		if err != nil {
			return Permanent(fmt.Errorf("failed to parse HTML: %w", err))
		}

		result = parseDuckDuckGoHTML(doc, max)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// parseDuckDuckGoHTML extracts organic results, skipping sponsored entries.
func parseDuckDuckGoHTML(doc *goquery.Document, max int) []SearchHit {
	hits := make([]SearchHit, 0, max)

	doc.Find("div.result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if max > 0 && len(hits) >= max {
			return false
		}
		if s.HasClass("result--ad") {
			return true
		}

		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")

		hits = append(hits, SearchHit{
			Title:   title,
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
			URL:     cleanDuckDuckGoURL(href),
		})
		return true
	})

	return hits
}

// cleanDuckDuckGoURL removes the /l/?uddg= redirect wrapper.
func cleanDuckDuckGoURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Host == "" && strings.HasPrefix(href, "/") {
		return "https://duckduckgo.com" + href
	}
	return href
}
