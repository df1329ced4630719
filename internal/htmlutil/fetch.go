package htmlutil

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/everstacklabs/modelprice/internal/httpclient"
)

// Fetch performs an HTTP GET through the shared client and returns
// the parsed HTML document.
func Fetch(ctx context.Context, client *httpclient.Client, url string) (*goquery.Document, error) {
	resp, err := client.Get(ctx, url, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	doc, err := Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML from %s: %w", url, err)
	}
	return doc, nil
}

// Parse builds a document from raw HTML.
func Parse(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}
