package htmlutil

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Rows extracts header→value maps from a single table selection. Headers
// come from <thead> or, failing that, the first row.
func Rows(table *goquery.Selection) []map[string]string {
	if table.Length() == 0 {
		return nil
	}

	// Extract headers from <thead> or first <tr>.
	var headers []string
	thead := table.Find("thead tr").First()
	if thead.Length() > 0 {
		thead.Find("th").Each(func(_ int, s *goquery.Selection) {
			headers = append(headers, normalizeHeader(s.Text()))
		})
	}

	// The HTML parser inserts <tbody> itself, so a table without <thead>
	// carries its header as the first body row.
	bodyRows := table.Find("tbody tr")
	if bodyRows.Length() == 0 {
		bodyRows = table.Find("tr")
	}
	if len(headers) == 0 {
		if bodyRows.Length() < 2 {
			return nil
		}
		bodyRows.First().Find("th, td").Each(func(_ int, s *goquery.Selection) {
			headers = append(headers, normalizeHeader(s.Text()))
		})
		bodyRows = bodyRows.Slice(1, bodyRows.Length())
	}

	if len(headers) == 0 {
		return nil
	}

	var rows []map[string]string
	bodyRows.Each(func(_ int, row *goquery.Selection) {
		m := make(map[string]string, len(headers))
		row.Find("th, td").Each(func(i int, cell *goquery.Selection) {
			if i < len(headers) {
				m[headers[i]] = strings.TrimSpace(cell.Text())
			}
		})
		if len(m) > 0 {
			rows = append(rows, m)
		}
	})

	return rows
}

// priceRe matches patterns like "$0.150", "$0.150 / 1M tokens", "$15.00 / 1M".
var priceRe = regexp.MustCompile(`\$\s*([\d,.]+)`)

// ParsePricePerMillion parses a price string like "$0.150 / 1M tokens" and
// returns USD per million tokens. Prices quoted per 1K are scaled up; prices
// with no unit are taken as already per million. Returns (0, false) if parsing fails.
func ParsePricePerMillion(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "—" || s == "-" || s == "N/A" {
		return 0, false
	}

	matches := priceRe.FindStringSubmatch(s)
	if len(matches) < 2 {
		return 0, false
	}

	numStr := strings.ReplaceAll(matches[1], ",", "")
	val, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, false
	}

	lower := strings.ToLower(s)
	if strings.Contains(lower, "1k") || strings.Contains(lower, "thousand") {
		val *= 1000
	}

	return val, true
}

var tokenCountRe = regexp.MustCompile(`(?i)([\d,.]+)\s*([km]?)`)

// ParseTokenCount parses token limits like "128K", "1M", or "200,000".
func ParseTokenCount(s string) (int, bool) {
	matches := tokenCountRe.FindStringSubmatch(strings.TrimSpace(s))
	if len(matches) < 3 {
		return 0, false
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(matches[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(matches[2]) {
	case "k":
		val *= 1_000
	case "m":
		val *= 1_000_000
	}
	if val <= 0 {
		return 0, false
	}
	return int(val), true
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
