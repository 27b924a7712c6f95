package extraction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	FetchTimeout     = 30 * time.Second
	MaxContentLength = 12000

	maxPageBytes = 10 * 1024 * 1024

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

var strippedElements = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Nav:    true,
	atom.Header: true,
	atom.Footer: true,
	atom.Aside:  true,
	atom.Iframe: true,
}

func DefaultFetchClient() *http.Client {
	return &http.Client{
		Timeout: FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// FetchPage downloads url and returns its visible text. Pages answering with
// anything but 200 yield empty text rather than an error.
func FetchPage(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		slog.Warn("scheme page returned non 200 status", "url", url, "status", res.StatusCode)
		return "", nil
	}

	text, err := VisibleText(io.LimitReader(res.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	return CleanContent(text), nil
}

// VisibleText extracts the text of an html document, skipping scripts,
// styles and page chrome.
func VisibleText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("error parsing html: %w", err)
	}

	parts := make([]string, 0)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strippedElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(parts, " "), nil
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	noiseWords = regexp.MustCompile(`(?i)(Cookie|Privacy|Terms|Menu|Navigation|Skip to content)`)
)

func CleanContent(content string) string {
	content = whitespace.ReplaceAllString(content, " ")
	content = noiseWords.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}

// Truncate limits content to MaxContentLength characters.
func Truncate(content string) string {
	runes := []rune(content)
	if len(runes) <= MaxContentLength {
		return content
	}
	return string(runes[:MaxContentLength])
}
