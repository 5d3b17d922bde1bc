package extractor

import (
	"bytes"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
)

// MinBodyLength is the collapsed text length, in characters, a body candidate must exceed.
const MinBodyLength = 100

// bodySelectors are tried in order; the first match with enough text wins.
var bodySelectors = []string{
	"article",
	"[itemprop='articleBody']",
	".article-body, .article-content, .article__body, .entry-content, .post-content, .story-body, .content-body, #article-body",
	"main",
}

// Extract derives metadata from a parsed page. Missing fields stay empty.
// Script, style and noscript elements are removed from doc.
func Extract(doc *goquery.Document) domain.ArticleMetadata {
	meta := domain.ArticleMetadata{
		OGTitle:       metaContent(doc, "og:title"),
		OGDescription: metaContent(doc, "og:description"),
		OGImage:       metaContent(doc, "og:image"),
		OGURL:         metaContent(doc, "og:url"),
		OGSiteName:    metaContent(doc, "og:site_name"),
		TwitterImage:  metaContent(doc, "twitter:image", "twitter:image:src"),
		Author:        metaContent(doc, "author", "article:author", "parsely-author", "sailthru.author"),
		PageTitle:     CollapseWhitespace(doc.Find("title").First().Text()),
		Categories:    extractCategories(doc),
	}

	doc.Find("script, style, noscript, template").Remove()

	meta.ArticleContent = extractBody(doc)
	meta.WordCount = WordCount(meta.ArticleContent)
	return meta
}

// metaContent returns the first non-empty content of a meta tag matching any
// of keys by property or name.
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		selector := "meta[property='" + key + "'], meta[name='" + key + "']"
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = CollapseWhitespace(s.AttrOr("content", ""))
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func longEnough(text string) bool {
	return utf8.RuneCountInString(text) > MinBodyLength
}

func extractBody(doc *goquery.Document) string {
	for _, selector := range bodySelectors {
		var body string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := CollapseWhitespace(s.Text())
			if longEnough(text) {
				body = text
				return false
			}
			return true
		})
		if body != "" {
			return body
		}
	}
	return ""
}

// extractCategories reads keywords, news_keywords and article:tag meta tags,
// keeping first occurrences and dropping case-insensitive duplicates.
func extractCategories(doc *goquery.Document) domain.Categories {
	categories := domain.Categories{}
	seen := make(map[string]struct{})

	add := func(raw string) {
		for _, part := range strings.Split(raw, ",") {
			label := CollapseWhitespace(part)
			if label == "" {
				continue
			}
			key := strings.ToLower(label)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			categories = append(categories, label)
		}
	}

	doc.Find("meta[name='keywords'], meta[name='news_keywords'], meta[property='article:tag']").
		Each(func(_ int, s *goquery.Selection) {
			add(s.AttrOr("content", ""))
		})

	return categories
}

// CollapseWhitespace replaces every whitespace run with one space and trims.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WordCount counts whitespace-separated tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// applyReadability fills body text, and the title when missing, from a
// readability pass over the raw page. Failures leave meta unchanged.
func applyReadability(meta *domain.ArticleMetadata, html []byte, pageURL *url.URL) {
	if len(bytes.TrimSpace(html)) == 0 || pageURL == nil {
		return
	}

	article, err := readability.FromReader(bytes.NewReader(html), pageURL)
	if err != nil {
		return
	}

	text := CollapseWhitespace(article.TextContent)
	if longEnough(text) {
		meta.ArticleContent = text
		meta.WordCount = WordCount(text)
	}
	if meta.PageTitle == "" {
		meta.PageTitle = CollapseWhitespace(article.Title)
	}
}
