package publisher

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
)

const (
	contentNamespace = "http://purl.org/rss/1.0/modules/content/"
	dcNamespace      = "http://purl.org/dc/elements/1.1/"
	generatorName    = "unfurl"
)

type rssDocument struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	ContentNS string     `xml:"xmlns:content,attr"`
	DCNS      string     `xml:"xmlns:dc,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Generator     string    `xml:"generator"`
	TTL           int       `xml:"ttl,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	GUID        rssGUID       `xml:"guid"`
	PubDate     string        `xml:"pubDate"`
	Description string        `xml:"description,omitempty"`
	Content     string        `xml:"content:encoded,omitempty"`
	Creator     string        `xml:"dc:creator,omitempty"`
	Source      *rssSource    `xml:"source,omitempty"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
	Categories  []string      `xml:"category"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssSource struct {
	URL  string `xml:"url,attr"`
	Name string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length int    `xml:"length,attr"`
}

// channelInfo is the channel-level block for one rendered document.
type channelInfo struct {
	Title       string
	Link        string
	Description string
	TTL         time.Duration
	BuiltAt     time.Time
}

// render writes an RSS 2.0 document for articles in the given order.
func render(ch channelInfo, articles []*domain.Article) ([]byte, error) {
	doc := rssDocument{
		Version:   "2.0",
		ContentNS: contentNamespace,
		DCNS:      dcNamespace,
		Channel: rssChannel{
			Title:         ch.Title,
			Link:          ch.Link,
			Description:   ch.Description,
			Language:      "en-us",
			LastBuildDate: ch.BuiltAt.UTC().Format(time.RFC1123Z),
			Generator:     generatorName,
			TTL:           int(ch.TTL.Minutes()),
			Items:         make([]rssItem, 0, len(articles)),
		},
	}

	for _, a := range articles {
		doc.Channel.Items = append(doc.Channel.Items, toItem(a))
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode rss: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func toItem(a *domain.Article) rssItem {
	link := a.URL()
	item := rssItem{
		Title:       a.DisplayTitle(),
		Link:        link,
		GUID:        rssGUID{IsPermaLink: true, Value: link},
		PubDate:     publishedAt(a).UTC().Format(time.RFC1123Z),
		Description: a.DisplayDescription(),
		Content:     a.ArticleContent,
		Creator:     a.Author,
		Categories:  categories(a),
	}

	if a.SourceName != "" {
		item.Source = &rssSource{URL: sourceURL(a), Name: a.SourceName}
	}
	if image := a.Image(); image != "" {
		item.Enclosure = &rssEnclosure{URL: image, Type: imageType(image)}
	}
	return item
}

func publishedAt(a *domain.Article) time.Time {
	if a.SourcePublishedAt != nil && !a.SourcePublishedAt.IsZero() {
		return *a.SourcePublishedAt
	}
	return a.CreatedAt
}

// sourceURL prefers og:url over the final URL for the <source> element.
func sourceURL(a *domain.Article) string {
	if a.OGURL != "" {
		return a.OGURL
	}
	return a.URL()
}

// categories returns the feed topic followed by the extracted categories,
// dropping case-insensitive repeats.
func categories(a *domain.Article) []string {
	out := make([]string, 0, len(a.Categories)+1)
	seen := make(map[string]struct{}, len(a.Categories)+1)
	add := func(label string) {
		label = strings.TrimSpace(label)
		if label == "" {
			return
		}
		key := strings.ToLower(label)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, label)
	}

	add(a.Topic)
	for _, c := range a.Categories {
		add(c)
	}
	return out
}

func imageType(imageURL string) string {
	p := imageURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	default:
		return "image/jpeg"
	}
}
