package collector

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

var (
	// <e type="hashtag" hid="1" title="%23tag%23" />, title is url encoded.
	entityRegex = regexp.MustCompile(`<e\s[^>]*?title="([^"]*)"[^>]*?/?>`)
	// Any other <e .../> carries nothing worth keeping.
	bareEntityRegex = regexp.MustCompile(`<e\s[^>]*?/?>`)
	groupUrlRegex   = regexp.MustCompile(`/group/([0-9]+)`)
	// Tags the zsxq web editor emits. A "<" outside of these is literal text,
	// e.g. "P/E<PB".
	markupTagRegex = regexp.MustCompile(`(?i)</?(?:br|p|div|span|a|b|i|u|s|strong|em|img|ul|ol|li|blockquote|h[1-6])(?:\s[^<>]*)?/?>`)
)

func HtmlToText(html string) (string, error) {
	reader := strings.NewReader(html)
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return "", errors.Wrapf(err, "fail to convert full rich-html text to node: %v", html)
	}
	// goquery Text() will not replace br with newline
	doc.Find("br").AfterHtml("\n")
	return doc.Text(), nil
}

// escapeStrayLessThan escapes every "<" that does not open a known markup tag,
// so the html parser keeps it as text instead of swallowing the rest.
func escapeStrayLessThan(text string, tags [][]int) string {
	var b strings.Builder
	last := 0
	for _, loc := range tags {
		b.WriteString(strings.ReplaceAll(text[last:loc[0]], "<", "&lt;"))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(strings.ReplaceAll(text[last:], "<", "&lt;"))
	return b.String()
}

// RenderRichText turns zsxq inline entities into their display title and
// strips known markup tags. Text without markup passes through untouched.
func RenderRichText(text string) string {
	if !strings.Contains(text, "<") {
		return text
	}
	rendered := entityRegex.ReplaceAllStringFunc(text, func(entity string) string {
		match := entityRegex.FindStringSubmatch(entity)
		title, err := url.QueryUnescape(match[1])
		if err != nil {
			return match[1]
		}
		return title
	})
	rendered = bareEntityRegex.ReplaceAllString(rendered, "")
	tags := markupTagRegex.FindAllStringIndex(rendered, -1)
	if len(tags) == 0 {
		return rendered
	}
	plain, err := HtmlToText(escapeStrayLessThan(rendered, tags))
	if err != nil {
		Logger.Log.Warnf("keep raw text, fail to parse rich text: %v", err)
		return rendered
	}
	return plain
}

// ExtractGroupIdFromUrl accepts both https://wx.zsxq.com/dweb2/index/group/<id>
// and https://wx.zsxq.com/group/<id>.
func ExtractGroupIdFromUrl(groupUrl string) (string, bool) {
	match := groupUrlRegex.FindStringSubmatch(groupUrl)
	if match == nil {
		return "", false
	}
	return match[1], true
}
