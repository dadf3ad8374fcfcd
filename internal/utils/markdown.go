package utils

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	policy = bluemonday.UGCPolicy()
)

func init() {
	// Allow images
	policy.AllowImages()
	// Force links to open in new tab
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnLinks(true)
}

// SanitizeHTML strips anything outside the UGC policy. All stored post content passes through here.
func SanitizeHTML(source string) string {
	return policy.Sanitize(source)
}

// MarkdownToHTML renders markdown and sanitises the output.
func MarkdownToHTML(source string) string {
	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		return SanitizeHTML(source)
	}
	return string(policy.SanitizeBytes(buf.Bytes()))
}

// RenderContent prepares stored (already sanitised) HTML for the thread view.
func RenderContent(stored string) template.HTML {
	return EnhanceHTMLContent(SanitizeHTML(stored))
}
