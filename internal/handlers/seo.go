package handlers

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"reviewhub/internal/models"
	"reviewhub/internal/response"
	"reviewhub/internal/services"
	"reviewhub/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	sitemapLimit  = 500
	rssItemLimit  = 20
	rssExcerptLen = 300
)

type SEOHandler struct {
	db      *gorm.DB
	feed    *services.FeedService
	siteURL string
}

func NewSEOHandler(db *gorm.DB, feed *services.FeedService, siteURL string) *SEOHandler {
	return &SEOHandler{db: db, feed: feed, siteURL: strings.TrimRight(siteURL, "/")}
}

// RobotsTxt 返回 robots.txt
func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /p/

# API 与实时推送不需要爬取
Disallow: /api/
Disallow: /ws

Sitemap: %s/sitemap.xml
`, h.siteURL)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

// SitemapXML 列出最近更新的公开讨论页
func (h *SEOHandler) SitemapXML(c *gin.Context) {
	var posts []models.Post
	if err := h.db.WithContext(c.Request.Context()).
		Select("id", "created_at", "updated_at").
		Where("parent_id IS NULL AND is_hidden = ?", false).
		Order("updated_at DESC").
		Limit(sitemapLimit).
		Find(&posts).Error; err != nil {
		response.Fail(c, utils.NewInternalError("failed to load sitemap posts", err))
		return
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
`)
	for _, post := range posts {
		// 越新的讨论变化越频繁
		changefreq, priority := "weekly", 0.6
		if age := time.Since(post.CreatedAt); age < 7*24*time.Hour {
			changefreq, priority = "daily", 0.8
		}
		fmt.Fprintf(&b, `  <url>
    <loc>%s/p/%d</loc>
    <lastmod>%s</lastmod>
    <changefreq>%s</changefreq>
    <priority>%.1f</priority>
  </url>
`, h.siteURL, post.ID, post.UpdatedAt.Format("2006-01-02"), changefreq, priority)
	}
	b.WriteString(`</urlset>`)

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

// RSSFeed 最新讨论的 RSS 2.0 输出
func (h *SEOHandler) RSSFeed(c *gin.Context) {
	page, err := h.feed.List(c.Request.Context(), services.FeedQuery{Limit: rssItemLimit, Sort: services.SortRecent})
	if err != nil {
		response.Fail(c, err)
		return
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <title>reviewhub discussions</title>
    <link>` + h.siteURL + `</link>
    <description>Latest discussions from the reviewhub community</description>
    <language>en</language>
    <lastBuildDate>` + time.Now().Format(time.RFC1123Z) + `</lastBuildDate>
    <atom:link href="` + h.siteURL + `/feed.xml" rel="self" type="application/rss+xml"/>
`)
	for _, post := range page.Posts {
		link := fmt.Sprintf("%s/p/%d", h.siteURL, post.ID)
		title := utils.Excerpt(post.Content, 80)
		if post.Title != nil {
			title = *post.Title
		}
		author := "[deleted]"
		if post.Author != nil {
			author = post.Author.Username
		}

		b.WriteString(`    <item>
      <title>` + escapeXML(title) + `</title>
      <link>` + link + `</link>
      <description>` + escapeXML(utils.Excerpt(post.Content, rssExcerptLen)) + `</description>
      <author>` + escapeXML(author) + `</author>
      <category>` + escapeXML(string(post.Category)) + `</category>
      <pubDate>` + post.CreatedAt.Format(time.RFC1123Z) + `</pubDate>
      <guid isPermaLink="true">` + link + `</guid>
    </item>
`)
	}
	b.WriteString(`  </channel>
</rss>`)

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

// escapeXML 转义XML特殊字符
func escapeXML(s string) string {
	return html.EscapeString(s)
}
