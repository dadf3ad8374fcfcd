// Package web holds the server-rendered templates.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"time"

	"reviewhub/internal/utils"

	"github.com/gin-contrib/multitemplate"
)

//go:embed templates
var files embed.FS

const layout = "templates/layouts/base.html"

// 视图名 -> 模板文件
var views = map[string]string{
	"thread.html": "templates/views/thread.html",
	"error.html":  "templates/views/error.html",
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"mul": func(a, b int) int {
			return a * b
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"renderContent": utils.RenderContent,
		"timeAgo":       timeAgo,
	}
}

func timeAgo(t time.Time) string {
	seconds := int(time.Since(t).Seconds())
	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh ago", seconds/3600)
	case seconds < 2592000:
		return fmt.Sprintf("%dd ago", seconds/86400)
	case seconds < 31536000:
		return fmt.Sprintf("%dmo ago", seconds/2592000)
	}
	return fmt.Sprintf("%dy ago", seconds/31536000)
}

// Templates builds the renderer for gin's HTMLRender. Each view is parsed together
// with the base layout, which is the template executed.
func Templates() (multitemplate.Renderer, error) {
	return load(files)
}

func load(fsys fs.FS) (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()
	for name, view := range views {
		tmpl, err := template.New(path.Base(layout)).Funcs(funcMap()).ParseFS(fsys, layout, view)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.Add(name, tmpl)
	}
	return r, nil
}
