package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFiles embed.FS

func staticFS() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	publicLayout = "templates/layout.html"
	adminLayout  = "templates/admin/layout.html"
	vehicleForm  = "templates/admin/vehicle_form.html"
)

// pageFiles maps a page name to its layout and content files.
var pageFiles = map[string][]string{
	"index":                    {publicLayout, "templates/index.html"},
	"inventory/index":          {publicLayout, "templates/inventory/index.html"},
	"inventory/show":           {publicLayout, "templates/inventory/show.html"},
	"about":                    {publicLayout, "templates/about.html"},
	"contact":                  {publicLayout, "templates/contact.html"},
	"access":                   {publicLayout, "templates/access.html"},
	"404":                      {publicLayout, "templates/404.html"},
	"error":                    {publicLayout, "templates/error.html"},
	"admin/login":              {publicLayout, "templates/admin/login.html"},
	"admin/index":              {adminLayout, "templates/admin/index.html"},
	"admin/new":                {adminLayout, vehicleForm, "templates/admin/new.html"},
	"admin/edit":               {adminLayout, vehicleForm, "templates/admin/edit.html"},
	"admin/users":              {adminLayout, "templates/admin/users.html"},
	"admin/announcements":      {adminLayout, "templates/admin/announcements.html"},
	"admin/announcements/edit": {adminLayout, "templates/admin/announcement_edit.html"},
}

var funcs = template.FuncMap{
	// price is stored in units of 10,000 yen.
	"man": func(price int) string {
		return fmt.Sprintf("%s万円", thousands(price))
	},
	"km": func(mileage int) string {
		return thousands(mileage) + "km"
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.In(jst).Format("2006/01/02")
	},
	"lines": func(items []string) string {
		return strings.Join(items, "\n")
	},
	"list": func(items ...string) []string { return items },
}

var jst = time.FixedZone("JST", 9*60*60)

func thousands(n int) string {
	s := fmt.Sprint(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// pages is a gin HTML renderer with one template set per page, each
// executed through its layout.
type pages map[string]*template.Template

func loadPages() (pages, error) {
	p := make(pages, len(pageFiles))
	for name, files := range pageFiles {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		p[name] = t
	}
	return p, nil
}

func (p pages) Instance(name string, data any) render.Render {
	t, ok := p[name]
	if !ok {
		t = p["error"]
		data = gin.H{"title": "エラー", "message": "テンプレートが見つかりません: " + name}
	}
	return render.HTML{Template: t, Name: "layout", Data: data}
}

func (s *Server) notFound(c *gin.Context, title, description string) {
	c.HTML(http.StatusNotFound, "404", gin.H{"title": title, "description": description})
}

// fail logs err and renders the generic error page.
func (s *Server) fail(c *gin.Context, err error, message string) {
	_ = c.Error(err)
	s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	c.HTML(http.StatusInternalServerError, "error", gin.H{
		"title":       "エラー",
		"description": "システムエラーが発生しました",
		"message":     message,
	})
}
