package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/fortuna/matatena/internal/store"
)

//go:embed templates/*.html templates/style.css
var templateFiles embed.FS

// IndexView feeds index.html
type IndexView struct {
	Username string
	Notice   string
}

// ProcessingView feeds processing.html
type ProcessingView struct {
	Username   string
	RetryURL   string
	StatusPath string
}

// CollectionView feeds collection.html. A non-empty InlineCSS renders the
// standalone print variant without forms or pagination.
type CollectionView struct {
	Username   string
	Games      []store.GameRecord
	Page       int
	TotalPages int
	TotalItems int
	InlineCSS  template.CSS
}

// HasPrev reports whether a previous page link is shown
func (v CollectionView) HasPrev() bool { return v.Page > 1 }

// HasNext reports whether a next page link is shown
func (v CollectionView) HasNext() bool { return v.Page < v.TotalPages }

// PrevPage is the previous page number
func (v CollectionView) PrevPage() int { return v.Page - 1 }

// NextPage is the next page number
func (v CollectionView) NextPage() int { return v.Page + 1 }

// Templates holds the parsed page set and the stylesheet
type Templates struct {
	set *template.Template
	css []byte
}

// NewTemplates parses the embedded templates
func NewTemplates() (*Templates, error) {
	set, err := template.New("pages").Funcs(template.FuncMap{
		"join":        func(names []string) string { return strings.Join(names, ", ") },
		"weight":      func(w float64) string { return strconv.FormatFloat(w, 'f', 2, 64) },
		"playerRange": playerRange,
	}).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	css, err := templateFiles.ReadFile("templates/style.css")
	if err != nil {
		return nil, fmt.Errorf("reading stylesheet: %w", err)
	}

	return &Templates{set: set, css: css}, nil
}

// Index renders the landing page
func (t *Templates) Index(w io.Writer, v IndexView) error {
	return t.set.ExecuteTemplate(w, "index.html", v)
}

// Processing renders the page shown while BGG prepares a collection
func (t *Templates) Processing(w io.Writer, v ProcessingView) error {
	return t.set.ExecuteTemplate(w, "processing.html", v)
}

// Collection renders a collection grid
func (t *Templates) Collection(w io.Writer, v CollectionView) error {
	return t.set.ExecuteTemplate(w, "collection.html", v)
}

// Deck renders the standalone print document for a PDF export
func (t *Templates) Deck(w io.Writer, username string, games []store.GameRecord) error {
	return t.Collection(w, CollectionView{
		Username:   username,
		Games:      games,
		Page:       1,
		TotalPages: 1,
		TotalItems: len(games),
		InlineCSS:  template.CSS(t.css),
	})
}

// StaticHandler serves the stylesheet under /static/
func (t *Templates) StaticHandler() http.Handler {
	sub, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		return http.NotFoundHandler()
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(cssOnly{sub})))
}

// cssOnly hides the template sources from the static file server
type cssOnly struct {
	fs.FS
}

func (c cssOnly) Open(name string) (fs.File, error) {
	if !strings.HasSuffix(name, ".css") {
		return nil, fs.ErrNotExist
	}
	return c.FS.Open(name)
}

func playerRange(lo, hi string) string {
	if hi == "" || hi == lo {
		return lo
	}
	return lo + "–" + hi
}
