// Package web embeds the portal's HTML views and static assets.
package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed views/*.html
var viewFS embed.FS

//go:embed static
var staticFS embed.FS

const layoutFile = "layout.html"

// ErrUnknownView is returned when rendering a view that was never parsed.
var ErrUnknownView = errors.New("web: unknown view")

// Views renders the embedded pages inside the shared layout.
type Views struct {
	pages map[string]*template.Template
}

// LoadViews parses every embedded page together with the layout.
func LoadViews() (*Views, error) {
	entries, err := fs.ReadDir(viewFS, "views")
	if err != nil {
		return nil, fmt.Errorf("web: reading views: %w", err)
	}

	v := &Views{pages: make(map[string]*template.Template)}
	for _, entry := range entries {
		file := entry.Name()
		if entry.IsDir() || file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(file, path.Ext(file))
		t, err := template.New(name).ParseFS(viewFS, "views/"+layoutFile, "views/"+file)
		if err != nil {
			return nil, fmt.Errorf("web: parsing view %s: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

// Render executes view with data into w.
func (v *Views) Render(w io.Writer, view string, data map[string]any) error {
	t, ok := v.pages[view]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownView, view)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// has reports whether view exists.
func (v *Views) has(view string) bool {
	_, ok := v.pages[view]
	return ok
}

// StaticHandler serves the embedded assets under /static/.
func StaticHandler() http.Handler {
	subFS, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(subFS)))
}
