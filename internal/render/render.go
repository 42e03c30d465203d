// Package render turns a check event into the message text sent to the
// channel. Templates are named after the event kind ("down.tmpl") and are
// read from an fs.FS on every render, so an override directory can be edited
// without restarting the daemon.
package render

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Fullex26/uptimegram/pkg/models"
)

const templateExt = ".tmpl"

// ErrTemplateNotFound is returned when no template exists for an event kind
var ErrTemplateNotFound = errors.New("template not found")

//go:embed templates/*.tmpl
var embedded embed.FS

// Data is the read-only context a template is executed with
type Data struct {
	Check      models.Check
	CheckEvent models.CheckEvent
	URL        string // base URL for dashboard links
}

// Renderer produces the message body for an event
type Renderer interface {
	Render(kind models.EventKind, data Data) (string, error)
}

// Templates renders text/template files from a filesystem
type Templates struct {
	fsys fs.FS
}

// New creates a renderer reading "<kind>.tmpl" files from the root of fsys
func New(fsys fs.FS) *Templates {
	return &Templates{fsys: fsys}
}

// Default returns a renderer over the built-in templates
func Default() *Templates {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err) // embedded path is fixed at compile time
	}
	return New(sub)
}

// Dir returns a renderer that prefers templates in dir and falls back to the
// built-in ones for kinds dir does not cover.
func Dir(dir string) (*Templates, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("template directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template directory: %s is not a directory", dir)
	}
	return New(overlay{os.DirFS(dir), Default().fsys}), nil
}

// TemplateName returns the file name holding the template for kind
func TemplateName(kind models.EventKind) string {
	return string(kind) + templateExt
}

// Render executes the template for kind
func (t *Templates) Render(kind models.EventKind, data Data) (string, error) {
	name := TemplateName(kind)
	src, err := fs.ReadFile(t.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", name, ErrTemplateNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}

	tmpl, err := template.New(name).Funcs(Funcs()).Parse(string(src))
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", name, err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("executing %s: %w", name, err)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%s rendered an empty message", name)
	}
	return text, nil
}

// Funcs returns the helpers available to every template
func Funcs() template.FuncMap {
	return template.FuncMap{
		"date":     formatDate,
		"longDate": LongDate,
		"ago":      humanize.Time,
		"duration": Duration,
	}
}

func formatDate(layout string, t time.Time) string {
	return t.Format(layout)
}

// LongDate formats t like "Thursday, September 4th 1986 8:30 PM"
func LongDate(t time.Time) string {
	return t.Format("Monday, January ") + humanize.Ordinal(t.Day()) + t.Format(" 2006 3:04 PM")
}

// Duration formats d as a rough human span, e.g. "3 minutes"
func Duration(d time.Duration) string {
	if d <= 0 {
		return "a moment"
	}
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now.Add(-d), now, "", ""))
}

// overlay serves each file from the first filesystem that has it
type overlay []fs.FS

func (o overlay) Open(name string) (fs.File, error) {
	for _, fsys := range o {
		f, err := fsys.Open(name)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
