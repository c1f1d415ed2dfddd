package server

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParsePage parses the shared layout together with one page template from
// the embedded filesystem. Handlers call this once at construction.
func ParsePage(name string) (*template.Template, error) {
	return template.New("layout.html").ParseFS(TemplateFilesFS(), "layout.html", name)
}

// MustParsePage is ParsePage for handler factories, where a missing
// template is a programming error.
func MustParsePage(name string) *template.Template {
	tmpl, err := ParsePage(name)
	if err != nil {
		panic("Failed to parse template " + name + ": " + err.Error())
	}
	return tmpl
}
