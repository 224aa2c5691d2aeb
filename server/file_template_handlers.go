package server

import (
	"embed"
	"html/template"
)

//go:embed templates/*
var templateFiles embed.FS

var templateFS = mustSub(templateFiles, "templates")

const layoutTemplate = "layout.html"

// ParseTemplate parses a page together with the shared layout. The page
// defines the "title" and "content" blocks the layout renders.
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(layoutTemplate).ParseFS(templateFS, layoutTemplate, name)
}
