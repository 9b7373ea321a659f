// Package web carries the page templates and browser assets compiled into
// the binaries.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

// TemplatePatterns lists the globs parsed into the view engine, layouts first.
var TemplatePatterns = []string{
	"templates/layouts/*.html",
	"templates/partials/*.html",
	"templates/pages/*.html",
}

// Templates returns the embedded template tree rooted above templates/.
func Templates() fs.FS { return templateFiles }

// Static returns the asset tree rooted at static/, ready for a file server.
func Static() (fs.FS, error) {
	return fs.Sub(staticFiles, "static")
}
