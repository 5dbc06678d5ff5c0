// ABOUTME: Embedded static assets for the web UI
// ABOUTME: Single-page UI served from the binary, no build step

package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// Embedded tree is fixed at compile time; failing here means a
		// broken build.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
