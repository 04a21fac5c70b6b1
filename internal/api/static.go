package api

import (
	"io/fs"
	"net/http"
	"strings"
)

// spaHandler serves the embedded dashboard assets.
// Unknown paths fall back to index.html so client-side routes resolve.
type spaHandler struct {
	staticFS http.Handler
	indexFS  fs.FS
}

func newSPAHandler(webFS fs.FS) (*spaHandler, error) {
	return &spaHandler{
		staticFS: http.FileServer(http.FS(webFS)),
		indexFS:  webFS,
	}, nil
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Try to serve the requested file
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}

	// Check if file exists
	f, err := h.indexFS.Open(path)
	if err == nil {
		f.Close()
		h.staticFS.ServeHTTP(w, r)
		return
	}

	// Not a real asset, hand the route to the dashboard shell
	indexContent, err := fs.ReadFile(h.indexFS, "index.html")
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexContent)
}
