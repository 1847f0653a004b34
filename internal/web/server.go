// Package web serves the browser UI for video analysis and Q&A.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

// Handler returns an http.Handler that serves the UI.
func Handler() http.Handler {
	// Strip the "static" prefix from embedded files
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	fileServer := http.FileServer(http.FS(subFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Serve index.html for the root path
		if r.URL.Path == "/" || r.URL.Path == "" {
			r.URL.Path = "/index.html"
		}
		fileServer.ServeHTTP(w, r)
	})
}

// RegisterRoutes adds the UI routes to a mux. The UI owns "/" so a
// browser hitting the daemon lands on the app; the JSON API lives
// under /api.
func RegisterRoutes(mux *http.ServeMux) {
	handler := Handler()

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	})
}
