// Package ui serves stored analyses as HTML reports
package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gobiodiv/ports"
)

//go:embed templates/*.html static/*
var embeddedFiles embed.FS

// App is the report browser
type App struct {
	router    *chi.Mux
	repo      ports.ResultRepository
	templates *template.Template
}

// NewApp creates the report browser over repo
func NewApp(repo ports.ResultRepository) (*App, error) {
	funcMap := template.FuncMap{
		"add": func(a, b int) int { return a + b },
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	app := &App{
		router:    chi.NewRouter(),
		repo:      repo,
		templates: templates,
	}

	if err := app.setupMiddleware(); err != nil {
		return nil, err
	}
	app.setupRoutes()

	return app, nil
}

func (a *App) setupMiddleware() error {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))

	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to open static files: %w", err)
	}
	a.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	return nil
}

func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/analyses/{id}", a.handleAnalysis)
	a.router.Get("/analyses/{id}/plot/{metric}", a.handlePlot)
}

// Handler returns the routed handler
func (a *App) Handler() http.Handler {
	return a.router
}

// Start listens on port until the server fails
func (a *App) Start(port string) error {
	log.Printf("[UI] Starting report server on :%s", port)
	return http.ListenAndServe(":"+port, a.router)
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	runs, err := a.repo.List(r.Context(), 50, offset)
	if err != nil {
		a.renderError(w, err)
		return
	}
	a.renderTemplate(w, "index.html", map[string]interface{}{
		"Runs":   runs,
		"Offset": offset,
	})
}
