package ui

import (
	"bytes"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gobiodiv/domain/core"
	"gobiodiv/domain/stats"
	apperrors "gobiodiv/internal/errors"
	"gobiodiv/internal/report"
)

func (a *App) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	bundle, ok := a.lookup(w, r)
	if !ok {
		return
	}
	body, err := report.HTML("Analysis "+bundle.RunID().String(), bundle)
	if err != nil {
		a.renderError(w, err)
		return
	}
	a.renderTemplate(w, "analysis.html", map[string]interface{}{
		"RunID":   bundle.RunID().String(),
		"Report":  template.HTML(body),
		"Metrics": stats.AllMetrics,
	})
}

func (a *App) handlePlot(w http.ResponseWriter, r *http.Request) {
	metric, err := stats.ParseMetric(chi.URLParam(r, "metric"))
	if err != nil {
		a.renderError(w, apperrors.InvalidInputf(err, "unknown metric"))
		return
	}
	bundle, ok := a.lookup(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	rc := report.NewRenderContext(&buf)
	rc.Width = 60
	if err := report.PlotMetric(rc, bundle, metric); err != nil {
		a.renderError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (a *App) lookup(w http.ResponseWriter, r *http.Request) (*stats.ResultBundle, bool) {
	runID, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		a.renderError(w, apperrors.InvalidInputf(err, "invalid run id"))
		return nil, false
	}
	bundle, err := a.repo.Get(r.Context(), runID)
	if err != nil {
		a.renderError(w, err)
		return nil, false
	}
	return bundle, true
}

// renderTemplate executes into a buffer first so a failed template never
// leaves a half-written page
func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		log.Printf("[UI] Template error for %s: %v", templateName, err)
		http.Error(w, "Template rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[UI] Error writing template response: %v", err)
	}
}

func (a *App) renderError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case apperrors.CodeInvalidInput:
		status = http.StatusBadRequest
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	default:
		log.Printf("[UI] request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}
