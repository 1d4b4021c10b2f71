package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"studyfeedback/domain/core"
	"studyfeedback/domain/result"
	"studyfeedback/internal/errors"
	"studyfeedback/internal/feedback/render"
	"studyfeedback/internal/feedback/validate"
)

// RenderRequest carries a template and the data to render it against
type RenderRequest struct {
	Template   string                   `json:"template"`
	Result     *result.EnrichedResult   `json:"result" validate:"required"`
	AllResults []*result.EnrichedResult `json:"allResults,omitempty" validate:"omitempty,dive,required"`
}

// ValidateRequest carries a template and an optional sample result
type ValidateRequest struct {
	Template string                 `json:"template"`
	Result   *result.EnrichedResult `json:"result"`
}

// SaveTemplateRequest replaces a study's template
type SaveTemplateRequest struct {
	Template string `json:"template" validate:"required"`
}

type renderResponse struct {
	Markdown string `json:"markdown"`
	HTML     string `json:"html,omitempty"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if !a.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{Markdown: a.renderRequest(req)})
}

func (a *App) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if !a.decode(w, r, &req) {
		return
	}
	md := a.renderRequest(req)
	writeJSON(w, http.StatusOK, renderResponse{Markdown: md, HTML: toHTML(md)})
}

func (a *App) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !a.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, validate.Validate(req.Template, req.Result))
}

func (a *App) handleResultFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseResultID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	fb, err := a.service.RenderForResult(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

func (a *App) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	studyID, err := core.ParseStudyID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	var req SaveTemplateRequest
	if !a.decode(w, r, &req) {
		return
	}
	tmpl, report, err := a.service.SaveTemplate(r.Context(), studyID, req.Template)
	if err != nil {
		a.writeError(w, err)
		return
	}
	checksum := tmpl.Checksum()
	w.Header().Set("ETag", `"`+checksum.String()+`"`)
	writeJSON(w, http.StatusOK, map[string]interface{}{"template": tmpl, "checksum": checksum, "report": report})
}

func (a *App) handleStudyFeedback(w http.ResponseWriter, r *http.Request) {
	studyID, err := core.ParseStudyID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	out, err := a.service.RenderStudy(r.Context(), studyID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": out})
}

func (a *App) renderRequest(req RenderRequest) string {
	all := req.AllResults
	if len(all) == 0 {
		all = []*result.EnrichedResult{req.Result}
	}
	return a.renderer.Render(req.Template, render.Context{Result: req.Result, All: all})
}

// decode reads a JSON body and checks its struct tags; on failure the error
// response has already been written
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		a.writeError(w, errors.WithCode(errors.CodeInvalidInput, err))
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		a.writeError(w, errors.WithCode(errors.CodeInvalidInput, err))
		return false
	}
	return true
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": errors.GetCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed","code":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// toHTML converts rendered feedback to HTML for previewing
func toHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return string(markdown.ToHTML([]byte(md), p, renderer))
}
