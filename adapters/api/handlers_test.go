package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studyfeedback/app"
	"studyfeedback/domain/core"
	"studyfeedback/internal/errors"
	"studyfeedback/internal/feedback/validate"
	"studyfeedback/ports"
)

type mockService struct{ mock.Mock }

func (m *mockService) RenderForResult(ctx context.Context, id core.ResultID) (*app.RenderedFeedback, error) {
	args := m.Called(ctx, id)
	fb, _ := args.Get(0).(*app.RenderedFeedback)
	return fb, args.Error(1)
}

func (m *mockService) RenderStudy(ctx context.Context, id core.StudyID) ([]app.RenderedFeedback, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).([]app.RenderedFeedback)
	return out, args.Error(1)
}

func (m *mockService) SaveTemplate(ctx context.Context, id core.StudyID, body string) (*ports.FeedbackTemplate, validate.Report, error) {
	args := m.Called(ctx, id, body)
	tmpl, _ := args.Get(0).(*ports.FeedbackTemplate)
	return tmpl, args.Get(1).(validate.Report), args.Error(2)
}

const sampleResult = `{
	"componentResults": [
		{"parsedData": [{"rt": 100, "correct": true}, {"rt": 300, "correct": false}]},
		{"parsedData": {"name": "Ada"}}
	]
}`

func do(t *testing.T, a *App, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

func TestHandleRender(t *testing.T) {
	a := NewApp(&mockService{}, nil, nil)
	body := `{"template": "Hi {{ var:name }}, mean {{ stat:rt.avg }} ms", "result": ` + sampleResult + `}`

	rec, resp := do(t, a, http.MethodPost, "/api/feedback/render", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hi Ada, mean 200 ms", resp["markdown"])
	assert.NotContains(t, resp, "html")
}

func TestHandleRender_MissingResult(t *testing.T) {
	a := NewApp(&mockService{}, nil, nil)

	rec, resp := do(t, a, http.MethodPost, "/api/feedback/render", `{"template": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeInvalidInput, resp["code"])

	rec, _ = do(t, a, http.MethodPost, "/api/feedback/render", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePreview(t *testing.T) {
	a := NewApp(&mockService{}, nil, nil)
	body := `{"template": "# Results\n\n{{#if var:correct == true}}**Correct** first try{{/if}}", "result": ` + sampleResult + `}`

	rec, resp := do(t, a, http.MethodPost, "/api/feedback/preview", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Results\n\n**Correct** first try", resp["markdown"])
	html, _ := resp["html"].(string)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "<strong>Correct</strong>")
}

func TestHandleValidate(t *testing.T) {
	a := NewApp(&mockService{}, nil, nil)
	body := `{"template": "{{ var:rt }} {{ var:accuracy }}", "result": ` + sampleResult + `}`

	rec, resp := do(t, a, http.MethodPost, "/api/feedback/validate", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, resp["isValid"])
	diags, _ := resp["errors"].([]interface{})
	require.Len(t, diags, 1)
	assert.Equal(t, "variable", diags[0].(map[string]interface{})["kind"])
}

func TestHandleResultFeedback(t *testing.T) {
	svc := &mockService{}
	svc.On("RenderForResult", mock.Anything, core.ResultID("r-1")).
		Return(&app.RenderedFeedback{ResultID: "r-1", ParticipantID: "p-1", Markdown: "done"}, nil)
	svc.On("RenderForResult", mock.Anything, core.ResultID("missing")).
		Return(nil, errors.NotFound("enriched result", core.NewNotFoundError("enriched result", "missing")))
	a := NewApp(svc, nil, nil)

	rec, resp := do(t, a, http.MethodGet, "/api/results/r-1/feedback", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "done", resp["markdown"])
	assert.Equal(t, "p-1", resp["participantId"])

	rec, resp = do(t, a, http.MethodGet, "/api/results/missing/feedback", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.CodeNotFound, resp["code"])
}

func TestHandleSaveTemplate(t *testing.T) {
	svc := &mockService{}
	svc.On("SaveTemplate", mock.Anything, core.StudyID("s-1"), "{{ var:rt }}").
		Return(&ports.FeedbackTemplate{ID: "t-1", StudyID: "s-1", Body: "{{ var:rt }}"}, validate.Report{Errors: []validate.Diagnostic{}, IsValid: true}, nil)
	a := NewApp(svc, nil, nil)

	rec, resp := do(t, a, http.MethodPut, "/api/studies/s-1/template", `{"template": "{{ var:rt }}"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	report := resp["report"].(map[string]interface{})
	assert.Equal(t, true, report["isValid"])
	checksum := core.NewHash([]byte("{{ var:rt }}")).String()
	assert.Equal(t, checksum, resp["checksum"])
	assert.Equal(t, `"`+checksum+`"`, rec.Header().Get("ETag"))

	rec, _ = do(t, a, http.MethodPut, "/api/studies/s-1/template", `{"template": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNumberOfCalls(t, "SaveTemplate", 1)
}

func TestHandleStudyFeedback(t *testing.T) {
	svc := &mockService{}
	svc.On("RenderStudy", mock.Anything, core.StudyID("s-1")).Return([]app.RenderedFeedback{
		{ResultID: "r-1", Markdown: "a"},
		{ResultID: "r-2", Markdown: "b"},
	}, nil)
	a := NewApp(svc, nil, nil)

	rec, resp := do(t, a, http.MethodGet, "/api/studies/s-1/feedback", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["results"], 2)
}

func TestHealth(t *testing.T) {
	rec, resp := do(t, NewApp(&mockService{}, nil, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["status"])
}
