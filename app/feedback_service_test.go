package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"studyfeedback/domain/core"
	"studyfeedback/domain/result"
	"studyfeedback/internal/errors"
	"studyfeedback/internal/notify"
	"studyfeedback/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockTemplates struct{ mock.Mock }

func (m *mockTemplates) Save(ctx context.Context, tmpl *ports.FeedbackTemplate) error {
	return m.Called(ctx, tmpl).Error(0)
}

func (m *mockTemplates) GetByStudy(ctx context.Context, studyID core.StudyID) (*ports.FeedbackTemplate, error) {
	args := m.Called(ctx, studyID)
	tmpl, _ := args.Get(0).(*ports.FeedbackTemplate)
	return tmpl, args.Error(1)
}

type mockResults struct{ mock.Mock }

func (m *mockResults) Save(ctx context.Context, r *result.EnrichedResult) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockResults) GetByID(ctx context.Context, id core.ResultID) (*result.EnrichedResult, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*result.EnrichedResult)
	return r, args.Error(1)
}

func (m *mockResults) ListByStudy(ctx context.Context, studyID core.StudyID) ([]*result.EnrichedResult, error) {
	args := m.Called(ctx, studyID)
	rs, _ := args.Get(0).([]*result.EnrichedResult)
	return rs, args.Error(1)
}

func participant(id string, rts ...float64) *result.EnrichedResult {
	records := make([]result.Record, 0, len(rts))
	for _, rt := range rts {
		records = append(records, result.Record{"rt": rt})
	}
	return &result.EnrichedResult{
		ID:               core.ResultID("r-" + id),
		StudyID:          "study-1",
		ParticipantID:    core.ParticipantID(id),
		ComponentResults: []result.ComponentResult{{ParsedData: result.Sequence(records...)}},
	}
}

func newService(t *testing.T, concurrency int) (*FeedbackService, *mockTemplates, *mockResults) {
	t.Helper()
	templates, results := &mockTemplates{}, &mockResults{}
	cache, err := notify.NewCache(4, time.Minute)
	require.NoError(t, err)
	svc := NewFeedbackService(templates, results, nil, notify.NewMessages(cache, nil), concurrency, nil)
	return svc, templates, results
}

func TestRenderForResult(t *testing.T) {
	svc, templates, results := newService(t, 2)
	ctx := context.Background()
	p := participant("p1", 100, 300)

	results.On("GetByID", ctx, p.ID).Return(p, nil)
	templates.On("GetByStudy", ctx, core.StudyID("study-1")).
		Return(&ports.FeedbackTemplate{Body: "Mean {{ stat:rt.avg }} ms"}, nil)

	fb, err := svc.RenderForResult(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mean 200 ms", fb.Markdown)
	assert.Equal(t, core.ParticipantID("p1"), fb.ParticipantID)

	results.AssertNotCalled(t, "ListByStudy", mock.Anything, mock.Anything)
	templates.AssertExpectations(t)
}

func TestRenderForResult_AcrossLoadsStudy(t *testing.T) {
	svc, templates, results := newService(t, 2)
	ctx := context.Background()
	p1, p2 := participant("p1", 100), participant("p2", 300)

	results.On("GetByID", ctx, p1.ID).Return(p1, nil)
	results.On("ListByStudy", ctx, core.StudyID("study-1")).Return([]*result.EnrichedResult{p1, p2}, nil)
	templates.On("GetByStudy", ctx, core.StudyID("study-1")).
		Return(&ports.FeedbackTemplate{Body: "You {{ stat:rt.avg:within }}, everyone {{ stat:rt.avg:across }}"}, nil)

	fb, err := svc.RenderForResult(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, "You 100, everyone 200", fb.Markdown)
}

func TestRenderForResult_NotFound(t *testing.T) {
	svc, _, results := newService(t, 1)
	ctx := context.Background()

	results.On("GetByID", ctx, core.ResultID("missing")).
		Return(nil, errors.NotFound("enriched result", core.NewNotFoundError("enriched result", "missing")))

	_, err := svc.RenderForResult(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	assert.True(t, core.IsNotFoundError(err))
}

func TestRenderStudy_OrderedAndBounded(t *testing.T) {
	svc, templates, results := newService(t, 3)
	ctx := context.Background()

	var all []*result.EnrichedResult
	for i := 0; i < 25; i++ {
		all = append(all, participant(fmt.Sprintf("p%02d", i), float64(i)))
	}
	templates.On("GetByStudy", ctx, core.StudyID("study-1")).
		Return(&ports.FeedbackTemplate{Body: "{{ var:rt }} of {{ stat:rt.count:across }}"}, nil)
	results.On("ListByStudy", ctx, core.StudyID("study-1")).Return(all, nil)

	out, err := svc.RenderStudy(ctx, "study-1")
	require.NoError(t, err)
	require.Len(t, out, 25)
	for i, fb := range out {
		assert.Equal(t, all[i].ID, fb.ResultID)
		assert.Equal(t, fmt.Sprintf("%d of 25", i), fb.Markdown)
	}
}

func TestRenderStudy_Cancelled(t *testing.T) {
	svc, templates, results := newService(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	templates.On("GetByStudy", ctx, core.StudyID("study-1")).Return(&ports.FeedbackTemplate{Body: "x"}, nil)
	results.On("ListByStudy", ctx, core.StudyID("study-1")).
		Return([]*result.EnrichedResult{participant("a", 1), participant("b", 2)}, nil)

	_, err := svc.RenderStudy(ctx, "study-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateTemplate_UsesFirstResult(t *testing.T) {
	svc, _, results := newService(t, 1)
	ctx := context.Background()

	results.On("ListByStudy", ctx, core.StudyID("study-1")).
		Return([]*result.EnrichedResult{participant("a", 1)}, nil)

	report, err := svc.ValidateTemplate(ctx, "study-1", "{{ var:rt }} {{ var:accuracy }}", "")
	require.NoError(t, err)
	assert.False(t, report.IsValid)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Message, "accuracy")
}

func TestSaveTemplate(t *testing.T) {
	svc, templates, results := newService(t, 1)
	ctx := context.Background()

	templates.On("Save", ctx, mock.MatchedBy(func(tmpl *ports.FeedbackTemplate) bool {
		return tmpl.StudyID == "study-1" && tmpl.Body == "{{ var:rt }}"
	})).Return(nil)
	results.On("ListByStudy", ctx, core.StudyID("study-1")).Return([]*result.EnrichedResult{}, nil)

	tmpl, report, err := svc.SaveTemplate(ctx, "study-1", "{{ var:rt }}")
	require.NoError(t, err)
	assert.Equal(t, core.StudyID("study-1"), tmpl.StudyID)
	assert.False(t, report.IsValid, "no results means no known variables")
	templates.AssertExpectations(t)
}

func TestNotifyFeedbackReady(t *testing.T) {
	svc, templates, results := newService(t, 1)
	ctx := context.Background()
	p := participant("Sam", 350)

	results.On("GetByID", ctx, p.ID).Return(p, nil)
	templates.On("GetByStudy", ctx, core.StudyID("study-1")).
		Return(&ports.FeedbackTemplate{Body: "# Your results\n\nYour reaction time was {{ var:rt:last }} ms."}, nil)

	msg, err := svc.NotifyFeedbackReady(ctx, p.ID, "Stroop")
	require.NoError(t, err)
	assert.Contains(t, msg, "Hi Sam, your results for Stroop are ready.")
	assert.Contains(t, msg, "Your reaction time was 350 ms.")
}
