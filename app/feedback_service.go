package app

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"studyfeedback/domain/core"
	"studyfeedback/domain/result"
	"studyfeedback/internal"
	"studyfeedback/internal/errors"
	"studyfeedback/internal/feedback/render"
	"studyfeedback/internal/feedback/syntax"
	"studyfeedback/internal/feedback/validate"
	"studyfeedback/internal/notify"
	"studyfeedback/ports"
)

// FeedbackService renders and validates the stored feedback of a study
type FeedbackService struct {
	templates   ports.TemplateRepository
	results     ports.ResultRepository
	renderer    *render.Renderer
	messages    *notify.Messages
	concurrency int64
	logger      *internal.Logger
}

// RenderedFeedback is the markdown produced for one participant
type RenderedFeedback struct {
	ResultID      core.ResultID      `json:"resultId"`
	ParticipantID core.ParticipantID `json:"participantId"`
	Markdown      string             `json:"markdown"`
}

// NewFeedbackService creates a feedback service. concurrency bounds how many
// results RenderStudy renders at once.
func NewFeedbackService(
	templates ports.TemplateRepository,
	results ports.ResultRepository,
	renderer *render.Renderer,
	messages *notify.Messages,
	concurrency int,
	logger *internal.Logger,
) *FeedbackService {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if renderer == nil {
		renderer = render.New(logger)
	}
	return &FeedbackService{
		templates:   templates,
		results:     results,
		renderer:    renderer,
		messages:    messages,
		concurrency: int64(concurrency),
		logger:      logger.Named("feedback"),
	}
}

// SaveTemplate stores the template of a study and validates it against the
// study's first result, if there is one
func (s *FeedbackService) SaveTemplate(ctx context.Context, studyID core.StudyID, body string) (*ports.FeedbackTemplate, validate.Report, error) {
	tmpl := &ports.FeedbackTemplate{StudyID: studyID, Body: body}
	if err := s.templates.Save(ctx, tmpl); err != nil {
		return nil, validate.Report{}, errors.Wrapf(err, "save template for study %s", studyID)
	}

	report, err := s.ValidateTemplate(ctx, studyID, body, "")
	if err != nil {
		return nil, validate.Report{}, err
	}
	s.logger.Info("saved template %s for study %s (valid=%t, diagnostics=%d)", tmpl.Checksum().Short(), studyID, report.IsValid, len(report.Errors))
	return tmpl, report, nil
}

// ValidateTemplate checks body against a sample result. Without an explicit
// sample the study's first result is used; a study without results validates
// against no variables.
func (s *FeedbackService) ValidateTemplate(ctx context.Context, studyID core.StudyID, body string, sampleID core.ResultID) (validate.Report, error) {
	var sample *result.EnrichedResult
	if sampleID != "" {
		res, err := s.results.GetByID(ctx, sampleID)
		if err != nil {
			return validate.Report{}, errors.Wrapf(err, "load sample result %s", sampleID)
		}
		sample = res
	} else {
		all, err := s.results.ListByStudy(ctx, studyID)
		if err != nil {
			return validate.Report{}, errors.Wrapf(err, "list results for study %s", studyID)
		}
		if len(all) > 0 {
			sample = all[0]
		}
	}
	return validate.Validate(body, sample), nil
}

// RenderForResult renders the study template for one stored result
func (s *FeedbackService) RenderForResult(ctx context.Context, resultID core.ResultID) (*RenderedFeedback, error) {
	res, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		return nil, errors.Wrapf(err, "load result %s", resultID)
	}
	tmpl, err := s.templates.GetByStudy(ctx, res.StudyID)
	if err != nil {
		return nil, errors.Wrapf(err, "load template for study %s", res.StudyID)
	}

	var all []*result.EnrichedResult
	if needsStudyResults(tmpl.Body) {
		if all, err = s.results.ListByStudy(ctx, res.StudyID); err != nil {
			return nil, errors.Wrapf(err, "list results for study %s", res.StudyID)
		}
	}

	return s.renderOne(tmpl.Body, res, all), nil
}

// RenderStudy renders every result of a study, in storage order
func (s *FeedbackService) RenderStudy(ctx context.Context, studyID core.StudyID) ([]RenderedFeedback, error) {
	tmpl, err := s.templates.GetByStudy(ctx, studyID)
	if err != nil {
		return nil, errors.Wrapf(err, "load template for study %s", studyID)
	}
	all, err := s.results.ListByStudy(ctx, studyID)
	if err != nil {
		return nil, errors.Wrapf(err, "list results for study %s", studyID)
	}

	out := make([]RenderedFeedback, len(all))
	sem := semaphore.NewWeighted(s.concurrency)
	g, gctx := errgroup.WithContext(ctx)
	for i, res := range all {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = *s.renderOne(tmpl.Body, res, all)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "render study %s", studyID)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "render study %s", studyID)
	}

	s.logger.Debug("rendered %d results for study %s", len(out), studyID)
	return out, nil
}

// NotifyFeedbackReady renders a result's feedback and the message announcing it
func (s *FeedbackService) NotifyFeedbackReady(ctx context.Context, resultID core.ResultID, studyName string) (string, error) {
	if s.messages == nil {
		return "", errors.InternalError("notifications are not configured")
	}
	fb, err := s.RenderForResult(ctx, resultID)
	if err != nil {
		return "", err
	}
	return s.messages.Render(notify.FeedbackReady, map[string]interface{}{
		"participant": fb.ParticipantID.String(),
		"study":       studyName,
		"excerpt":     excerpt(fb.Markdown),
	})
}

func (s *FeedbackService) renderOne(body string, res *result.EnrichedResult, all []*result.EnrichedResult) *RenderedFeedback {
	return &RenderedFeedback{
		ResultID:      res.ID,
		ParticipantID: res.ParticipantID,
		Markdown:      s.renderer.Render(body, render.Context{Result: res, All: all}),
	}
}

// needsStudyResults reports whether any statistic in body reads across results
func needsStudyResults(body string) bool {
	for _, ref := range syntax.FindStatRefs(body) {
		if ref.Scope == syntax.ScopeAcross {
			return true
		}
	}
	return false
}

// excerpt returns the first non-heading line of markdown
func excerpt(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}
