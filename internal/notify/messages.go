package notify

import (
	"strings"

	"github.com/nikolalohinski/gonja/v2/exec"

	"studyfeedback/internal"
	"studyfeedback/internal/errors"
)

// FeedbackReady is the default message sent once a participant's feedback
// has been rendered.
const FeedbackReady = `Hi{% if participant %} {{ participant }}{% endif %}, your results for {{ study }} are ready.
{% if excerpt %}
{{ excerpt }}
{% endif %}`

// Messages renders notification templates through a shared Cache
type Messages struct {
	cache  *Cache
	logger *internal.Logger
}

// NewMessages creates a renderer over cache
func NewMessages(cache *Cache, logger *internal.Logger) *Messages {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Messages{cache: cache, logger: logger}
}

// Render executes source with data
func (m *Messages) Render(source string, data map[string]interface{}) (string, error) {
	tpl, err := m.cache.Get(source)
	if err != nil {
		m.logger.Warn("notification template does not compile: %v", err)
		return "", errors.Wrap(err, "compile notification template")
	}
	out, err := tpl.ExecuteToString(exec.NewContext(data))
	if err != nil {
		return "", errors.Wrap(err, "render notification")
	}
	return strings.TrimSpace(out), nil
}
