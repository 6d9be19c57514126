package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks, before saving, the values
// of keys matching any pattern in structured prompts and artifact values.
// Redaction is one-way: loaded records carry the mask.
func NewRedactMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactMiddleware) Save(ctx context.Context, sessionID string, sess *domain.Session) error {
	// Work on a copy; the caller keeps using its record.
	cloned := *sess
	if p, ok := sess.Prompt.(map[string]any); ok {
		masked := deepCopyMap(p)
		maskMap(masked, m.patterns)
		cloned.Prompt = masked
	}
	if sess.Artifact != nil {
		a := *sess.Artifact
		a.Values = deepCopyMap(a.Values)
		maskMap(a.Values, m.patterns)
		cloned.Artifact = &a
	}
	return m.next.Save(ctx, sessionID, &cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *redactMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(sub)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if sub, ok := v.(map[string]any); ok && !masked {
			maskMap(sub, patterns)
		}
	}
}
