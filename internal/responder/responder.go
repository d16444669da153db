// Package responder implements the network-independent fallback replies.
package responder

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
)

// Source picks an index in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Responder produces a reply for any input without touching the network.
type Responder struct {
	src Source
	now func() time.Time
}

// Option configures a Responder.
type Option func(*Responder)

// WithSource replaces the random source used to pick between canned variants.
func WithSource(src Source) Option {
	return func(r *Responder) {
		if src != nil {
			r.src = src
		}
	}
}

// WithClock replaces the clock used for time and date replies.
func WithClock(now func() time.Time) Option {
	return func(r *Responder) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Responder backed by the global random source and wall clock.
func New(opts ...Option) *Responder {
	r := &Responder{
		src: globalSource{},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MathHelp is returned when a message looks like arithmetic but does not evaluate.
const MathHelp = "I can help with basic math! Try asking something like 'What is 5 + 3?' or 'Calculate 10 * 2'"

var (
	mathStrip   = regexp.MustCompile(`[^0-9+\-*/().\s]`)
	mathResidue = regexp.MustCompile(`^[0-9+\-*/().\s]+$`)
)

// Respond returns the fallback reply for text. Commands yield an empty
// string because they are executed by the session, not answered.
func (r *Responder) Respond(text string) string {
	message := lowerTrim(text)

	if _, ok := ParseCommand(message); ok {
		return ""
	}

	for _, rule := range rules {
		if !containsAny(message, rule.keywords) {
			continue
		}
		if rule.dynamic != nil {
			return rule.dynamic(r.now())
		}
		return r.pick(rule.replies)
	}

	if strings.ContainsAny(message, "+-*/=") {
		if reply, ok := r.arithmetic(message); ok {
			return reply
		}
	}

	return r.pick(defaultReplies)
}

// arithmetic reports false when nothing is left after stripping, so the
// caller falls through to the default fillers.
func (r *Responder) arithmetic(message string) (string, bool) {
	expr := mathStrip.ReplaceAllString(message, "")
	if expr == "" || !mathResidue.MatchString(expr) {
		return "", false
	}
	v, err := Evaluate(expr)
	if err != nil {
		return MathHelp, true
	}
	return fmt.Sprintf("The answer is: %s", FormatNumber(v)), true
}

// Pick returns one of candidates chosen by the responder's random source.
func (r *Responder) Pick(candidates []string) string {
	return r.pick(candidates)
}

func (r *Responder) pick(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[r.src.IntN(len(candidates))]
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
