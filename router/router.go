// Package router decides whether an agent's output should be handed off to
// another agent.
package router

import (
	"strings"

	"github.com/hupe1980/astra/core"
)

// HandOff names the agent that should continue and why.
type HandOff struct {
	ToAgent string `json:"to_agent"`
	Reason  string `json:"reason"`
}

// DecideFunc inspects a message and returns a handoff, or nil to keep going.
type DecideFunc func(msg core.Message) *HandOff

// Router wraps a DecideFunc.
type Router struct {
	decide DecideFunc
}

// New creates a router from decide.
func New(decide DecideFunc) *Router {
	return &Router{decide: decide}
}

// Route returns the handoff for msg, or nil. A nil Router never hands off.
func (r *Router) Route(msg core.Message) *HandOff {
	if r == nil || r.decide == nil {
		return nil
	}
	return r.decide(msg)
}

// MentionDecider hands off to the agent whose "@Name" appears first in the
// message content.
func MentionDecider(names ...string) DecideFunc {
	return func(msg core.Message) *HandOff {
		best, bestAt := "", -1
		for _, n := range names {
			at := strings.Index(msg.Content, "@"+n)
			if at >= 0 && (bestAt < 0 || at < bestAt) {
				best, bestAt = n, at
			}
		}
		if bestAt < 0 {
			return nil
		}
		return &HandOff{ToAgent: best, Reason: "mentioned @" + best}
	}
}
