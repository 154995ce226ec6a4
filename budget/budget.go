// Package budget estimates the token cost of a message list and trims
// conversation history to fit a model's context window.
//
// The estimate is a deterministic, vendor-agnostic approximation: roughly
// four characters per token plus a small per-message overhead. Exactness
// is not the goal; the estimate only needs to be consistent across calls
// and monotone in content length, so trimming decisions are stable.
package budget

import "attache/model"

const (
	charsPerToken      = 4
	perMessageOverhead = 4
)

// EstimateMessage returns the estimated token cost of a single message.
func EstimateMessage(m model.Message) int {
	n := len(m.Content) + len(m.ToolName)
	tokens := n / charsPerToken
	if n%charsPerToken != 0 {
		tokens++
	}
	return tokens + perMessageOverhead
}

// Estimate returns the estimated token cost of a message list.
func Estimate(messages []model.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateMessage(m)
	}
	return total
}

// Trim removes messages from the front of the history (oldest first) until
// the estimated cost fits within limit.
//
// Rules, in priority order:
//   - If the input already fits, it is returned unchanged.
//   - The most recent user message is never removed.
//   - If preserveSystem is true, system messages are never removed; if
//     false, a system message is removed like any other once it is the
//     oldest remaining candidate.
//
// The returned bool reports a budget violation: trimming ran out of
// removable messages while the estimate still exceeds limit. The minimal
// tail is returned anyway and the caller decides how to surface it.
func Trim(messages []model.Message, limit int, preserveSystem bool) ([]model.Message, bool) {
	if Estimate(messages) <= limit {
		return messages, false
	}

	trimmed := make([]model.Message, len(messages))
	copy(trimmed, messages)

	for Estimate(trimmed) > limit {
		idx := nextRemovable(trimmed, preserveSystem)
		if idx == -1 {
			return trimmed, true
		}
		trimmed = append(trimmed[:idx], trimmed[idx+1:]...)
	}

	return trimmed, false
}

// nextRemovable finds the oldest message that may be dropped, or -1 when
// only protected messages remain.
func nextRemovable(messages []model.Message, preserveSystem bool) int {
	if len(messages) <= 1 {
		return -1
	}

	lastUser := model.LastUserIndex(messages)

	for i, m := range messages {
		if i == lastUser {
			// Everything from the most recent user message onward stays.
			return -1
		}
		if m.Role == model.RoleSystem && (preserveSystem || m.PreserveInTrim) {
			continue
		}
		return i
	}

	return -1
}
