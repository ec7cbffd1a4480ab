package anthropic

import "github.com/deepnoodle-ai/relay/llm"

// stopReason maps an Anthropic stop_reason onto the unified vocabulary.
// Unknown codes collapse to StopReasonOther rather than erroring so that
// new API codes degrade gracefully.
func stopReason(code string) llm.StopReason {
	switch code {
	case "end_turn", "stop_sequence", "tool_use", "pause_turn":
		return llm.StopReasonStop
	case "max_tokens":
		return llm.StopReasonMaxTokens
	case "refusal":
		return llm.StopReasonSafety
	default:
		return llm.StopReasonOther
	}
}
