package agentloop

import "fmt"

// feedbackMessage is the fixed user message injected when a model reply
// parses to zero actions (step 5), re-stating the expected
// grammar so the model self-corrects on the next turn.
const feedbackMessage = "No operation was recognised in your last reply. " +
	"Respond with one or more do(action=..., ...) calls, or finish(message=...) " +
	"if the task is complete. Do not describe the action in prose alone."

// systemPrompt is computed once per run from the logical screen size and
// the current date (startup contract).
func systemPrompt(width, height int, currentDate, task string) string {
	return fmt.Sprintf(`You control an Android device through a fixed set of operations.
Screen resolution: %dx%d (all coordinates you emit are in this logical space).
Today's date: %s.

Task: %s

Respond with one or more calls of the form:
  do(action=tap, x=123, y=456)
  do(action=swipe, start=[x1,y1], end=[x2,y2], duration_ms=300)
  do(action=type, text="hello")
When the task is complete, respond with exactly:
  finish(message="<summary of what was done>")
You may include a <thinking>...</thinking> block before your call(s).`, width, height, currentDate, task)
}

func initialUserMessage(task string) string {
	return fmt.Sprintf("Begin working on the task: %s\nRemember to use do(action=...) or finish(message=...).", task)
}
