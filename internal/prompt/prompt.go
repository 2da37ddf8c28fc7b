// Package prompt renders the text sightline sends to the agent: the run
// briefing and the per-step user turn. Output depends only on the inputs.
package prompt

import (
	"fmt"
	"strings"

	"github.com/thruflo/sightline/internal/testcase"
)

const closing = `
For each step:
1. Describe what you are doing
2. Take a screenshot
3. Report if the step passed or failed based on the expected outcome
4. If it failed, explain why

Be thorough, accurate, and report any unexpected behavior.
`

// Instructions renders the system briefing for a run against url.
func Instructions(url string, steps []testcase.Step) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "\nYou are a website testing agent. Your task is to test the website at %s.\n\n", url)
	sb.WriteString("Follow these test steps carefully and report your findings:\n\n")

	for i, step := range steps {
		fmt.Fprintf(&sb, "\nStep %d: %s\nExpected outcome: %s\n\n", i+1, step.Description, step.Expected)
	}

	sb.WriteString(closing)
	return sb.String()
}

// StepPrompt renders the user turn for step i (1-based).
func StepPrompt(i int, step testcase.Step) string {
	return fmt.Sprintf("Execute test step %d: %s\nExpected outcome: %s", i, step.Description, step.Expected)
}
