package vlm

import "strings"

// SystemPrompt describes the action grammar the parser understands. The
// model is asked for exactly one call per reply; anything else it says is
// ignored by the parser.
func SystemPrompt() string {
	return strings.TrimSpace(`
You operate an Android phone to accomplish the user's goal. Look at the
screenshot and reply with exactly one action call.

Action forms:
  do(action="Launch", app="<app name>")
  do(action="Tap", element=[x, y])
  do(action="Double Tap", element=[x, y])
  do(action="Long Press", element=[x, y])
  do(action="Swipe", start=[x, y], end=[x, y])
  do(action="Type", text="<text>")
  do(action="Back")
  do(action="Home")
  do(action="Wait", duration="3")
  do(action="Take_over", message="<why you need the human>")
  finish(message="<what was accomplished>")

Coordinates are integers from 0 to 999 on both axes, relative to the
screenshot. Use Take_over for logins, CAPTCHAs and payment confirmations.
Use finish only when the goal is complete.`)
}

// AppsPrompt appends the launchable app names to the system prompt so the
// model picks names the catalog can resolve.
func AppsPrompt(apps []string) string {
	if len(apps) == 0 {
		return SystemPrompt()
	}
	return SystemPrompt() + "\n\nLaunchable apps: " + strings.Join(apps, ", ")
}
