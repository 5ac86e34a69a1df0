package service

import "github.com/mouleshgs/onboardX/model"

// Progress weights. Signing is worth 30 points, visiting the team chat
// 10 and completing the workspace checklist 60; the sum is capped at
// 100. Flags contribute independently of status, so events posted
// before signing already count.
const (
	progressSigned   = 30
	progressSlack    = 10
	progressNotion   = 60
	progressComplete = 100
)

// Progress maps a contract's status and event flags to a 0-100 score.
// Pure and commutative: arrival order of events never changes the
// result, and a flag flipping true can only raise it.
func Progress(status string, events model.Events) int {
	score := 0
	if status == model.StatusSigned {
		score += progressSigned
	}
	if events.SlackVisited {
		score += progressSlack
	}
	if events.NotionCompleted {
		score += progressNotion
	}
	if score > progressComplete {
		score = progressComplete
	}
	return score
}
