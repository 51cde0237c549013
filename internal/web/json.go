package web

import (
	"github.com/sweeney/tapassist/internal/journal"
)

// maxHistory caps the limit query parameter of /history.json.
const maxHistory = 500

// HistoryJSON is the /history.json response.
type HistoryJSON struct {
	History []journal.Entry `json:"history"`
}

// InputJSON acknowledges posted input.
type InputJSON struct {
	Accepted string `json:"accepted"`
}
