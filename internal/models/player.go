package models

// Player is one contestant on the scoreboard. Score is signed and unbounded.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Active bool   `json:"active"`
}
