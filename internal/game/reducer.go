// internal/game/reducer.go
package game

import (
	"fmt"
	"strings"

	"github.com/jason-s-yu/trivia/internal/models"
)

// Apply is the single transition function of a session. It never mutates s:
// if the action applies, a modified deep copy is returned, otherwise s itself
// is returned unchanged (callers can compare pointers to detect a no-op).
//
// tpl is the template the session was launched from. It is only read, to
// check that a selected clue exists under the given category.
//
// Apply is total: any action over any session has a defined result. Actions
// whose preconditions do not hold are identity transitions rather than
// errors; the director UI is expected to disable those controls anyway.
func Apply(tpl *models.Template, s *models.GameSession, a Action) *models.GameSession {
	if s == nil || a == nil || s.Status == models.SessionEnded {
		return s
	}

	switch act := a.(type) {
	case StartGame:
		return startGame(s)
	case SelectQuestion:
		return selectQuestion(tpl, s, act)
	case RevealAnswer:
		return revealAnswer(s)
	case HideAnswer:
		return hideAnswer(s)
	case SetQuestionStatus:
		return setQuestionStatus(s, act)
	case UpdatePlayer:
		return updatePlayer(s, act)
	case AddPlayer:
		return addPlayer(s, act)
	case RemovePlayer:
		return removePlayer(s, act)
	case SetTimer:
		return setTimer(s, act)
	case ToggleTimerRunning:
		return toggleTimer(s)
	case TickTimer:
		return tickTimer(s)
	case SetDefaultTimerDuration:
		return setDefaultTimerDuration(s, act)
	case AddEvent:
		return addEvent(s, act)
	case EndGame:
		return endGame(s)
	}
	return s
}

func startGame(s *models.GameSession) *models.GameSession {
	if s.Status != models.SessionLobby {
		return s
	}
	next := s.Clone()
	next.Status = models.SessionLive
	return next
}

func selectQuestion(tpl *models.Template, s *models.GameSession, act SelectQuestion) *models.GameSession {
	if s.Status != models.SessionLive {
		return s
	}

	// dismiss: back to the board without touching the clue's status
	if act.Question == nil {
		if s.ActiveQuestion == nil {
			return s
		}
		next := s.Clone()
		closeQuestion(next)
		return next
	}

	// a revealed clue has to be closed or dismissed first
	if s.ShowAnswer || tpl == nil {
		return s
	}
	clue, ok := tpl.Clue(act.Question.ClueID)
	if !ok || clue.CategoryID != act.Question.CategoryID {
		return s
	}
	if ClueStatusOf(s, clue.ID) != models.ClueAvailable {
		return s
	}

	next := s.Clone()
	aq := *act.Question
	next.ActiveQuestion = &aq
	next.ShowAnswer = false
	clearTimer(next)
	return next
}

func revealAnswer(s *models.GameSession) *models.GameSession {
	if s.ActiveQuestion == nil {
		return s
	}
	if s.ShowAnswer && !s.TimerRunning {
		return s
	}
	next := s.Clone()
	next.ShowAnswer = true
	next.TimerRunning = false
	return next
}

func hideAnswer(s *models.GameSession) *models.GameSession {
	if s.ActiveQuestion == nil || !s.ShowAnswer {
		return s
	}
	next := s.Clone()
	next.ShowAnswer = false
	return next
}

func setQuestionStatus(s *models.GameSession, act SetQuestionStatus) *models.GameSession {
	if !act.Status.Terminal() {
		return s
	}
	if s.ActiveQuestion == nil || s.ActiveQuestion.ClueID != act.ClueID {
		return s
	}
	next := s.Clone()
	if next.ClueStatus == nil {
		next.ClueStatus = make(map[string]models.ClueStatus)
	}
	next.ClueStatus[act.ClueID] = act.Status
	closeQuestion(next)
	return next
}

func updatePlayer(s *models.GameSession, act UpdatePlayer) *models.GameSession {
	idx := s.Player(act.ID)
	if idx < 0 {
		return s
	}
	cur := s.Scoreboard[idx]

	name := cur.Name
	if act.Name != nil && strings.TrimSpace(*act.Name) != "" {
		name = strings.TrimSpace(*act.Name)
	}
	active := cur.Active
	if act.Active != nil {
		active = *act.Active
	}
	if name == cur.Name && active == cur.Active && act.ScoreDelta == 0 {
		return s
	}

	next := s.Clone()
	p := &next.Scoreboard[idx]
	p.Name = name
	p.Active = active
	p.Score += act.ScoreDelta // no floor: wrong answers may push a score negative
	return next
}

func addPlayer(s *models.GameSession, act AddPlayer) *models.GameSession {
	if len(s.Scoreboard) >= models.MaxPlayers {
		return s
	}
	id := strings.TrimSpace(act.ID)
	if id == "" || s.Player(id) >= 0 {
		return s
	}
	name := strings.TrimSpace(act.Name)
	if name == "" {
		name = fmt.Sprintf("Player %d", len(s.Scoreboard)+1)
	}
	next := s.Clone()
	next.Scoreboard = append(next.Scoreboard, models.Player{ID: id, Name: name, Active: true})
	return next
}

func removePlayer(s *models.GameSession, act RemovePlayer) *models.GameSession {
	idx := s.Player(act.ID)
	if idx < 0 {
		return s
	}
	next := s.Clone()
	next.Scoreboard = append(next.Scoreboard[:idx], next.Scoreboard[idx+1:]...)
	return next
}

func setTimer(s *models.GameSession, act SetTimer) *models.GameSession {
	if act.Seconds == nil {
		if s.Timer == nil && !s.TimerRunning {
			return s
		}
		next := s.Clone()
		clearTimer(next)
		return next
	}
	n := *act.Seconds
	if n < 0 {
		return s
	}
	next := s.Clone()
	next.Timer = &n
	// an uncovered answer keeps the clock stopped
	next.TimerRunning = n > 0 && !next.ShowAnswer
	return next
}

func toggleTimer(s *models.GameSession) *models.GameSession {
	if s.Timer == nil || *s.Timer == 0 {
		return s
	}
	if !s.TimerRunning && s.ShowAnswer {
		return s
	}
	next := s.Clone()
	next.TimerRunning = !s.TimerRunning
	return next
}

func tickTimer(s *models.GameSession) *models.GameSession {
	if !s.TimerRunning || s.Timer == nil || *s.Timer <= 0 {
		return s
	}
	next := s.Clone()
	*next.Timer--
	if *next.Timer == 0 {
		next.TimerRunning = false
	}
	return next
}

func setDefaultTimerDuration(s *models.GameSession, act SetDefaultTimerDuration) *models.GameSession {
	if act.Seconds <= 0 || act.Seconds == s.DefaultTimerDuration {
		return s
	}
	next := s.Clone()
	next.DefaultTimerDuration = act.Seconds
	return next
}

func addEvent(s *models.GameSession, act AddEvent) *models.GameSession {
	msg := strings.TrimSpace(act.Message)
	if msg == "" {
		return s
	}
	next := s.Clone()
	entry := models.EventEntry{ID: act.ID, Timestamp: act.At, Message: msg}
	next.Events = append([]models.EventEntry{entry}, next.Events...)
	return next
}

func endGame(s *models.GameSession) *models.GameSession {
	next := s.Clone()
	next.Status = models.SessionEnded
	closeQuestion(next)
	return next
}

// closeQuestion returns a session to the board.
func closeQuestion(s *models.GameSession) {
	s.ActiveQuestion = nil
	s.ShowAnswer = false
	clearTimer(s)
}

func clearTimer(s *models.GameSession) {
	s.Timer = nil
	s.TimerRunning = false
}
