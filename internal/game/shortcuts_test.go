// internal/game/shortcuts_test.go
package game

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortcutMapping(t *testing.T) {
	tpl := newTestTemplate()
	board := newLiveSession(t, tpl)
	open := applyAll(tpl, board, Select("c1", "q2"))
	running := Apply(tpl, open, Seconds(10))
	revealed := Apply(tpl, open, RevealAnswer{})

	tests := []struct {
		name string
		key  string
		s    *models.GameSession
		last string
		want Action
	}{
		{"space reveals", KeySpace, open, "", RevealAnswer{}},
		{"space hides", KeySpace, revealed, "", HideAnswer{}},
		{"space on board", KeySpace, board, "", nil},
		{"enter needs reveal", KeyEnter, open, "", nil},
		{"enter closes as answered", KeyEnter, revealed, "", SetQuestionStatus{ClueID: "q2", Status: models.ClueAnswered}},
		{"escape dismisses", KeyEscape, revealed, "", Dismiss()},
		{"backspace voids", KeyBackspace, open, "", SetQuestionStatus{ClueID: "q2", Status: models.ClueVoid}},
		{"t seeds default", KeyTimer, open, "", Seconds(15)},
		{"t toggles", "T", running, "", ToggleTimerRunning{}},
		{"digit awards daily double", "2", open, "", UpdatePlayer{ID: "p2", ScoreDelta: 400}},
		{"digit on empty seat", "5", open, "", nil},
		{"digit without clue", "1", board, "", nil},
		{"plus steps last awarded", KeyPlus, board, "p1", UpdatePlayer{ID: "p1", ScoreDelta: 100}},
		{"minus steps last awarded", KeyMinus, board, "p1", UpdatePlayer{ID: "p1", ScoreDelta: -100}},
		{"plus without award", KeyPlus, board, "", nil},
		{"unknown key", "q", open, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Shortcut(tt.key, ShortcutContext{Template: tpl, Session: tt.s, LastAwarded: tt.last})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShortcutIgnoresLobby(t *testing.T) {
	tpl := newTestTemplate()
	lobby := NewSession("s", tpl, "o", nil)
	assert.Nil(t, Shortcut(KeySpace, ShortcutContext{Template: tpl, Session: lobby}))
	assert.Nil(t, Shortcut(KeySpace, ShortcutContext{Template: tpl}))
}

func TestQuickAwardTableKeepsSeats(t *testing.T) {
	players := []models.Player{
		{ID: "a", Active: true},
		{ID: "b", Active: false},
		{ID: "c", Active: true},
	}
	table := NewQuickAwardTable(players)

	id, ok := table.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, "a", id)

	_, ok = table.Lookup(2)
	assert.False(t, ok, "inactive seat is skipped")

	id, ok = table.Lookup(3)
	assert.True(t, ok)
	assert.Equal(t, "c", id, "later seats keep their digit")

	_, ok = table.Lookup(0)
	assert.False(t, ok)
	_, ok = table.Lookup(10)
	assert.False(t, ok)
}

func TestClueValueAndStep(t *testing.T) {
	tpl := newTestTemplate()
	q1, _ := tpl.Clue("q1")
	q2, _ := tpl.Clue("q2")
	assert.Equal(t, 100, ClueValue(*q1))
	assert.Equal(t, 400, ClueValue(*q2))

	assert.Equal(t, 100, ManualStep(tpl))
	tpl.Settings.Step = 50
	assert.Equal(t, 50, ManualStep(tpl))
	assert.Equal(t, DefaultStep, ManualStep(nil))

	assert.Equal(t, UpdatePlayer{ID: "p1", ScoreDelta: -200}, Award("p1", 200, false))
}

func TestDecodeAction(t *testing.T) {
	a, err := DecodeAction(models.GameAction{
		ActionType: "select_question",
		Payload:    json.RawMessage(`{"question":{"categoryId":"c1","clueId":"q1"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, Select("c1", "q1"), a)

	a, err = DecodeAction(models.GameAction{ActionType: "select_question", Payload: json.RawMessage(`{"question":null}`)})
	require.NoError(t, err)
	assert.Equal(t, Dismiss(), a)

	a, err = DecodeAction(models.GameAction{ActionType: "update_player", Payload: json.RawMessage(`{"id":"p1","scoreDelta":-100}`)})
	require.NoError(t, err)
	assert.Equal(t, UpdatePlayer{ID: "p1", ScoreDelta: -100}, a)

	a, err = DecodeAction(models.GameAction{ActionType: "reveal_answer"})
	require.NoError(t, err)
	assert.Equal(t, RevealAnswer{}, a)

	_, err = DecodeAction(models.GameAction{ActionType: "tick_timer"})
	assert.True(t, errors.Is(err, ErrUnknownAction), "clients cannot tick")

	_, err = DecodeAction(models.GameAction{ActionType: "set_timer", Payload: json.RawMessage(`{"seconds":"ten"}`)})
	assert.Error(t, err)
}

func TestEncodeDecodeAction(t *testing.T) {
	for _, a := range []Action{Seconds(12), HideTimer(), AddPlayer{ID: "p9", Name: "Nine"}, SetQuestionStatus{ClueID: "q1", Status: models.ClueVoid}} {
		msg, err := EncodeAction(a)
		require.NoError(t, err)
		back, err := DecodeAction(msg)
		require.NoError(t, err)
		assert.Equal(t, a, back)
	}
}

func TestBuildViewHidesAnswerFromStage(t *testing.T) {
	tpl := newTestTemplate()
	open := applyAll(tpl, newLiveSession(t, tpl), Select("c1", "q2"))

	stage := BuildView(tpl, open, RoleStage)
	require.NotNil(t, stage.Clue)
	assert.Empty(t, stage.Clue.Answer)
	assert.Equal(t, "Rivers", stage.Clue.CategoryTitle)
	assert.Equal(t, 400, stage.Clue.Value)
	assert.Empty(t, stage.Events)
	for _, col := range stage.Board {
		for _, cell := range col.Cells {
			assert.False(t, cell.DailyDouble)
		}
	}

	director := BuildView(tpl, open, RoleDirector)
	assert.Equal(t, "Danube", director.Clue.Answer)
	assert.Equal(t, 15, director.DefaultTimerDuration)
	require.Len(t, director.Board, 2)
	assert.Equal(t, models.ClueSelected, director.Board[0].Cells[1].Status)
	assert.True(t, director.Board[0].Cells[1].DailyDouble)

	revealed := BuildView(tpl, Apply(tpl, open, RevealAnswer{}), RoleStage)
	assert.Equal(t, "Danube", revealed.Clue.Answer)
	assert.Equal(t, PhaseClueRevealed, revealed.Phase)
}
