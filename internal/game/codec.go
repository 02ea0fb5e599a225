// internal/game/codec.go
package game

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jason-s-yu/trivia/internal/models"
)

// ErrUnknownAction is returned by DecodeAction for an unrecognized type.
var ErrUnknownAction = errors.New("unknown action type")

// DecodeAction turns a wire envelope into a concrete action. Tick actions are
// refused: only the timer driver may tick a session.
func DecodeAction(msg models.GameAction) (Action, error) {
	var (
		a   Action
		err error
	)
	switch ActionType(msg.ActionType) {
	case ActionStartGame:
		a = StartGame{}
	case ActionSelectQuestion:
		a, err = decodeInto[SelectQuestion](msg.Payload)
	case ActionRevealAnswer:
		a = RevealAnswer{}
	case ActionHideAnswer:
		a = HideAnswer{}
	case ActionSetQuestionStatus:
		a, err = decodeInto[SetQuestionStatus](msg.Payload)
	case ActionUpdatePlayer:
		a, err = decodeInto[UpdatePlayer](msg.Payload)
	case ActionAddPlayer:
		a, err = decodeInto[AddPlayer](msg.Payload)
	case ActionRemovePlayer:
		a, err = decodeInto[RemovePlayer](msg.Payload)
	case ActionSetTimer:
		a, err = decodeInto[SetTimer](msg.Payload)
	case ActionToggleTimerRunning:
		a = ToggleTimerRunning{}
	case ActionSetDefaultTimerDuration:
		a, err = decodeInto[SetDefaultTimerDuration](msg.Payload)
	case ActionAddEvent:
		a, err = decodeInto[AddEvent](msg.Payload)
	case ActionEndGame:
		a = EndGame{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, msg.ActionType)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", msg.ActionType, err)
	}
	return a, nil
}

// EncodeAction is the inverse of DecodeAction, used for the action journal.
func EncodeAction(a Action) (models.GameAction, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return models.GameAction{}, err
	}
	return models.GameAction{ActionType: string(a.Type()), Payload: raw}, nil
}

func decodeInto[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
