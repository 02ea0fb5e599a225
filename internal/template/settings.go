// internal/template/settings.go
package template

import (
	"fmt"

	"github.com/jason-s-yu/trivia/internal/models"
)

// UpdateSettings applies a partial settings update decoded from JSON.
// Keys that are absent or null keep their old value.
func UpdateSettings(current models.Settings, patch map[string]interface{}) (models.Settings, error) {
	s := current

	assignInt := func(field *int, key string, minVal int) error {
		val, exists := patch[key]
		if !exists || val == nil {
			return nil
		}
		// JSON numbers decode as float64
		switch v := val.(type) {
		case float64:
			if v != float64(int(v)) {
				return fmt.Errorf("%s must be a whole number", key)
			}
			*field = int(v)
		case int:
			*field = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if *field < minVal {
			return fmt.Errorf("%s must be at least %d", key, minVal)
		}
		return nil
	}

	if err := assignInt(&s.MinPoints, "minPoints", 0); err != nil {
		return current, err
	}
	if err := assignInt(&s.MaxPoints, "maxPoints", 0); err != nil {
		return current, err
	}
	if err := assignInt(&s.Step, "step", 1); err != nil {
		return current, err
	}
	if err := assignInt(&s.TimerDuration, "timerDuration", 1); err != nil {
		return current, err
	}
	if val, exists := patch["currencySymbol"]; exists && val != nil {
		sym, ok := val.(string)
		if !ok {
			return current, fmt.Errorf("invalid type for currencySymbol")
		}
		s.CurrencySymbol = sym
	}

	if s.MaxPoints < s.MinPoints {
		return current, fmt.Errorf("maxPoints must be at least minPoints")
	}
	return s, nil
}
