package batch

import (
	"strconv"
	"strings"
)

type StrategyKind int

const (
	StrategyContinue StrategyKind = iota
	StrategyStop
	StrategyThreshold
)

// ErrorStrategy controls how many failures a batch run tolerates before
// aborting. "stop" aborts on the first failure, "continue" never aborts,
// "threshold:N" continues until the failure count reaches N.
type ErrorStrategy struct {
	Kind      StrategyKind
	Threshold int
}

// ParseErrorStrategy parses a strategy string. Anything unparseable is
// treated as "continue" so a typo never aborts a run early.
func ParseErrorStrategy(s string) ErrorStrategy {
	switch trimmed := strings.TrimSpace(strings.ToLower(s)); {
	case trimmed == "stop":
		return ErrorStrategy{Kind: StrategyStop}
	case trimmed == "continue":
		return ErrorStrategy{Kind: StrategyContinue}
	case strings.HasPrefix(trimmed, "threshold:"):
		n, err := strconv.Atoi(strings.TrimPrefix(trimmed, "threshold:"))
		if err != nil || n < 1 {
			return ErrorStrategy{Kind: StrategyContinue}
		}
		return ErrorStrategy{Kind: StrategyThreshold, Threshold: n}
	default:
		return ErrorStrategy{Kind: StrategyContinue}
	}
}

// ShouldAbort reports whether a run with the given failure count stops
// processing further prompts.
func (s ErrorStrategy) ShouldAbort(failed int) bool {
	switch s.Kind {
	case StrategyStop:
		return failed >= 1
	case StrategyThreshold:
		return failed >= s.Threshold
	default:
		return false
	}
}

func (s ErrorStrategy) String() string {
	switch s.Kind {
	case StrategyStop:
		return "stop"
	case StrategyThreshold:
		return "threshold:" + strconv.Itoa(s.Threshold)
	default:
		return "continue"
	}
}
