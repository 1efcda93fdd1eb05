package aggregation

import "fmt"

// AggregatorMode says what an Aggregator consumes and what it produces.
type AggregatorMode int

const (
	// AM_INITIAL reads raw pages and emits intermediate state.
	AM_INITIAL AggregatorMode = iota
	// AM_INTERMEDIATE merges intermediate state into intermediate state.
	AM_INTERMEDIATE
	// AM_FINAL merges intermediate state into the final value.
	AM_FINAL
	// AM_SINGLE reads raw pages and emits the final value.
	AM_SINGLE
)

func (mode AggregatorMode) IsInputRaw() bool {
	return mode == AM_INITIAL || mode == AM_SINGLE
}

func (mode AggregatorMode) IsOutputPartial() bool {
	return mode == AM_INITIAL || mode == AM_INTERMEDIATE
}

func (mode AggregatorMode) String() string {
	switch mode {
	case AM_INITIAL:
		return "initial"
	case AM_INTERMEDIATE:
		return "intermediate"
	case AM_FINAL:
		return "final"
	case AM_SINGLE:
		return "single"
	}
	panic(fmt.Sprintf("usp %d", int(mode)))
}

func ParseAggregatorMode(s string) (AggregatorMode, error) {
	for _, mode := range []AggregatorMode{AM_INITIAL, AM_INTERMEDIATE, AM_FINAL, AM_SINGLE} {
		if mode.String() == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown aggregator mode %q", s)
}
