package plan

import (
	"fmt"
	"strings"

	"github.com/cwbudde/blendopt/internal/opt"
)

// Mode selects which optimizers a run uses.
type Mode string

const (
	ModeDE     Mode = "de"
	ModeGA     Mode = "ga"
	ModeBoth   Mode = "both"
	ModeMayfly Mode = "mayfly"
	ModeAll    Mode = "all"
)

// ParseMode accepts a mode name case-insensitively. "deap" is an alias for
// ModeGA and an empty string means ModeBoth.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeBoth, nil
	case "deap":
		return ModeGA, nil
	case ModeDE, ModeGA, ModeBoth, ModeMayfly, ModeAll:
		return m, nil
	default:
		return "", fmt.Errorf("unknown optimizer mode %q (want de, ga, deap, both, mayfly or all)", s)
	}
}

// optimizers lists the optimizers a mode runs in tie-break order.
func (m Mode) optimizers() []string {
	switch m {
	case ModeDE:
		return []string{opt.NameDE}
	case ModeGA:
		return []string{opt.NameGA}
	case ModeMayfly:
		return []string{opt.NameMayfly}
	case ModeAll:
		return []string{opt.NameDE, opt.NameGA, opt.NameMayfly}
	default:
		return []string{opt.NameDE, opt.NameGA}
	}
}
