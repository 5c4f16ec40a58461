package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// Pauses is a fixed set of paused module names, loaded from node config.
type Pauses map[string]bool

// IsPaused implements PauseView. Module names are case-insensitive.
func (p Pauses) IsPaused(module string) bool {
	if len(p) == 0 {
		return false
	}
	return p[strings.ToLower(strings.TrimSpace(module))]
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
