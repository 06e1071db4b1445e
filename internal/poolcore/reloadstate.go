package poolcore

// ReloadState is the five-state hot-reload machine a pool moves through
// during a config reload. Defined here (not in the registry package)
// since Pool carries its own state and the registry only drives
// transitions on it.
type ReloadState int

const (
	// StateOldAndActive is the steady state: accepts clients, routes traffic.
	StateOldAndActive ReloadState = iota
	// StateOldToShutdown: matched to a new pool, about to stop accepting.
	StateOldToShutdown
	// StateOldDraining: listener closed (or, with a same-endpoint
	// counterpart, kept open but Quiescing), existing clients still draining.
	StateOldDraining
	// StateNewWaitForOld: new pool, listener not yet bound, waiting on counterpart.
	StateNewWaitForOld
	// StateNew: new pool fully active, counterpart link cleared.
	StateNew
)

func (s ReloadState) String() string {
	switch s {
	case StateOldAndActive:
		return "OLD_AND_ACTIVE"
	case StateOldToShutdown:
		return "OLD_TO_SHUTDOWN"
	case StateOldDraining:
		return "OLD_DRAINING"
	case StateNewWaitForOld:
		return "NEW_WAIT_FOR_OLD"
	case StateNew:
		return "NEW"
	default:
		return "UNKNOWN"
	}
}

// IsOld reports whether s is one of the OLD_* states.
func (s ReloadState) IsOld() bool {
	return s == StateOldAndActive || s == StateOldToShutdown || s == StateOldDraining
}

// IsTransitional reports whether s is a state finish_replacement should
// keep polling on: anything but the steady OLD_AND_ACTIVE / NEW states.
func (s ReloadState) IsTransitional() bool {
	return s == StateOldToShutdown || s == StateOldDraining || s == StateNewWaitForOld
}
