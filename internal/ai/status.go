package ai

// Status is the result of executing a TreeNode for one AI during one tick.
type Status int

// The numeric values are part of the script API and the debug protocol.
const (
	Unknown Status = iota
	CannotExecute
	Running
	Finished
	Failed
	Exception
)

var statusNames = [...]string{
	Unknown:       "UNKNOWN",
	CannotExecute: "CANNOTEXECUTE",
	Running:       "RUNNING",
	Finished:      "FINISHED",
	Failed:        "FAILED",
	Exception:     "EXCEPTION",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	return s >= Unknown && s <= Exception
}

// StatusNames returns the script-visible global names mapped to their values.
func StatusNames() map[string]Status {
	m := make(map[string]Status, len(statusNames))
	for i, name := range statusNames {
		m[name] = Status(i)
	}
	return m
}
