package monitor

import "time"

// Status is the last observed health of every registered dependency.
type Status struct {
	Healthy      bool                       `json:"healthy"`
	Dependencies map[string]DependencyState `json:"dependencies"`
	BufferSize   int                        `json:"buffer_size"`
	LastCheck    time.Time                  `json:"last_check"`
}

type DependencyState struct {
	Up       bool   `json:"up"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}
