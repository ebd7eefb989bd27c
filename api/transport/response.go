package transport

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope wraps every API response. Error responses carry a machine-readable
// code (INVALID, FORBIDDEN, CONFLICT, ...) next to the human message.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// PageMeta describes the window returned by a list endpoint.
type PageMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{Status: StatusSuccess, Data: data, Meta: meta}
}

// NewList wraps a page of results; Count is filled from the page length when unset.
func NewList[T any](items []T, meta PageMeta) Envelope {
	if items == nil {
		items = []T{}
	}
	if meta.Count == 0 {
		meta.Count = len(items)
	}
	return NewSuccess(items, meta)
}

// NewError builds an error envelope. details, when non-nil, lands in meta.
func NewError(code, message string, details interface{}) Envelope {
	return Envelope{Status: StatusError, Code: code, Error: message, Meta: details}
}
