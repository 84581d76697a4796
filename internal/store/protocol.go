package store

// Line-delimited JSON protocol spoken between Remote and the store daemon.
// Each request gets exactly one response on the same connection.

const (
	OpGet    = "get"
	OpPut    = "put"
	OpDelete = "delete"
)

type Request struct {
	Op    string `json:"op"` // "get" | "put" | "delete"
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

type Response struct {
	OK    bool   `json:"ok"`
	Found bool   `json:"found,omitempty"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}
