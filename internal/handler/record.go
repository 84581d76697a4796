package handler

import "encoding/json"

// Record is a validated write.
type Record struct {
	Key   string
	Value string
}

type writeBody struct {
	UserID *string `json:"userid"`
	Value  *string `json:"value"`
}

// ParseRecord validates a write body. It returns a *ValidationError when the
// body is not a JSON object or lacks a non-empty string userid or value.
func ParseRecord(body []byte) (Record, error) {
	var wb writeBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return Record{}, invalid("Invalid request body")
	}
	if wb.UserID == nil || *wb.UserID == "" || wb.Value == nil || *wb.Value == "" {
		return Record{}, invalid("Missing userid or value in the request.")
	}
	return Record{Key: *wb.UserID, Value: *wb.Value}, nil
}
