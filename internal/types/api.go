package types

// ResponseMeta carries non-blocking metadata alongside successful responses,
// such as deprecation warnings. Absent from the payload when empty.
type ResponseMeta struct {
	Warnings []string `json:"warnings,omitempty"`
}
