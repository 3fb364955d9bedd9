package api

// CommandError is a user-facing failure with a stable code.
type CommandError struct {
	Code    string
	Message string
}

func (e *CommandError) Error() string {
	return e.Message
}
