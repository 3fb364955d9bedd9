package download

import (
	"fmt"
	"net/http"
)

// Error reports a non-ok response from the artifact host.
type Error struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *Error) Error() string {
	text := http.StatusText(e.StatusCode)
	if text == "" {
		text = e.Status
	}
	return fmt.Sprintf("Unexpected response: %s. From url: %s", text, e.URL)
}
