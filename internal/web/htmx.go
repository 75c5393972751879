package web

import "net/http"

// HTMX header names.
const (
	HXRequest = "HX-Request"
	HXTrigger = "HX-Trigger"
)

// IsHTMXRequest checks if the request was issued by htmx.
func IsHTMXRequest(r *http.Request) bool {
	return r.Header.Get(HXRequest) == "true"
}

// Trigger sends an htmx trigger event with the response.
func Trigger(w http.ResponseWriter, event string) {
	w.Header().Set(HXTrigger, event)
}
