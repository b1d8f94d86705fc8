package domain

import "time"

// Request is a call made through a binding table entry
type Request struct {
	Method   string   // Binding table key, "<service full name>/<method>"
	Bodies   []string // JSON payloads; one for unary and server-streaming calls
	Metadata map[string]string
}

// Response collects what came back from a call
type Response struct {
	Bodies   []string // JSON payloads; one for unary and client-streaming calls
	Headers  map[string]string
	Trailers map[string]string
	Duration time.Duration
}
