package models

import "time"

// Participant is one side of an email exchange. Email is always present;
// display name is whatever the provider gave us.
type Participant struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Message is a single email within a thread. Bodies arrive already
// HTML-cleaned and markdown-normalized by the mail provider.
type Message struct {
	ID       string        `json:"id"`
	ThreadID string        `json:"thread_id"`
	From     []Participant `json:"from"`
	To       []Participant `json:"to"`
	CC       []Participant `json:"cc,omitempty"`
	Subject  string        `json:"subject"`
	Date     time.Time     `json:"date"`
	Body     string        `json:"body"`
}

// Thread is a mail thread as the provider reports it: message ids in
// order plus the current label set, workflow and system labels mixed.
type Thread struct {
	ID         string   `json:"id"`
	MessageIDs []string `json:"message_ids"`
	Labels     []string `json:"labels"`
}

// Issue is what the tracker returns after creation. Opaque to the
// pipelines beyond the routing inputs that produced it.
type Issue struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	URL        string `json:"url"`
}
