package models

// CaptureResult is the output of AI cleanup over a raw captured note.
// CleanedContent is "title\n\ndescription", description optional.
type CaptureResult struct {
	CleanedContent string `json:"cleaned_content"`
	IsFeedback     bool   `json:"is_feedback"`
}

// ClassifierResult carries the namespaced content labels assigned to an
// email, plus a human-readable reason (diagnostic on degraded results).
type ClassifierResult struct {
	Labels []string `json:"labels"`
	Reason string   `json:"reason"`
}

// ClassifierInput is the email context handed to the classifier.
type ClassifierInput struct {
	Subject string        `json:"subject"`
	From    []Participant `json:"from"`
	To      []Participant `json:"to"`
	CC      []Participant `json:"cc,omitempty"`
	Date    string        `json:"date"`
	Body    string        `json:"body"`
}
