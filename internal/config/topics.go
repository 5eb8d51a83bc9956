package config

const (
	// TopicRunCompleted carries one JSON-encoded run summary per finished run.
	TopicRunCompleted = "index.run.completed"
)
