package types

import "time"

// Options contains the agent options shared by the check and run commands.
type Options struct {
	// Remote desired state
	ManifestURL string
	Platform    string

	// Local install layout
	Dist        string
	Identifiers []string
	StateFile   string

	// Credentials substituted into application configs
	APIKey            string
	ClientIDs         map[string]string
	ClientIDNamespace string

	// Scheduling and transport
	Interval             time.Duration
	HTTPTimeout          time.Duration
	FetchRetryMaxElapsed time.Duration

	// Process supervision
	StopSignal string
}
