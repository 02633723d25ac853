package ir

// Manifest is the top-level deployment document as evaluated from PKL.
type Manifest struct {
	Deployment string          `pkl:"deployment"`
	Provider   string          `pkl:"provider"`
	Region     string          `pkl:"region"`
	Workers    int             `pkl:"workers"`
	Retry      *RetryConfig    `pkl:"retry"`
	Validation *ValidateConfig `pkl:"validation"`
	Backend    *BackendConfig  `pkl:"backend"`
	Resources  []*ResourceSpec `pkl:"resources"`
}

// RetryConfig is the manifest-level override for the engine retry policy.
// Durations are Go duration strings.
type RetryConfig struct {
	MaxAttempts int    `pkl:"maxAttempts"`
	BaseDelay   string `pkl:"baseDelay"`
	MaxDelay    string `pkl:"maxDelay"`
}

// ValidateConfig is the manifest-level override for readiness polling.
type ValidateConfig struct {
	Interval string `pkl:"interval"`
	Deadline string `pkl:"deadline"`
}

// BackendConfig selects where deployment state is persisted.
type BackendConfig struct {
	Type   string            `pkl:"type"` // "local" or "s3"
	Config map[string]string `pkl:"config"`
}
