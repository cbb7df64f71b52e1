package config

// Config holds all configuration for the application.
type Config struct {
	DBName          string
	Port            string
	Slack           SlackConfig
	Turso           TursoConfig
	ProjectID       string
	Scheduling      SchedulingConfig
	CacheMaxEntries int
}
type SlackConfig struct {
	Token     string
	ChannelID string
}
type TursoConfig struct {
	PrimaryURL string
	AuthToken  string
}

// SchedulingConfig carries the matching policy knobs.
type SchedulingConfig struct {
	// RosterSize is the full-roster size applied to teams that don't set their own.
	RosterSize int
	// WithdrawPolicy is either "overall" or "own-side".
	WithdrawPolicy string
}
