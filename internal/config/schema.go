package config

// Config is the top-level YAML structure.
type Config struct {
	Version string     `yaml:"version"`
	Server  ServerConf `yaml:"server"`
	Log     LogConf    `yaml:"log"`
	Bus     BusConf    `yaml:"bus"`
	Health  HealthConf `yaml:"health"`
	Steps   StepsConf  `yaml:"steps"`
	Report  ReportConf `yaml:"report"`
}

// ServerConf holds the HTTP listener settings.
type ServerConf struct {
	Addr string `yaml:"addr"`
}

// LogConf is hot-reloadable.
type LogConf struct {
	Level string `yaml:"level"` // debug|info|warn|error
}

// BusConf holds dispatcher and async queue settings.
type BusConf struct {
	MaxDepth   int    `yaml:"max_depth"`
	QueueDepth int    `yaml:"queue_depth"`
	FullPolicy string `yaml:"full_policy"` // reject|block
}

type HealthConf struct {
	MaxHealth int `yaml:"max_health"`
}

type StepsConf struct {
	LogEvery int `yaml:"log_every"`
}

// ReportConf controls automatic report generation.
type ReportConf struct {
	// OnGameEnded is a pointer so an absent key can default to true.
	OnGameEnded *bool `yaml:"on_game_ended"`
}

// GenerateOnGameEnded reports whether game_ended should trigger a report.
func (r ReportConf) GenerateOnGameEnded() bool {
	return r.OnGameEnded == nil || *r.OnGameEnded
}
