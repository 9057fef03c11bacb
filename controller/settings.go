package controller

// SettingsBucket is the DB bucket for persisted run defaults.
const SettingsBucket = "settings"

// Settings are the operator-tunable defaults. Interactive runs pre-fill
// prompts from them; scheduled runs answer the parameter gate from them.
type Settings struct {
	ID           string `json:"id"`
	LogPath      string `json:"log_path"`
	SampleName   string `json:"sample_name"`
	StepInterval int    `json:"step_interval"` // seconds
	LoopCount    int    `json:"loop_count"`

	// RunRule is an RRULE string for unattended sequence runs, e.g.
	// "FREQ=DAILY". Empty disables scheduled runs.
	RunRule string `json:"run_rule"`
	// MonitorCron is a cron spec for background snapshot logging to
	// MonitorLog. Empty disables the monitor.
	MonitorCron string `json:"monitor_cron"`
	MonitorLog  string `json:"monitor_log"`
}

// defaultSettings are the values seeded on first start.
func defaultSettings() Settings {
	return Settings{
		ID:           "default",
		SampleName:   "sample_name",
		StepInterval: 180,
		LoopCount:    6,
	}
}

// Settings loads the persisted defaults.
func (c *Controller) Settings() (Settings, error) {
	var s Settings
	return s, c.db.Get(SettingsBucket, "default", &s)
}

// UpdateSettings persists new defaults and restarts the schedulers so rule
// changes take effect immediately.
func (c *Controller) UpdateSettings(s Settings) error {
	s.ID = "default"
	if err := c.db.Put(SettingsBucket, s.ID, &s); err != nil {
		return err
	}
	c.restartSchedules(s)
	return nil
}

// bootstrapSettings ensures a default settings record exists.
func (c *Controller) bootstrapSettings() error {
	if err := c.db.CreateBucket(SettingsBucket); err != nil {
		return err
	}
	var s Settings
	if err := c.db.Get(SettingsBucket, "default", &s); err == nil {
		return nil
	}
	def := defaultSettings()
	return c.db.Put(SettingsBucket, def.ID, &def)
}
