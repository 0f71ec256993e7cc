package config

// Keys for settings that may be overridden at runtime through the state
// store. Everything else requires a restart.
const (
	KeyAutoDispatch       = "auto_dispatch"
	KeyMinDispatchBattery = "min_dispatch_battery"
	KeyMaxActiveMissions  = "max_active_missions"
	KeyWeatherBypass      = "weather_bypass"
	KeyCodeTTL            = "code_ttl"
)

// RuntimeKeys lists every key the API accepts for runtime overrides.
var RuntimeKeys = []string{
	KeyAutoDispatch,
	KeyMinDispatchBattery,
	KeyMaxActiveMissions,
	KeyWeatherBypass,
	KeyCodeTTL,
}

// RuntimeKey reports whether key is a known runtime override.
func RuntimeKey(key string) bool {
	for _, k := range RuntimeKeys {
		if k == key {
			return true
		}
	}
	return false
}
