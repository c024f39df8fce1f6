package secrets

import (
	"strings"

	"github.com/spf13/viper"
)

// wellKnownKeys are always bound to the environment so they resolve
// even without a config file.
var wellKnownKeys = []string{
	"HONCHO_API_KEY",
	"HONCHO_WORKSPACE_ID",
	"HONCHO_USER_ID",
}

// ViperStore merges a config file with environment variables, in the
// usual viper precedence (env over file).
type ViperStore struct {
	v *viper.Viper
}

// NewViperStore creates a store reading the given config file. An empty
// path falls back to ./honcho.yaml when present.
func NewViperStore(cfgFile string) *ViperStore {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("honcho")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	for _, key := range wellKnownKeys {
		_ = v.BindEnv(strings.ToLower(key), key)
	}

	// A missing config file is fine; env bindings still work.
	_ = v.ReadInConfig()

	return &ViperStore{v: v}
}

// Load returns all resolved settings with keys normalized to
// upper-snake form (HONCHO_API_KEY style).
func (s *ViperStore) Load() (map[string]string, error) {
	out := make(map[string]string)
	for _, key := range s.v.AllKeys() {
		val := s.v.GetString(key)
		if val == "" {
			continue
		}
		norm := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		out[norm] = val
	}
	return out, nil
}
