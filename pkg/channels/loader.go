package channels

import (
	"log/slog"
	"sort"
	"taskrunner/pkg/api"
	"taskrunner/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

// LoadFromConfig builds a channel for every configured block with a known
// factory. Unknown names and failing factories are logged and skipped so one
// bad block does not keep the others down.
func LoadFromConfig(configs map[string]jsoniter.RawMessage, system *config.SystemConfig) []api.Channel {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []api.Channel
	for _, name := range names {
		factory, ok := GetChannelFactory(name)
		if !ok {
			slog.Warn("Unknown channel type", "name", name)
			continue
		}

		channel, err := factory.Create(configs[name], system)
		if err != nil {
			slog.Error("Failed to create channel", "name", name, "error", err)
			continue
		}
		if channel == nil {
			continue
		}

		out = append(out, channel)
		slog.Info("Channel loaded", "name", name)
	}
	return out
}
