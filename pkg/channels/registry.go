package channels

import (
	"sort"
	"sync"
	"taskrunner/pkg/api"
	"taskrunner/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

// ChannelFactory builds one kind of transport from its raw config block.
type ChannelFactory interface {
	// Create returns (nil, nil) when the channel is configured but disabled.
	Create(rawConfig jsoniter.RawMessage, system *config.SystemConfig) (api.Channel, error)
}

var (
	channelRegistry = make(map[string]ChannelFactory)
	registryMu      sync.RWMutex
)

// RegisterChannel adds a factory under name. Called from the channel
// package's init().
func RegisterChannel(name string, factory ChannelFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	channelRegistry[name] = factory
}

// GetChannelFactory retrieves a registered ChannelFactory by name.
func GetChannelFactory(name string) (ChannelFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := channelRegistry[name]
	return f, ok
}

// Names lists the registered channel kinds, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(channelRegistry))
	for name := range channelRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
