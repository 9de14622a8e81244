package gateway

import (
	"fmt"
	"taskrunner/pkg/config"
	"taskrunner/pkg/monitor"
)

// GatewayBuilder assembles a GatewayManager from pre-built parts and starts it.
type GatewayBuilder struct {
	gw           *GatewayManager
	monitor      monitor.Monitor
	systemConfig *config.SystemConfig
	engine       TaskEngine
	reader       FileReader
	channels     []Channel
}

// NewGatewayBuilder creates a fresh GatewayBuilder.
func NewGatewayBuilder() *GatewayBuilder {
	return &GatewayBuilder{
		gw: NewGatewayManager(),
	}
}

// WithMonitor injects a monitor, started during Build.
func (b *GatewayBuilder) WithMonitor(m monitor.Monitor) *GatewayBuilder {
	b.monitor = m
	return b
}

// WithSystemConfig provides the task deadline and other engine parameters.
func (b *GatewayBuilder) WithSystemConfig(cfg *config.SystemConfig) *GatewayBuilder {
	b.systemConfig = cfg
	return b
}

// WithEngine sets the dispatcher every submitted task goes to.
func (b *GatewayBuilder) WithEngine(e TaskEngine) *GatewayBuilder {
	b.engine = e
	return b
}

// WithReader sets the file reader behind Read.
func (b *GatewayBuilder) WithReader(r FileReader) *GatewayBuilder {
	b.reader = r
	return b
}

// WithChannel adds pre-built channel instances.
func (b *GatewayBuilder) WithChannel(channels ...Channel) *GatewayBuilder {
	b.channels = append(b.channels, channels...)
	return b
}

// Build wires everything together and starts the monitor and all channels.
func (b *GatewayBuilder) Build() (*GatewayManager, error) {
	if b.engine == nil {
		return nil, fmt.Errorf("gateway requires a task engine")
	}
	b.gw.SetEngine(b.engine)
	b.gw.SetReader(b.reader)

	if b.systemConfig != nil {
		b.gw.WithSystemConfig(b.systemConfig)
	}

	if b.monitor != nil {
		b.gw.SetMonitor(b.monitor)
		if err := b.monitor.Start(); err != nil {
			return nil, fmt.Errorf("failed to start monitor: %w", err)
		}
	}

	for _, c := range b.channels {
		if c != nil {
			b.gw.Register(c)
		}
	}

	if err := b.gw.StartAll(); err != nil {
		b.gw.StopAll()
		return nil, fmt.Errorf("failed to start channels: %w", err)
	}

	return b.gw, nil
}
