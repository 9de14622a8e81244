package telegram

import (
	"fmt"
	"taskrunner/pkg/api"
	"taskrunner/pkg/channels"
	"taskrunner/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TelegramFactory builds the Telegram channel.
type TelegramFactory struct{}

// Create implements channels.ChannelFactory.
func (f *TelegramFactory) Create(rawConfig jsoniter.RawMessage, system *config.SystemConfig) (api.Channel, error) {
	var tgCfg TelegramConfig
	if err := json.Unmarshal(rawConfig, &tgCfg); err != nil {
		return nil, fmt.Errorf("failed to parse telegram config: %w", err)
	}

	if tgCfg.Token == "" {
		return nil, fmt.Errorf("missing telegram token")
	}

	limit := DefaultMessageLimit
	if system != nil && system.TelegramMessageLimit > 0 {
		limit = system.TelegramMessageLimit
	}
	return NewTelegramChannel(tgCfg, limit)
}

func init() {
	channels.RegisterChannel("telegram", &TelegramFactory{})
}
