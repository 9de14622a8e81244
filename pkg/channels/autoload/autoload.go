// Package autoload registers every built-in channel factory.
package autoload

import (
	_ "taskrunner/pkg/channels/telegram"
	_ "taskrunner/pkg/channels/web"
)
