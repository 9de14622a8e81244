package gateway

import (
	"taskrunner/pkg/api"
)

// Aliases so channel code can depend on the gateway package alone.
type Channel = api.Channel
type TaskContext = api.TaskContext
type SessionContext = api.SessionContext
type TaskEngine = api.TaskEngine
type FileReader = api.FileReader
