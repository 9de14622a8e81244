// Package autoload registers every built-in inference provider.
package autoload

import (
	_ "taskrunner/pkg/llm/gemini"
	_ "taskrunner/pkg/llm/ollama"
	_ "taskrunner/pkg/llm/openailm"
)
