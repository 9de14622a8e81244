package task

import (
	"net/http"
	"taskrunner/pkg/taskerr"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the uniform outcome of one dispatch. It is built in a single
// place (the Dispatcher) and never partially filled.
type Envelope struct {
	Status    string       `json:"status"`
	Task      string       `json:"task"`
	Detail    string       `json:"detail"`
	Kind      taskerr.Kind `json:"kind,omitempty"`
	Output    string       `json:"output,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// OK reports whether the envelope describes a success.
func (e Envelope) OK() bool {
	return e.Status == StatusSuccess
}

// HTTPStatus maps the envelope onto a 2xx/4xx/5xx status code.
func (e Envelope) HTTPStatus() int {
	if e.OK() {
		return http.StatusOK
	}
	return e.Kind.HTTPStatus()
}

func successEnvelope(reqID, label string, res *Result) Envelope {
	env := Envelope{
		Status:    StatusSuccess,
		Task:      label + " completed",
		RequestID: reqID,
	}
	if res != nil {
		env.Detail = res.Detail
		env.Output = res.Output
	}
	if env.Detail == "" {
		env.Detail = env.Task
	}
	return env
}

func errorEnvelope(reqID, label string, err error) Envelope {
	return Envelope{
		Status:    StatusError,
		Task:      label,
		Detail:    err.Error(),
		Kind:      taskerr.KindOf(err),
		RequestID: reqID,
	}
}
