// Package handler holds the action handlers and the order in which they are
// matched. Every handler works only inside the sandbox it is given and
// reports failures as taskerr kinds.
package handler

import (
	"taskrunner/pkg/config"
	"taskrunner/pkg/llm"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/task"
	"taskrunner/pkg/tools"
)

// Deps are the collaborators shared by the handlers.
type Deps struct {
	Sandbox    *sandbox.Sandbox
	Runner     tools.Runner
	Downloader tools.Downloader
	// Model may be nil; handlers that need it then fail with
	// HandlerExecutionError wrapping llm.ErrNotConfigured.
	Model     llm.LLMClient
	Datagen   config.DatagenConfig
	Formatter config.FormatterConfig
}

// Register installs every handler into reg. The order below is the match
// order: predicates overlap (a task mentioning "extract" and "email" also
// mentions "extract"), and the first registered match wins.
//
//	 1 datagen           A1   "install uv" + "datagen.py"
//	 2 format            A2   "format" + "prettier"
//	 3 count-weekday     A3   "count" + a weekday plural
//	 4 sort-contacts     A4   "sort" + "contact"
//	 5 recent-logs       A5   "logs"
//	 6 docs-index        A6   "markdown" + "extract"
//	 7 email-sender      A7   "email" + "extract"
//	 8 card-number       A8   "extract" + "card"
//	 9 similar-comments  A9   "similar" + "comment"
//	10 ticket-sales      A10  "total sales" + "gold"
func Register(reg *task.Registry, d Deps) error {
	entries := []struct {
		id, label string
		match     task.Predicate
		h         task.Handler
	}{
		{"datagen", "A1", task.AllOf("install uv", "datagen.py"), NewDatagen(d.Sandbox, d.Runner, d.Downloader, d.Datagen)},
		{"format", "A2", task.AllOf("format", "prettier"), NewFormat(d.Sandbox, d.Runner, d.Formatter)},
		{"count-weekday", "A3", task.Both(task.AllOf("count"), task.AnyOf(weekdayPlurals()...)), NewCountWeekday(d.Sandbox)},
		{"sort-contacts", "A4", task.AllOf("sort", "contact"), NewSortContacts(d.Sandbox)},
		{"recent-logs", "A5", task.AllOf("logs"), NewRecentLogs(d.Sandbox)},
		{"docs-index", "A6", task.AllOf("markdown", "extract"), NewDocsIndex(d.Sandbox)},
		{"email-sender", "A7", task.AllOf("email", "extract"), NewEmailSender(d.Sandbox)},
		{"card-number", "A8", task.AllOf("extract", "card"), NewCardNumber(d.Sandbox, d.Model)},
		{"similar-comments", "A9", task.AllOf("similar", "comment"), NewSimilarComments(d.Sandbox, d.Model)},
		{"ticket-sales", "A10", task.AllOf("total sales", "gold"), NewTicketSales(d.Sandbox)},
	}

	for _, e := range entries {
		if err := reg.Register(e.id, e.label, e.match, e.h); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry populated by Register.
func NewRegistry(d Deps) (*task.Registry, error) {
	reg := task.NewRegistry()
	if err := Register(reg, d); err != nil {
		return nil, err
	}
	return reg, nil
}
