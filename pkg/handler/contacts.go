package handler

import (
	"bytes"
	"cmp"
	"context"
	stdjson "encoding/json"
	"fmt"
	"slices"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"

	jsoniter "github.com/json-iterator/go"
)

const contactsFile = "contacts.json"

type contactKey struct {
	FirstName any `json:"first_name"`
	LastName  any `json:"last_name"`
}

type contact struct {
	raw   jsoniter.RawMessage
	first string
	last  string
}

func keyString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

// SortContacts orders contacts.json by first_name, breaking ties by
// last_name, and rewrites it in place. Objects are kept byte-for-byte apart
// from indentation, so field order and number formatting survive.
type SortContacts struct {
	sb *sandbox.Sandbox
}

func NewSortContacts(sb *sandbox.Sandbox) *SortContacts {
	return &SortContacts{sb: sb}
}

func (h *SortContacts) Execute(ctx context.Context, req task.Request) (*task.Result, error) {
	data, err := h.sb.ReadFile(contactsFile)
	if err != nil {
		return nil, err
	}

	var raws []jsoniter.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "%s is not a JSON array", contactsFile)
	}

	contacts := make([]contact, 0, len(raws))
	for i, raw := range raws {
		var k contactKey
		if err := json.Unmarshal(raw, &k); err != nil {
			return nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "contact %d is not an object", i)
		}
		contacts = append(contacts, contact{raw: raw, first: keyString(k.FirstName), last: keyString(k.LastName)})
	}

	// Stable sort by last name, then stable sort by first name: first name
	// dominates and equal first names keep last-name order.
	slices.SortStableFunc(contacts, func(a, b contact) int { return cmp.Compare(a.last, b.last) })
	slices.SortStableFunc(contacts, func(a, b contact) int { return cmp.Compare(a.first, b.first) })

	sorted := make([]jsoniter.RawMessage, len(contacts))
	for i, c := range contacts {
		sorted[i] = c.raw
	}
	compact, err := json.Marshal(sorted)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "cannot encode contacts")
	}

	var out bytes.Buffer
	if err := stdjson.Indent(&out, compact, "", "    "); err != nil {
		return nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "cannot indent contacts")
	}
	out.WriteByte('\n')

	if _, err := h.sb.WriteFile(contactsFile, out.Bytes()); err != nil {
		return nil, err
	}
	return &task.Result{
		Detail: fmt.Sprintf("%d contacts sorted", len(contacts)),
		Output: contactsFile,
	}, nil
}
