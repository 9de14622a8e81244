package handler

import (
	"context"
	"regexp"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"
)

const (
	emailInput  = "email.txt"
	emailOutput = "email-sender.txt"
)

var senderPattern = regexp.MustCompile(`From: .*?<(.*?)>`)

// EmailSender extracts the sender address from the From: header of email.txt.
type EmailSender struct {
	sb *sandbox.Sandbox
}

func NewEmailSender(sb *sandbox.Sandbox) *EmailSender {
	return &EmailSender{sb: sb}
}

func (h *EmailSender) Execute(ctx context.Context, req task.Request) (*task.Result, error) {
	data, err := h.sb.ReadFile(emailInput)
	if err != nil {
		return nil, err
	}

	m := senderPattern.FindSubmatch(data)
	if m == nil {
		return nil, taskerr.NotFound("no sender address in %s", emailInput)
	}
	sender := string(m[1])

	if _, err := h.sb.WriteFile(emailOutput, []byte(sender)); err != nil {
		return nil, err
	}
	return &task.Result{
		Detail: "sender " + sender,
		Output: emailOutput,
	}, nil
}
