package handler

import (
	"context"
	"log/slog"
	"strings"
	"taskrunner/pkg/llm"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"
	"taskrunner/pkg/tools"
	"taskrunner/pkg/utils"
	"unicode"
)

const (
	cardImage  = "credit-card.png"
	cardOutput = "credit-card.txt"

	cardInstruction = "Extract the 16-digit credit card number from the image and return only the number with no spaces or dashes."
)

// CardNumber asks the vision model for the number printed on credit-card.png.
type CardNumber struct {
	sb    *sandbox.Sandbox
	model llm.LLMClient
}

func NewCardNumber(sb *sandbox.Sandbox, model llm.LLMClient) *CardNumber {
	return &CardNumber{sb: sb, model: model}
}

func (h *CardNumber) Execute(ctx context.Context, req task.Request) (*task.Result, error) {
	data, err := h.sb.ReadFile(cardImage)
	if err != nil {
		return nil, err
	}
	if err := requireModel(h.model); err != nil {
		return nil, err
	}

	mime := utils.DetectMime(data, cardImage)
	if !utils.IsImageMime(mime) {
		return nil, taskerr.Execution("%s is not an image (%s)", cardImage, mime)
	}

	answer, err := h.model.DescribeImage(ctx, cardInstruction, llm.Image{
		MimeType: mime,
		Base64:   tools.Base64Encode(data),
	})
	if err != nil {
		return nil, modelError(err, "card number extraction")
	}

	number := normalizeDigits(answer)
	if number == "" || strings.IndexFunc(number, func(r rune) bool { return !unicode.IsDigit(r) || r > unicode.MaxASCII }) >= 0 {
		slog.WarnContext(ctx, "Model answer is not a card number", "answer", answer)
		return nil, taskerr.Execution("model did not return a card number")
	}

	if _, err := h.sb.WriteFile(cardOutput, []byte(number)); err != nil {
		return nil, err
	}
	return &task.Result{
		Detail: "card number extracted",
		Output: cardOutput,
	}, nil
}

// normalizeDigits drops whitespace and dashes the model may keep.
func normalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, s)
}
