package handler

import (
	"context"
	"log/slog"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/store"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"
)

const (
	salesDB     = "ticket-sales.db"
	salesOutput = "ticket-sales-gold.txt"
	salesQuery  = "SELECT SUM(units * price) FROM tickets WHERE type = ?"
	salesType   = "Gold"
)

// TicketSales totals units*price of Gold tickets in ticket-sales.db.
type TicketSales struct {
	sb *sandbox.Sandbox
}

func NewTicketSales(sb *sandbox.Sandbox) *TicketSales {
	return &TicketSales{sb: sb}
}

func (h *TicketSales) Execute(ctx context.Context, req task.Request) (*task.Result, error) {
	dbPath, info, err := h.sb.Stat(salesDB)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, taskerr.NotFound("%s is a directory", salesDB)
	}

	db, err := store.OpenReadOnly(dbPath)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "cannot open %s", salesDB)
	}
	defer db.Close()

	total, err := db.QueryScalar(ctx, salesQuery, salesType)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "sales query failed")
	}

	value := total.String()
	if total.IsNull() {
		slog.InfoContext(ctx, "No matching tickets", "type", salesType)
		value = "0"
	}

	if _, err := h.sb.WriteFile(salesOutput, []byte(value+"\n")); err != nil {
		return nil, err
	}
	return &task.Result{
		Detail: salesType + " sales total " + value,
		Output: salesOutput,
	}, nil
}
