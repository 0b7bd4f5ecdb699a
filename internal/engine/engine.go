package engine

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"hempies/coasync/internal/destination"
	"hempies/coasync/internal/domain"
	"hempies/coasync/internal/filter"
	"hempies/coasync/internal/notify"
)

// logSink receives the user-visible per-item log lines. Satisfied by
// state.Store.
type logSink interface {
	AppendLog(ctx context.Context, message string) error
}

// Engine reconciles one catalog item against the destination: create,
// update, hide or skip, with notification side effects. Decision order,
// first match wins: archived, excluded category, out of stock, active
// upsert.
type Engine struct {
	adapter  destination.Adapter
	filter   *filter.Filter
	notifier notify.Notifier
	sink     logSink
}

func New(adapter destination.Adapter, f *filter.Filter, notifier notify.Notifier, sink logSink) *Engine {
	return &Engine{
		adapter:  adapter,
		filter:   f,
		notifier: notifier,
		sink:     sink,
	}
}

func (e *Engine) Process(ctx context.Context, item domain.CatalogItem) domain.Action {
	fullName := item.FullName()
	e.logf(ctx, "Processing SKU: %s - %s (Qty: %d, Archived: %v)",
		item.SKU, fullName, item.Quantity, item.IsArchived)

	if item.IsArchived {
		e.logf(ctx, "Skipped: %s - Item is archived in Square", item.SKU)
		return e.hideExisting(ctx, item, domain.StatusArchived, "archived", domain.ActionSetDraftArchived)
	}

	if e.filter.Excluded(item) {
		persisted, err := e.adapter.MarkExcluded(ctx, item)
		if err != nil {
			e.logf(ctx, "Error: Failed to record exclusion for SKU %s: %v", item.SKU, err)
			return domain.ActionError
		}
		if persisted {
			e.logf(ctx, "Excluded: %s - Recorded with excluded status", item.SKU)
			return domain.ActionUpdated
		}
		e.logf(ctx, "Skipped: %s - In excluded category", item.SKU)
		return domain.ActionSkipped
	}

	if item.Quantity <= 0 {
		e.logf(ctx, "Skipped: %s - Out of stock (Qty: %d)", item.SKU, item.Quantity)
		return e.hideExisting(ctx, item, domain.StatusOutOfStock, "out of stock", domain.ActionSetDraftOutOfStock)
	}

	record, err := e.adapter.FindBySKU(ctx, item.SKU)
	if err != nil {
		e.logf(ctx, "Error: Lookup failed for SKU %s: %v", item.SKU, err)
		return domain.ActionError
	}

	if record != nil {
		if err := e.adapter.Update(ctx, record.ID, item, domain.StatusPending, true); err != nil {
			e.logf(ctx, "Error: Failed to update SKU %s: %v", item.SKU, err)
			return domain.ActionError
		}
		e.logf(ctx, "Updated: %s - Set to pending and showing COA (in stock)", item.SKU)

		// The record transitioned back into stock.
		if record.Status.Hidden() {
			e.notify(ctx, item.SKU, fullName)
		}
		return domain.ActionUpdated
	}

	created, err := e.adapter.Create(ctx, item)
	if err != nil {
		e.logf(ctx, "Error: Failed to create product for SKU %s: %v", item.SKU, err)
		return domain.ActionError
	}
	e.logf(ctx, "Created: %s - New product created with ID %s", item.SKU, created.ID)
	e.notify(ctx, item.SKU, fullName)
	return domain.ActionCreated
}

// hideExisting transitions an existing record into a hidden status;
// absent records are never created for archived or out-of-stock items.
func (e *Engine) hideExisting(ctx context.Context, item domain.CatalogItem, status domain.Status, reason string, action domain.Action) domain.Action {
	record, err := e.adapter.FindBySKU(ctx, item.SKU)
	if err != nil {
		e.logf(ctx, "Error: Lookup failed for SKU %s: %v", item.SKU, err)
		return domain.ActionError
	}
	if record == nil {
		return domain.ActionSkipped
	}
	if err := e.adapter.SetStatus(ctx, record.ID, status, false); err != nil {
		e.logf(ctx, "Error: Failed to hide SKU %s: %v", item.SKU, err)
		return domain.ActionError
	}
	e.logf(ctx, "Updated: %s - Set to draft (%s)", item.SKU, reason)
	return action
}

func (e *Engine) notify(ctx context.Context, sku, name string) {
	if e.notifier == nil {
		return
	}
	if e.notifier.NotifyReviewNeeded(sku, name) {
		e.logf(ctx, "Notification email sent for SKU: %s", sku)
	} else {
		e.logf(ctx, "Email notification skipped (disabled in settings) for SKU: %s", sku)
	}
}

func (e *Engine) logf(ctx context.Context, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	log.Info(message)
	if e.sink != nil {
		if err := e.sink.AppendLog(ctx, message); err != nil {
			log.Warnf("Failed to append status log: %v", err)
		}
	}
}
