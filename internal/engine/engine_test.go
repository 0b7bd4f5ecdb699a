package engine

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hempies/coasync/internal/destination"
	"hempies/coasync/internal/domain"
	"hempies/coasync/internal/filter"
	"hempies/coasync/internal/state"
)

// fakeAdapter is an in-memory destination keyed by SKU.
type fakeAdapter struct {
	records map[string]*destination.Record
	nextID  int

	persistExclusions bool
	failWrites        bool

	statusCalls  int
	updateCalls  int
	createCalls  int
	excludeCalls int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{records: make(map[string]*destination.Record)}
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) FindBySKU(ctx context.Context, sku string) (*destination.Record, error) {
	if rec, ok := f.records[sku]; ok {
		copied := *rec
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeAdapter) Create(ctx context.Context, item domain.CatalogItem) (*destination.Record, error) {
	f.createCalls++
	if f.failWrites {
		return nil, errors.New("write refused")
	}
	f.nextID++
	rec := &destination.Record{
		ID:       strconv.Itoa(f.nextID),
		SKU:      item.SKU,
		Name:     item.FullName(),
		Status:   domain.StatusPending,
		Quantity: item.Quantity,
	}
	f.records[item.SKU] = rec
	return rec, nil
}

func (f *fakeAdapter) Update(ctx context.Context, id string, item domain.CatalogItem, status domain.Status, showCOA bool) error {
	f.updateCalls++
	if f.failWrites {
		return errors.New("write refused")
	}
	rec := f.records[item.SKU]
	rec.Name = item.FullName()
	rec.Status = status
	rec.Quantity = item.Quantity
	return nil
}

func (f *fakeAdapter) SetStatus(ctx context.Context, id string, status domain.Status, showCOA bool) error {
	f.statusCalls++
	if f.failWrites {
		return errors.New("write refused")
	}
	for _, rec := range f.records {
		if rec.ID == id {
			rec.Status = status
		}
	}
	return nil
}

func (f *fakeAdapter) MarkExcluded(ctx context.Context, item domain.CatalogItem) (bool, error) {
	f.excludeCalls++
	if !f.persistExclusions {
		return false, nil
	}
	if rec, ok := f.records[item.SKU]; ok {
		rec.Status = domain.StatusExcluded
		return true, nil
	}
	f.nextID++
	f.records[item.SKU] = &destination.Record{
		ID:     strconv.Itoa(f.nextID),
		SKU:    item.SKU,
		Name:   item.FullName(),
		Status: domain.StatusExcluded,
	}
	return true, nil
}


type fakeNotifier struct {
	enabled bool
	sent    []string
}

func (f *fakeNotifier) NotifyReviewNeeded(sku, name string) bool {
	if !f.enabled {
		return false
	}
	f.sent = append(f.sent, sku)
	return true
}

func newEngine(adapter destination.Adapter, excluded []string, notifier *fakeNotifier) (*Engine, *state.MemoryStore) {
	store := state.NewMemoryStore()
	return New(adapter, filter.New(excluded), notifier, store), store
}

func item(sku string, qty int) domain.CatalogItem {
	return domain.CatalogItem{
		VariationID:   "var-" + sku,
		SKU:           sku,
		ItemName:      "Gummies",
		VariationName: "500mg",
		CategoryIDs:   []string{"catid"},
		CategoryNames: []string{"Edibles"},
		Quantity:      qty,
	}
}

func TestProcessCreatesNewInStockItem(t *testing.T) {
	adapter := newFakeAdapter()
	notifier := &fakeNotifier{enabled: true}
	eng, _ := newEngine(adapter, nil, notifier)

	action := eng.Process(context.Background(), item("SKU-1", 3))

	assert.Equal(t, domain.ActionCreated, action)
	require.Contains(t, adapter.records, "SKU-1")
	assert.Equal(t, domain.StatusPending, adapter.records["SKU-1"].Status)
	assert.Equal(t, "Gummies - 500mg", adapter.records["SKU-1"].Name)
	assert.Equal(t, []string{"SKU-1"}, notifier.sent)
}

func TestProcessUpdatesExistingItemWithoutNotification(t *testing.T) {
	adapter := newFakeAdapter()
	notifier := &fakeNotifier{enabled: true}
	eng, _ := newEngine(adapter, nil, notifier)

	require.Equal(t, domain.ActionCreated, eng.Process(context.Background(), item("SKU-1", 3)))
	notifier.sent = nil

	action := eng.Process(context.Background(), item("SKU-1", 5))

	assert.Equal(t, domain.ActionUpdated, action)
	assert.Equal(t, 5, adapter.records["SKU-1"].Quantity)
	assert.Empty(t, notifier.sent, "no notification for an already-visible record")
}

func TestProcessNotifiesOnBackInStockTransition(t *testing.T) {
	adapter := newFakeAdapter()
	notifier := &fakeNotifier{enabled: true}
	eng, _ := newEngine(adapter, nil, notifier)

	require.Equal(t, domain.ActionCreated, eng.Process(context.Background(), item("SKU-1", 3)))
	require.Equal(t, domain.ActionSetDraftOutOfStock, eng.Process(context.Background(), item("SKU-1", 0)))
	notifier.sent = nil

	action := eng.Process(context.Background(), item("SKU-1", 2))

	assert.Equal(t, domain.ActionUpdated, action)
	assert.Equal(t, []string{"SKU-1"}, notifier.sent)
}

func TestProcessOutOfStockHidesExistingRecord(t *testing.T) {
	adapter := newFakeAdapter()
	eng, _ := newEngine(adapter, nil, &fakeNotifier{})

	require.Equal(t, domain.ActionCreated, eng.Process(context.Background(), item("SKU-1", 3)))

	action := eng.Process(context.Background(), item("SKU-1", 0))

	assert.Equal(t, domain.ActionSetDraftOutOfStock, action)
	assert.Equal(t, domain.StatusOutOfStock, adapter.records["SKU-1"].Status)
}

func TestProcessOutOfStockUnknownSKUIsSkipped(t *testing.T) {
	adapter := newFakeAdapter()
	eng, _ := newEngine(adapter, nil, &fakeNotifier{})

	action := eng.Process(context.Background(), item("SKU-1", 0))

	assert.Equal(t, domain.ActionSkipped, action)
	assert.Empty(t, adapter.records, "out-of-stock items never create records")
}

func TestProcessArchivedHidesExistingAndNeverCreates(t *testing.T) {
	adapter := newFakeAdapter()
	eng, _ := newEngine(adapter, nil, &fakeNotifier{})

	require.Equal(t, domain.ActionCreated, eng.Process(context.Background(), item("SKU-1", 3)))

	archived := item("SKU-1", 3)
	archived.IsArchived = true
	assert.Equal(t, domain.ActionSetDraftArchived, eng.Process(context.Background(), archived))
	assert.Equal(t, domain.StatusArchived, adapter.records["SKU-1"].Status)

	missing := item("SKU-2", 3)
	missing.IsArchived = true
	assert.Equal(t, domain.ActionSkipped, eng.Process(context.Background(), missing))
	assert.NotContains(t, adapter.records, "SKU-2")
}

func TestProcessExcludedSkipsWhenAdapterDoesNotPersist(t *testing.T) {
	adapter := newFakeAdapter()
	eng, _ := newEngine(adapter, []string{"Edibles"}, &fakeNotifier{})

	action := eng.Process(context.Background(), item("SKU-1", 3))

	assert.Equal(t, domain.ActionSkipped, action)
	assert.Equal(t, 1, adapter.excludeCalls)
	assert.Empty(t, adapter.records)
}

func TestProcessExcludedPersistsOnReportingAdapter(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.persistExclusions = true
	eng, _ := newEngine(adapter, []string{"Edibles"}, &fakeNotifier{})

	action := eng.Process(context.Background(), item("SKU-1", 3))

	assert.Equal(t, domain.ActionUpdated, action)
	require.Contains(t, adapter.records, "SKU-1")
	assert.Equal(t, domain.StatusExcluded, adapter.records["SKU-1"].Status)
}

func TestProcessExclusionWinsOverStockLevel(t *testing.T) {
	// Decision order: exclusion is checked before the stock level, so an
	// excluded out-of-stock item is skipped without status changes.
	adapter := newFakeAdapter()
	eng, _ := newEngine(adapter, []string{"Edibles"}, &fakeNotifier{})

	require.Equal(t, domain.ActionSkipped, eng.Process(context.Background(), item("SKU-1", 0)))
	assert.Equal(t, 0, adapter.statusCalls)
}

func TestProcessIsIdempotent(t *testing.T) {
	adapter := newFakeAdapter()
	eng, _ := newEngine(adapter, nil, &fakeNotifier{})

	it := item("SKU-1", 3)
	require.Equal(t, domain.ActionCreated, eng.Process(context.Background(), it))
	first := *adapter.records["SKU-1"]

	assert.Equal(t, domain.ActionUpdated, eng.Process(context.Background(), it))
	second := *adapter.records["SKU-1"]

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Quantity, second.Quantity)
	assert.Equal(t, first.Name, second.Name)
}

func TestProcessWriteFailureReturnsError(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.failWrites = true
	eng, store := newEngine(adapter, nil, &fakeNotifier{})

	action := eng.Process(context.Background(), item("SKU-1", 3))

	assert.Equal(t, domain.ActionError, action)

	entries, err := store.Log(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[len(entries)-1].Message, "Error:")
}

func TestProcessLogsDisabledNotifications(t *testing.T) {
	adapter := newFakeAdapter()
	eng, store := newEngine(adapter, nil, &fakeNotifier{enabled: false})

	require.Equal(t, domain.ActionCreated, eng.Process(context.Background(), item("SKU-1", 3)))

	entries, err := store.Log(context.Background())
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if e.Message == "Email notification skipped (disabled in settings) for SKU: SKU-1" {
			found = true
		}
	}
	assert.True(t, found, "disabled notifications are still logged")
}

func TestFullNameOnlyAppendsDistinctVariation(t *testing.T) {
	same := domain.CatalogItem{ItemName: "Gummies", VariationName: "Gummies"}
	assert.Equal(t, "Gummies", same.FullName())

	empty := domain.CatalogItem{ItemName: "Gummies"}
	assert.Equal(t, "Gummies", empty.FullName())

	distinct := domain.CatalogItem{ItemName: "Gummies", VariationName: "500mg"}
	assert.Equal(t, "Gummies - 500mg", distinct.FullName())
}
