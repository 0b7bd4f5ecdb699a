package destination

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"

	"hempies/coasync/internal/config"
	"hempies/coasync/internal/domain"
)

const airtableTimeFormat = "01/02/2006 03:04 PM"

type airtableRecord struct {
	ID     string                 `json:"id,omitempty"`
	Fields map[string]interface{} `json:"fields"`
}

type airtableList struct {
	Records []airtableRecord `json:"records"`
}

// AirtableAdapter writes products into an Airtable table. Unlike the
// CMS destination it is a reporting view: out-of-stock, archived and
// excluded items are all persisted with an explicit status.
type AirtableAdapter struct {
	httpClient *resty.Client
	tablePath  string
}

func NewAirtableAdapter(cfg config.AirtableConfig) *AirtableAdapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.airtable.com"
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &AirtableAdapter{
		httpClient: client,
		tablePath:  fmt.Sprintf("/v0/%s/%s", cfg.BaseID, cfg.TableName),
	}
}

func (a *AirtableAdapter) Name() string {
	return "airtable"
}

func (a *AirtableAdapter) FindBySKU(ctx context.Context, sku string) (*Record, error) {
	var result airtableList
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetQueryParam("filterByFormula", skuFormula(sku)).
		SetQueryParam("maxRecords", "1").
		SetResult(&result).
		Get(a.tablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to look up record by SKU %s: %w", sku, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("record lookup returned status %d for SKU %s", resp.StatusCode(), sku)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}

	r := result.Records[0]
	rec := &Record{
		ID:     r.ID,
		SKU:    stringField(r.Fields, "SKU"),
		Name:   stringField(r.Fields, "Name"),
		Status: fromAirtableStatus(stringField(r.Fields, "Status")),
	}
	if qty, ok := r.Fields["Quantity"].(float64); ok {
		rec.Quantity = int(qty)
	}
	return rec, nil
}

func (a *AirtableAdapter) Create(ctx context.Context, item domain.CatalogItem) (*Record, error) {
	fields := a.fields(item, domain.StatusPending)
	fields["Created"] = time.Now().Format(airtableTimeFormat)

	created, err := a.createRecord(ctx, fields)
	if err != nil {
		return nil, err
	}

	log.Debugf("Created Airtable record %s for SKU %s", created.ID, item.SKU)
	return &Record{
		ID:       created.ID,
		SKU:      item.SKU,
		Name:     item.FullName(),
		Status:   domain.StatusPending,
		Quantity: item.Quantity,
	}, nil
}

func (a *AirtableAdapter) Update(ctx context.Context, id string, item domain.CatalogItem, status domain.Status, showCOA bool) error {
	return a.patch(ctx, id, a.fields(item, status))
}

func (a *AirtableAdapter) SetStatus(ctx context.Context, id string, status domain.Status, showCOA bool) error {
	return a.patch(ctx, id, map[string]interface{}{
		"Status":       toAirtableStatus(status),
		"Last Updated": time.Now().Format(airtableTimeFormat),
	})
}

// MarkExcluded upserts the record with an explicit Excluded status so
// the table shows why the item is not tracked.
func (a *AirtableAdapter) MarkExcluded(ctx context.Context, item domain.CatalogItem) (bool, error) {
	existing, err := a.FindBySKU(ctx, item.SKU)
	if err != nil {
		return false, err
	}
	fields := a.fields(item, domain.StatusExcluded)
	if existing != nil {
		return true, a.patch(ctx, existing.ID, fields)
	}
	fields["Created"] = time.Now().Format(airtableTimeFormat)
	if _, err := a.createRecord(ctx, fields); err != nil {
		return false, err
	}
	return true, nil
}

func (a *AirtableAdapter) fields(item domain.CatalogItem, status domain.Status) map[string]interface{} {
	fields := map[string]interface{}{
		"SKU":          item.SKU,
		"Name":         item.FullName(),
		"Status":       toAirtableStatus(status),
		"Quantity":     item.Quantity,
		"Last Updated": time.Now().Format(airtableTimeFormat),
	}
	if label := strings.TrimSpace(item.CategoryLabel()); label != "" {
		fields["Category"] = label
	}
	return fields
}

func (a *AirtableAdapter) createRecord(ctx context.Context, fields map[string]interface{}) (*airtableRecord, error) {
	var created airtableRecord
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetBody(airtableRecord{Fields: fields}).
		SetResult(&created).
		Post(a.tablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("record create returned status %d", resp.StatusCode())
	}
	return &created, nil
}

func (a *AirtableAdapter) patch(ctx context.Context, id string, fields map[string]interface{}) error {
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetBody(airtableRecord{Fields: fields}).
		Patch(a.tablePath + "/" + id)
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", id, err)
	}
	if resp.IsError() {
		return fmt.Errorf("record update returned status %d for id %s", resp.StatusCode(), id)
	}
	return nil
}

// skuFormula builds the filterByFormula expression for an exact SKU
// match, escaping embedded single quotes.
func skuFormula(sku string) string {
	return fmt.Sprintf("{SKU}='%s'", strings.ReplaceAll(sku, "'", "\\'"))
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

func toAirtableStatus(status domain.Status) string {
	switch status {
	case domain.StatusPublished:
		return "Active"
	case domain.StatusPending:
		return "Pending"
	case domain.StatusOutOfStock:
		return "Out of Stock"
	case domain.StatusArchived:
		return "Archived"
	case domain.StatusExcluded:
		return "Excluded"
	default:
		return "Pending"
	}
}

func fromAirtableStatus(status string) domain.Status {
	switch status {
	case "Active":
		return domain.StatusPublished
	case "Pending":
		return domain.StatusPending
	case "Out of Stock":
		return domain.StatusOutOfStock
	case "Archived":
		return domain.StatusArchived
	case "Excluded":
		return domain.StatusExcluded
	default:
		return domain.StatusPending
	}
}
