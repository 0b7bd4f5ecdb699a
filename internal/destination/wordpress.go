package destination

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"

	"hempies/coasync/internal/config"
	"hempies/coasync/internal/domain"
)

// showCOAMetaKey is the product meta flag controlling whether the COA
// document is visible on the product page.
const showCOAMetaKey = "_show_coa"

type wpProduct struct {
	ID            int      `json:"id,omitempty"`
	Name          string   `json:"name,omitempty"`
	SKU           string   `json:"sku,omitempty"`
	Status        string   `json:"status,omitempty"`
	StockQuantity *int     `json:"stock_quantity,omitempty"`
	MetaData      []wpMeta `json:"meta_data,omitempty"`
}

type wpMeta struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// WordPressAdapter writes products into a WordPress/WooCommerce store
// via its REST API. Out-of-stock and archived products become drafts;
// excluded products are not persisted at all.
type WordPressAdapter struct {
	httpClient *resty.Client
}

func NewWordPressAdapter(cfg config.WordPressConfig) *WordPressAdapter {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(30*time.Second).
		SetBasicAuth(cfg.ConsumerKey, cfg.ConsumerSecret).
		SetHeader("Content-Type", "application/json")

	return &WordPressAdapter{httpClient: client}
}

func (w *WordPressAdapter) Name() string {
	return "wordpress"
}

func (w *WordPressAdapter) FindBySKU(ctx context.Context, sku string) (*Record, error) {
	var products []wpProduct
	resp, err := w.httpClient.R().
		SetContext(ctx).
		SetQueryParam("sku", sku).
		SetResult(&products).
		Get("/wp-json/wc/v3/products")
	if err != nil {
		return nil, fmt.Errorf("failed to look up product by SKU %s: %w", sku, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("product lookup returned status %d for SKU %s", resp.StatusCode(), sku)
	}
	if len(products) == 0 {
		return nil, nil
	}

	p := products[0]
	rec := &Record{
		ID:     strconv.Itoa(p.ID),
		SKU:    p.SKU,
		Name:   p.Name,
		Status: fromWPStatus(p.Status),
	}
	if p.StockQuantity != nil {
		rec.Quantity = *p.StockQuantity
	}
	return rec, nil
}

func (w *WordPressAdapter) Create(ctx context.Context, item domain.CatalogItem) (*Record, error) {
	qty := item.Quantity
	payload := wpProduct{
		Name:          item.FullName(),
		SKU:           item.SKU,
		Status:        toWPStatus(domain.StatusPending),
		StockQuantity: &qty,
		MetaData:      []wpMeta{{Key: showCOAMetaKey, Value: "yes"}},
	}

	var created wpProduct
	resp, err := w.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&created).
		Post("/wp-json/wc/v3/products")
	if err != nil {
		return nil, fmt.Errorf("failed to create product for SKU %s: %w", item.SKU, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("product create returned status %d for SKU %s", resp.StatusCode(), item.SKU)
	}

	log.Debugf("Created product %d with SKU %s", created.ID, item.SKU)
	return &Record{
		ID:       strconv.Itoa(created.ID),
		SKU:      item.SKU,
		Name:     item.FullName(),
		Status:   domain.StatusPending,
		Quantity: item.Quantity,
	}, nil
}

func (w *WordPressAdapter) Update(ctx context.Context, id string, item domain.CatalogItem, status domain.Status, showCOA bool) error {
	qty := item.Quantity
	payload := wpProduct{
		Name:          item.FullName(),
		Status:        toWPStatus(status),
		StockQuantity: &qty,
		MetaData:      []wpMeta{{Key: showCOAMetaKey, Value: yesNo(showCOA)}},
	}
	return w.put(ctx, id, payload)
}

func (w *WordPressAdapter) SetStatus(ctx context.Context, id string, status domain.Status, showCOA bool) error {
	payload := wpProduct{
		Status:   toWPStatus(status),
		MetaData: []wpMeta{{Key: showCOAMetaKey, Value: yesNo(showCOA)}},
	}
	return w.put(ctx, id, payload)
}

// MarkExcluded is a no-op: the CMS destination skips excluded items
// entirely and leaves any existing record untouched.
func (w *WordPressAdapter) MarkExcluded(ctx context.Context, item domain.CatalogItem) (bool, error) {
	return false, nil
}

func (w *WordPressAdapter) put(ctx context.Context, id string, payload wpProduct) error {
	resp, err := w.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Put("/wp-json/wc/v3/products/" + id)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", id, err)
	}
	if resp.IsError() {
		return fmt.Errorf("product update returned status %d for id %s", resp.StatusCode(), id)
	}
	return nil
}

func toWPStatus(status domain.Status) string {
	switch status {
	case domain.StatusPublished:
		return "publish"
	case domain.StatusPending:
		return "pending"
	default:
		// Out-of-stock, archived and excluded all hide as drafts.
		return "draft"
	}
}

func fromWPStatus(status string) domain.Status {
	switch status {
	case "publish":
		return domain.StatusPublished
	case "pending":
		return domain.StatusPending
	default:
		return domain.StatusOutOfStock
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
