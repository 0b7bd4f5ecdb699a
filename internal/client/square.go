package client

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"

	"hempies/coasync/internal/config"
	"hempies/coasync/internal/domain"
)

const squareVersion = "2023-09-25"

// inventoryChunkSize bounds batch-retrieve-counts request bodies.
const inventoryChunkSize = 100

type SquareClient interface {
	// FetchAllItems pages through the catalog and flattens every
	// variation with a non-empty SKU into a CatalogItem. A transport
	// error mid-pagination terminates the fetch with whatever was
	// accumulated so far.
	FetchAllItems(ctx context.Context) ([]domain.CatalogItem, error)
	FetchCategories(ctx context.Context) (map[string]string, error)
	BatchInventory(ctx context.Context, variationIDs []string) (map[string]int, error)
}

type squareClient struct {
	rl               ratelimit.Limiter
	config           config.SquareConfig
	baseURL          string
	httpClient       *resty.Client
	inventoryTimeout time.Duration

	// Circuit breaker for rate-limit responses
	circuitBreakerMutex sync.RWMutex
	quotaExceededUntil  time.Time
	circuitBreakerDelay time.Duration
}

func NewSquareClient(cfg config.SquareConfig) SquareClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.CatalogTimeout)*time.Second).
		SetHeader("Square-Version", squareVersion).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.AccessToken)

	rps := cfg.MaxRequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &squareClient{
		rl:                  ratelimit.New(rps),
		config:              cfg,
		baseURL:             cfg.BaseURL,
		httpClient:          client,
		inventoryTimeout:    time.Duration(cfg.InventoryTimeout) * time.Second,
		circuitBreakerDelay: 30 * time.Minute,
	}
}

func (c *squareClient) FetchAllItems(ctx context.Context) ([]domain.CatalogItem, error) {
	categories, err := c.FetchCategories(ctx)
	if err != nil {
		// Category names degrade to IDs only; the fetch continues.
		log.Warnf("Failed to fetch category map: %v", err)
		categories = map[string]string{}
	}

	items := make([]domain.CatalogItem, 0)
	bySKU := make(map[string]int)
	cursor := ""

	for {
		page, err := c.listCatalog(ctx, "ITEM", cursor)
		if err != nil {
			log.Errorf("Error fetching items from Square API: %v", err)
			break
		}
		if len(page.Objects) == 0 {
			break
		}

		for _, obj := range page.Objects {
			if obj.Type != "ITEM" || obj.ItemData == nil || obj.IsDeleted {
				continue
			}
			flattened := flattenItem(obj, categories)
			if flattened == nil {
				log.Infof("Skipping item %s - No category assigned", obj.ID)
				continue
			}
			for _, item := range flattened {
				// Last write wins for duplicate SKUs within one fetch.
				if idx, ok := bySKU[item.SKU]; ok {
					items[idx] = item
					continue
				}
				bySKU[item.SKU] = len(items)
				items = append(items, item)
			}
		}

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	if len(items) == 0 {
		return items, nil
	}

	variationIDs := make([]string, 0, len(items))
	for _, item := range items {
		variationIDs = append(variationIDs, item.VariationID)
	}

	counts, err := c.BatchInventory(ctx, variationIDs)
	if err != nil {
		log.Warnf("Could not fetch inventory batch: %v", err)
	} else {
		for i := range items {
			items[i].Quantity = counts[items[i].VariationID]
		}
	}

	log.Infof("Fetched %d SKUs from Square catalog", len(items))
	return items, nil
}

// flattenItem emits one CatalogItem per variation with a non-empty SKU,
// copying the item's shared fields onto each. Items without any category
// assignment return nil.
func flattenItem(obj catalogObject, categories map[string]string) []domain.CatalogItem {
	data := obj.ItemData

	var categoryIDs, categoryNames []string
	for _, ref := range data.Categories {
		categoryIDs = append(categoryIDs, ref.ID)
		categoryNames = append(categoryNames, categories[ref.ID])
	}
	if len(categoryIDs) == 0 && data.CategoryID != "" {
		categoryIDs = []string{data.CategoryID}
		categoryNames = []string{categories[data.CategoryID]}
	}
	if len(categoryIDs) == 0 {
		return nil
	}

	var out []domain.CatalogItem
	for _, variation := range data.Variations {
		vd := variation.ItemVariationData
		if vd == nil || vd.SKU == "" {
			continue
		}
		out = append(out, domain.CatalogItem{
			VariationID:   variation.ID,
			SKU:           vd.SKU,
			ItemName:      data.Name,
			VariationName: vd.Name,
			CategoryID:    data.CategoryID,
			CategoryName:  categories[data.CategoryID],
			CategoryIDs:   categoryIDs,
			CategoryNames: categoryNames,
			IsArchived:    data.IsArchived,
		})
	}
	return out
}

func (c *squareClient) FetchCategories(ctx context.Context) (map[string]string, error) {
	categories := make(map[string]string)
	cursor := ""

	for {
		page, err := c.listCatalog(ctx, "CATEGORY", cursor)
		if err != nil {
			if len(categories) > 0 {
				log.Errorf("Error fetching categories from Square API: %v", err)
				return categories, nil
			}
			return nil, err
		}
		if len(page.Objects) == 0 {
			break
		}

		for _, obj := range page.Objects {
			if obj.Type == "CATEGORY" && obj.CategoryData != nil {
				categories[obj.ID] = obj.CategoryData.Name
			}
		}

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	log.Infof("Fetched %d categories from Square", len(categories))
	return categories, nil
}

func (c *squareClient) BatchInventory(ctx context.Context, variationIDs []string) (map[string]int, error) {
	inventory := make(map[string]int)

	for start := 0; start < len(variationIDs); start += inventoryChunkSize {
		end := start + inventoryChunkSize
		if end > len(variationIDs) {
			end = len(variationIDs)
		}

		// One chunk's counts can span multiple pages when variations
		// carry counts at many locations.
		cursor := ""
		for {
			body := batchInventoryRequest{
				CatalogObjectIDs: variationIDs[start:end],
				Cursor:           cursor,
			}
			if c.config.LocationID != "" {
				body.LocationIDs = []string{c.config.LocationID}
			}

			if err := c.checkCircuitBreaker(); err != nil {
				return inventory, err
			}
			c.rl.Take()

			reqCtx, cancel := context.WithTimeout(ctx, c.inventoryTimeout)
			var result batchInventoryResponse
			resp, err := c.httpClient.R().
				SetContext(reqCtx).
				SetBody(body).
				SetResult(&result).
				Post("/v2/inventory/batch-retrieve-counts")
			cancel()

			if err != nil {
				return inventory, fmt.Errorf("failed to fetch inventory counts: %w", err)
			}
			if resp.IsError() {
				c.handleHTTPError(resp.StatusCode())
				return inventory, fmt.Errorf("inventory API returned status %d", resp.StatusCode())
			}

			for _, count := range result.Counts {
				qty, err := strconv.ParseFloat(count.Quantity, 64)
				if err != nil {
					log.Warnf("Invalid quantity value %q for variation %s", count.Quantity, count.CatalogObjectID)
					continue
				}
				// Counts are summed across locations.
				inventory[count.CatalogObjectID] += int(qty)
			}

			if result.Cursor == "" {
				break
			}
			cursor = result.Cursor
		}
	}

	return inventory, nil
}

func (c *squareClient) listCatalog(ctx context.Context, types, cursor string) (*listCatalogResponse, error) {
	if err := c.checkCircuitBreaker(); err != nil {
		return nil, err
	}
	c.rl.Take()

	var result listCatalogResponse
	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("types", types).
		SetResult(&result)
	if cursor != "" {
		req.SetQueryParam("cursor", cursor)
	}

	resp, err := req.Get("/v2/catalog/list")
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	if resp.IsError() {
		c.handleHTTPError(resp.StatusCode())
		return nil, fmt.Errorf("catalog API returned status %d", resp.StatusCode())
	}

	return &result, nil
}

func (c *squareClient) checkCircuitBreaker() error {
	c.circuitBreakerMutex.RLock()
	until := c.quotaExceededUntil
	c.circuitBreakerMutex.RUnlock()

	if time.Now().Before(until) {
		remaining := time.Until(until).Round(time.Second)
		return fmt.Errorf("circuit breaker is open - requests disabled for %v more", remaining)
	}
	return nil
}

func (c *squareClient) handleHTTPError(status int) {
	if status != 429 {
		return
	}
	c.circuitBreakerMutex.Lock()
	defer c.circuitBreakerMutex.Unlock()

	c.quotaExceededUntil = time.Now().Add(c.circuitBreakerDelay)
	log.Warnf("🚫 Square rate limit hit, requests disabled until %v",
		c.quotaExceededUntil.Format("15:04:05"))
}
