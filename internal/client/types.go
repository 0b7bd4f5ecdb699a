package client

// Wire types for the subset of the Square catalog and inventory APIs
// the sync consumes.

type listCatalogResponse struct {
	Objects []catalogObject `json:"objects"`
	Cursor  string          `json:"cursor"`
}

type catalogObject struct {
	Type              string         `json:"type"`
	ID                string         `json:"id"`
	IsDeleted         bool           `json:"is_deleted"`
	ItemData          *itemData      `json:"item_data,omitempty"`
	CategoryData      *categoryData  `json:"category_data,omitempty"`
	ItemVariationData *variationData `json:"item_variation_data,omitempty"`
}

type itemData struct {
	Name       string          `json:"name"`
	CategoryID string          `json:"category_id"`
	Categories []categoryRef   `json:"categories"`
	IsArchived bool            `json:"is_archived"`
	Variations []catalogObject `json:"variations"`
}

type categoryRef struct {
	ID string `json:"id"`
}

type categoryData struct {
	Name string `json:"name"`
}

type variationData struct {
	Name string `json:"name"`
	SKU  string `json:"sku"`
}

type batchInventoryRequest struct {
	CatalogObjectIDs []string `json:"catalog_object_ids"`
	LocationIDs      []string `json:"location_ids,omitempty"`
	Cursor           string   `json:"cursor,omitempty"`
}

type batchInventoryResponse struct {
	Counts []inventoryCount `json:"counts"`
	Cursor string           `json:"cursor"`
}

type inventoryCount struct {
	CatalogObjectID string `json:"catalog_object_id"`
	LocationID      string `json:"location_id"`
	Quantity        string `json:"quantity"`
}
