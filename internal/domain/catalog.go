package domain

// CatalogItem is one sellable variation flattened out of the Square catalog.
// SKU is the reconciliation key against the destination; within a single
// fetch a later variation with the same SKU wins.
type CatalogItem struct {
	VariationID   string   `json:"variation_id"`
	SKU           string   `json:"sku"`
	ItemName      string   `json:"item_name"`
	VariationName string   `json:"variation_name"`
	CategoryID    string   `json:"category_id,omitempty"`
	CategoryName  string   `json:"category_name,omitempty"`
	CategoryIDs   []string `json:"category_ids,omitempty"`
	CategoryNames []string `json:"category_names,omitempty"`
	Quantity      int      `json:"quantity"`
	IsArchived    bool     `json:"is_archived"`
}

// FullName combines the parent item name with the variation name. The
// variation name is appended only when it is non-empty and differs from
// the parent name.
func (i CatalogItem) FullName() string {
	if i.VariationName != "" && i.VariationName != i.ItemName {
		return i.ItemName + " - " + i.VariationName
	}
	return i.ItemName
}

// CategoryLabel returns the display category for destination records:
// the first category name, falling back to the legacy single-category
// field.
func (i CatalogItem) CategoryLabel() string {
	if len(i.CategoryNames) > 0 {
		return i.CategoryNames[0]
	}
	return i.CategoryName
}

// CategoryPairs returns the item's category id/name pairs in parallel
// order, falling back to the legacy single-category pair when the
// multi-category arrays are absent.
func (i CatalogItem) CategoryPairs() [][2]string {
	if len(i.CategoryIDs) > 0 {
		pairs := make([][2]string, 0, len(i.CategoryIDs))
		for idx, id := range i.CategoryIDs {
			name := ""
			if idx < len(i.CategoryNames) {
				name = i.CategoryNames[idx]
			}
			pairs = append(pairs, [2]string{id, name})
		}
		return pairs
	}
	if i.CategoryID != "" || i.CategoryName != "" {
		return [][2]string{{i.CategoryID, i.CategoryName}}
	}
	return nil
}
