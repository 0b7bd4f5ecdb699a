package destination

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hempies/coasync/internal/config"
	"hempies/coasync/internal/domain"
)

func newATAdapter(url string) *AirtableAdapter {
	return NewAirtableAdapter(config.AirtableConfig{
		BaseURL:   url,
		APIKey:    "key_test",
		BaseID:    "appBASE",
		TableName: "Products",
	})
}

func TestAirtableFindBySKU(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/appBASE/Products", r.URL.Path)
		assert.Equal(t, "Bearer key_test", r.Header.Get("Authorization"))
		assert.Equal(t, "{SKU}='SKU-1'", r.URL.Query().Get("filterByFormula"))
		assert.Equal(t, "1", r.URL.Query().Get("maxRecords"))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(airtableList{Records: []airtableRecord{{
			ID: "recABC",
			Fields: map[string]interface{}{
				"SKU":      "SKU-1",
				"Name":     "CBD Oil - 500mg",
				"Status":   "Out of Stock",
				"Quantity": float64(0),
			},
		}}}))
	}))
	defer server.Close()

	rec, err := newATAdapter(server.URL).FindBySKU(context.Background(), "SKU-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "recABC", rec.ID)
	assert.Equal(t, domain.StatusOutOfStock, rec.Status)
	assert.True(t, rec.Status.Hidden())
}

func TestAirtableFindBySKUMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(airtableList{}))
	}))
	defer server.Close()

	rec, err := newATAdapter(server.URL).FindBySKU(context.Background(), "SKU-404")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAirtableCreateFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v0/appBASE/Products", r.URL.Path)

		var payload airtableRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "SKU-1", payload.Fields["SKU"])
		assert.Equal(t, "CBD Oil - 500mg", payload.Fields["Name"])
		assert.Equal(t, "Pending", payload.Fields["Status"])
		assert.Equal(t, float64(4), payload.Fields["Quantity"])
		assert.Equal(t, "Tinctures", payload.Fields["Category"])
		assert.NotEmpty(t, payload.Fields["Created"])
		assert.NotEmpty(t, payload.Fields["Last Updated"])

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(airtableRecord{ID: "recNEW"}))
	}))
	defer server.Close()

	item := domain.CatalogItem{
		SKU:           "SKU-1",
		ItemName:      "CBD Oil",
		VariationName: "500mg",
		CategoryNames: []string{"Tinctures"},
		Quantity:      4,
	}
	rec, err := newATAdapter(server.URL).Create(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "recNEW", rec.ID)
	assert.Equal(t, domain.StatusPending, rec.Status)
}

func TestAirtableMarkExcludedUpdatesExistingRecord(t *testing.T) {
	var patched map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			require.NoError(t, json.NewEncoder(w).Encode(airtableList{Records: []airtableRecord{{
				ID:     "recEXIST",
				Fields: map[string]interface{}{"SKU": "SKU-1", "Status": "Pending"},
			}}}))
		case http.MethodPatch:
			require.Equal(t, "/v0/appBASE/Products/recEXIST", r.URL.Path)
			var payload airtableRecord
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			patched = payload.Fields
			w.Write([]byte("{}"))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	persisted, err := newATAdapter(server.URL).MarkExcluded(context.Background(), domain.CatalogItem{SKU: "SKU-1", ItemName: "CBD Oil"})
	require.NoError(t, err)
	assert.True(t, persisted)
	require.NotNil(t, patched)
	assert.Equal(t, "Excluded", patched["Status"])
}

func TestAirtableMarkExcludedCreatesMissingRecord(t *testing.T) {
	var created map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			require.NoError(t, json.NewEncoder(w).Encode(airtableList{}))
		case http.MethodPost:
			var payload airtableRecord
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			created = payload.Fields
			require.NoError(t, json.NewEncoder(w).Encode(airtableRecord{ID: "recNEW"}))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	persisted, err := newATAdapter(server.URL).MarkExcluded(context.Background(), domain.CatalogItem{SKU: "SKU-1"})
	require.NoError(t, err)
	assert.True(t, persisted)
	require.NotNil(t, created)
	assert.Equal(t, "Excluded", created["Status"])
	assert.NotEmpty(t, created["Created"])
}

func TestSKUFormulaEscapesQuotes(t *testing.T) {
	assert.Equal(t, "{SKU}='SKU-1'", skuFormula("SKU-1"))
	assert.Equal(t, `{SKU}='O\'Brien'`, skuFormula("O'Brien"))
}

func TestAirtableStatusMapping(t *testing.T) {
	statuses := []domain.Status{
		domain.StatusPublished,
		domain.StatusPending,
		domain.StatusOutOfStock,
		domain.StatusArchived,
		domain.StatusExcluded,
	}
	for _, s := range statuses {
		assert.Equal(t, s, fromAirtableStatus(toAirtableStatus(s)))
	}
}
