package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCatalogInvariants(t *testing.T) {
	products, err := LoadCatalog("")
	require.NoError(t, err)
	require.NotEmpty(t, products)

	categories := make(map[string]int)
	for _, p := range products {
		categories[string(p.Category)]++

		assert.Greater(t, p.Price, 0.0, "price of %s", p.ID)
		if p.Deal == nil {
			continue
		}
		assert.Greater(t, p.Deal.OriginalPrice, p.Price, "original price of %s", p.ID)
		expected := int(math.Round((1 - p.Price/p.Deal.OriginalPrice) * 100))
		assert.Equal(t, expected, p.Deal.Discount, "discount of %s", p.ID)
	}

	// 4カテゴリ全てに商品があること
	for _, c := range []string{"groceries", "electronics", "clothing", "home"} {
		assert.Positive(t, categories[c], "category %s has no products", c)
	}
}

func TestParseCatalogRejectsBadDeal(t *testing.T) {
	data := []byte(`
products:
  - id: "x-1"
    name: "Broken"
    category: home
    price: 10
    deal:
      discount: 0
      original_price: 8
      type: regular
`)
	_, err := ParseCatalog(data)
	assert.Error(t, err)
}

func TestParseCatalogRejectsUnknownCategory(t *testing.T) {
	data := []byte(`
products:
  - id: "x-1"
    name: "Toy"
    category: toys
    price: 10
`)
	_, err := ParseCatalog(data)
	assert.Error(t, err)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog("does/not/exist.yaml")
	assert.Error(t, err)
}
