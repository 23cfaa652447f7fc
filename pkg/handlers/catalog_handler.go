package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"smartwaste-api/pkg/models"
	"smartwaste-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// CatalogHandler 商品カタログAPI
type CatalogHandler struct {
	catalog *services.CatalogService
}

// NewCatalogHandler 新しいカタログハンドラーを作成
func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// categoryQuery は?category=を解釈します。未指定ならnil。
func categoryQuery(c *gin.Context) (*models.Category, error) {
	raw := c.Query("category")
	if raw == "" {
		return nil, nil
	}
	category, ok := services.ParseCategory(raw)
	if !ok {
		return nil, fmt.Errorf("無効なカテゴリです: %s", raw)
	}
	return &category, nil
}

func limitQuery(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limitは0以上の整数で指定してください: %s", raw)
	}
	return limit, nil
}

// ListProducts 商品一覧（?category=, ?max_price=）
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	category, err := categoryQuery(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	limit, err := limitQuery(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var products []models.Product
	switch {
	case c.Query("max_price") != "":
		maxPrice, err := strconv.ParseFloat(c.Query("max_price"), 64)
		if err != nil || maxPrice <= 0 {
			respondBadRequest(c, "max_priceは正の数で指定してください")
			return
		}
		products = h.catalog.UnderPrice(maxPrice, category, limit)
	case category != nil:
		products = h.catalog.ByCategory(*category, limit)
	default:
		products = h.catalog.All()
		if limit > 0 && len(products) > limit {
			products = products[:limit]
		}
	}

	respondOK(c, http.StatusOK, gin.H{"products": nonNilProducts(products), "count": len(products)})
}

// ListDeals セール品（割引率の高い順）。?type=waste_reductionで期限の近い廃棄削減品。
func (h *CatalogHandler) ListDeals(c *gin.Context) {
	category, err := categoryQuery(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	limit, err := limitQuery(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var products []models.Product
	if c.Query("type") == "waste_reduction" {
		products = h.catalog.WasteReductionDeals(limit)
	} else {
		products = h.catalog.Deals(category, limit)
	}
	respondOK(c, http.StatusOK, gin.H{"products": nonNilProducts(products), "count": len(products)})
}

// GetProduct 商品詳細
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	product, ok := h.catalog.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "product not found", "code": "NOT_FOUND"})
		return
	}
	respondOK(c, http.StatusOK, product)
}

func nonNilProducts(products []models.Product) []models.Product {
	if products == nil {
		return []models.Product{}
	}
	return products
}
