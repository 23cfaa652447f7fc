package services

import (
	"sort"
	"strings"

	"smartwaste-api/pkg/models"
)

const (
	defaultProductLimit = 6
	comparisonLimit     = 4
	smartPerCategory    = 2
	smartFallbackLimit  = 4
)

// CatalogService は静的な商品カタログへの検索を提供します。
// カタログは読み込み後に変更されないため、ロックは不要です。
type CatalogService struct {
	products []models.Product
	byID     map[string]models.Product
}

// NewCatalogService 新しいカタログサービスを作成
func NewCatalogService(products []models.Product) *CatalogService {
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &CatalogService{
		products: append([]models.Product{}, products...),
		byID:     byID,
	}
}

// All はカタログ順の全商品を返します。
func (s *CatalogService) All() []models.Product {
	return append([]models.Product{}, s.products...)
}

// Get は商品IDで検索します。
func (s *CatalogService) Get(id string) (models.Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// ByCategory カテゴリで絞り込み（カタログ順）
func (s *CatalogService) ByCategory(category models.Category, limit int) []models.Product {
	return truncate(s.filter(func(p models.Product) bool { return p.Category == category }), limit)
}

// ParseCategory は大文字小文字を無視してカテゴリ名を解釈します。
func ParseCategory(name string) (models.Category, bool) {
	c := models.Category(strings.ToLower(strings.TrimSpace(name)))
	return c, c.IsValid()
}

// Deals はセール中の商品を割引率の高い順に返します。categoryがnilなら全カテゴリ。
func (s *CatalogService) Deals(category *models.Category, limit int) []models.Product {
	deals := s.filter(func(p models.Product) bool {
		return p.Deal != nil && (category == nil || p.Category == *category)
	})
	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].Deal.Discount > deals[j].Deal.Discount
	})
	return truncate(deals, limit)
}

// UnderPrice は上限価格以下の商品を安い順に返します。
func (s *CatalogService) UnderPrice(max float64, category *models.Category, limit int) []models.Product {
	items := s.filter(func(p models.Product) bool {
		return p.Price <= max && (category == nil || p.Category == *category)
	})
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Price < items[j].Price
	})
	return truncate(items, limit)
}

// WasteReductionDeals は廃棄削減・タイムセール対象を期限の近い順に返します（期限なしは末尾）。
func (s *CatalogService) WasteReductionDeals(limit int) []models.Product {
	items := s.filter(func(p models.Product) bool {
		return p.Deal != nil && (p.Deal.Type == models.DealWasteReduction || p.Deal.Type == models.DealFlash)
	})
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Deal.ExpiresIn, items[j].Deal.ExpiresIn
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a < *b
	})
	return truncate(items, limit)
}

// Smart は関心カテゴリごとに2件ずつ（セール品優先）選びます。
// 関心カテゴリがない場合はトップのセール品にフォールバックします。
func (s *CatalogService) Smart(preferred []models.Category) []models.Product {
	if len(preferred) == 0 {
		return s.Deals(nil, smartFallbackLimit)
	}

	var picks []models.Product
	for _, c := range preferred {
		items := s.filter(func(p models.Product) bool { return p.Category == c })
		sort.SliceStable(items, func(i, j int) bool {
			return dealRank(items[i]) > dealRank(items[j])
		})
		picks = append(picks, truncate(items, smartPerCategory)...)
	}
	return picks
}

// dealRank セールなしは-1、セール品は割引率
func dealRank(p models.Product) int {
	if p.Deal == nil {
		return -1
	}
	return p.Deal.Discount
}

func (s *CatalogService) filter(keep func(models.Product) bool) []models.Product {
	var out []models.Product
	for _, p := range s.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func truncate(items []models.Product, limit int) []models.Product {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
