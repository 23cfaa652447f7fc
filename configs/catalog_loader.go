package config

import (
	_ "embed"
	"fmt"
	"os"

	"smartwaste-api/pkg/models"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// CatalogConfig はcatalog.yamlの構造を定義
type CatalogConfig struct {
	Version  string           `yaml:"version"`
	Products []models.Product `yaml:"products"`
}

// LoadCatalog は商品カタログを読み込む。pathが空の場合は埋め込みカタログを使用する
func LoadCatalog(path string) ([]models.Product, error) {
	data := embeddedCatalog
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("カタログファイルの読み込みに失敗: %w", err)
		}
		data = fileData
	}
	return ParseCatalog(data)
}

// ParseCatalog はYAMLからカタログをパースして検証する
func ParseCatalog(data []byte) ([]models.Product, error) {
	var catalog CatalogConfig
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("YAMLのパースに失敗: %w", err)
	}
	if len(catalog.Products) == 0 {
		return nil, fmt.Errorf("カタログに商品がありません")
	}

	seen := make(map[string]bool, len(catalog.Products))
	for _, p := range catalog.Products {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("product id and name are required (id=%q)", p.ID)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		seen[p.ID] = true
		if !p.Category.IsValid() {
			return nil, fmt.Errorf("product %s: unknown category %q", p.ID, p.Category)
		}
		if p.Price <= 0 {
			return nil, fmt.Errorf("product %s: price must be positive", p.ID)
		}
		if p.Deal != nil && p.Deal.OriginalPrice <= p.Price {
			return nil, fmt.Errorf("product %s: deal original price must exceed price", p.ID)
		}
	}
	return catalog.Products, nil
}
