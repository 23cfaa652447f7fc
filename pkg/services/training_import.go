package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"smartwaste-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

// 学習データファイルの列数（先頭行はヘッダーとして読み飛ばす）
// 商品名, カテゴリ, 仕入日, 賞味期限, 初期在庫, 最終在庫, 廃棄数, 気温, 湿度, 販促フラグ, 店舗
const trainingColumnCount = 11

// ErrUnsupportedFileType CSV/XLSX以外
var ErrUnsupportedFileType = errors.New("unsupported file type: only .csv and .xlsx are accepted")

// ParseTrainingFile はファイル名の拡張子でCSVかXLSXかを判定して学習データを読み込みます。
func ParseTrainingFile(fileName string, r io.Reader) ([]models.TrainingRecord, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return ParseTrainingCSV(r)
	case ".xlsx":
		return ParseTrainingXLSX(r)
	default:
		return nil, ErrUnsupportedFileType
	}
}

// ParseTrainingCSV CSVから学習データを読み込み
func ParseTrainingCSV(r io.Reader) ([]models.TrainingRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	// Excelが付けるBOMを除去
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return ParseTrainingRows(rows)
}

// ParseTrainingXLSX 先頭シートから学習データを読み込み
func ParseTrainingXLSX(r io.Reader) ([]models.TrainingRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read xlsx rows: %w", err)
	}
	return ParseTrainingRows(rows)
}

// ParseTrainingRows は先頭行（ヘッダー）を除いた各行を学習データに変換します。
// 空行は無視します。変換できない値や不正な値があれば、行ごとのエラーをまとめてValidationErrorで返します。
// 行番号はヘッダーを除いたファイル上のデータ行（空行を含む）で数えます。
func ParseTrainingRows(rows [][]string) ([]models.TrainingRecord, error) {
	if len(rows) <= 1 {
		return nil, &ValidationError{Errors: []string{"file contains no data rows"}}
	}

	var records []models.TrainingRecord
	var problems []string
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		prefix := fmt.Sprintf("Row %d: ", i+1)
		if len(row) < trainingColumnCount {
			problems = append(problems, fmt.Sprintf("%sexpected %d columns, got %d", prefix, trainingColumnCount, len(row)))
			continue
		}

		parseErrors := len(problems)
		cell := func(idx int) string { return strings.TrimSpace(row[idx]) }
		rec := models.TrainingRecord{
			ProductName:  cell(0),
			Category:     cell(1),
			PurchaseDate: cell(2),
			ExpiryDate:   cell(3),
			Location:     cell(10),
		}

		intFields := []struct {
			name string
			idx  int
			dst  *int
		}{
			{"initial stock", 4, &rec.InitialStock},
			{"final stock", 5, &rec.FinalStock},
			{"waste amount", 6, &rec.WasteAmount},
		}
		for _, f := range intFields {
			v, err := parseIntCell(cell(f.idx))
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s%s %q is not a whole number", prefix, f.name, cell(f.idx)))
				continue
			}
			*f.dst = v
		}

		floatFields := []struct {
			name string
			idx  int
			dst  *float64
		}{
			{"temperature", 7, &rec.Temperature},
			{"humidity", 8, &rec.Humidity},
		}
		for _, f := range floatFields {
			v, err := strconv.ParseFloat(cell(f.idx), 64)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s%s %q is not a number", prefix, f.name, cell(f.idx)))
				continue
			}
			*f.dst = v
		}

		promo, err := parseBoolCell(cell(9))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%spromotion flag %q is not a boolean", prefix, cell(9)))
		}
		rec.PromotionActive = promo

		// 値の検証もファイル上の行番号で報告する
		if len(problems) == parseErrors {
			problems = append(problems, validateTrainingRecord(rec, i+1)...)
		}
		records = append(records, rec)
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Errors: problems}
	}
	if len(records) == 0 {
		return nil, &ValidationError{Errors: []string{"file contains no data rows"}}
	}
	return records, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseIntCell "12" と "12.0"（Excel由来）を受け付ける
func parseIntCell(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

func parseBoolCell(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
