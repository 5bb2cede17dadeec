package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"momo/models"
)

// ErrUnsupportedFormat 不支持的文件格式
var ErrUnsupportedFormat = errors.New("unsupported raw record format")

// LoadFile 按扩展名（.json / .csv）读取原始记录
func LoadFile(path string) ([]models.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(f)
	case ".csv":
		return LoadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadJSON 读取 JSON 数组格式的原始记录
func LoadJSON(r io.Reader) ([]models.RawRecord, error) {
	var records []models.RawRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode raw records: %w", err)
	}
	return records, nil
}

// LoadCSV 读取带表头的 CSV，列按表头名称匹配，顺序不限，未知列忽略
func LoadCSV(r io.Reader) ([]models.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		// 去掉 Excel 导出时带的 BOM
		h = strings.TrimPrefix(h, "\xEF\xBB\xBF")
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["tx_ref"]; !ok {
		return nil, errors.New("csv header missing tx_ref column")
	}

	get := func(row []string, name string) string {
		if i, ok := cols[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var records []models.RawRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		records = append(records, models.RawRecord{
			Ref:           get(row, "tx_ref"),
			SenderPhone:   get(row, "sender_phone"),
			SenderName:    get(row, "sender_name"),
			ReceiverPhone: get(row, "receiver_phone"),
			ReceiverName:  get(row, "receiver_name"),
			Category:      get(row, "category"),
			Amount:        models.RawValue(get(row, "amount")),
			Fee:           models.RawValue(get(row, "fee")),
			BalanceAfter:  models.RawValue(get(row, "balance_after")),
			Timestamp:     get(row, "timestamp"),
			Description:   get(row, "description"),
		})
	}
	return records, nil
}
