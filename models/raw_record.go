package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// RawRecord 未规范化的原始短信交易记录
// 金额类字段保留原始文本，格式错误只影响本条记录
type RawRecord struct {
	Ref           string   `json:"tx_ref"`
	SenderPhone   string   `json:"sender_phone"`
	SenderName    string   `json:"sender_name"`
	ReceiverPhone string   `json:"receiver_phone"`
	ReceiverName  string   `json:"receiver_name"`
	Category      string   `json:"category"`
	Amount        RawValue `json:"amount"`
	Fee           RawValue `json:"fee"`
	BalanceAfter  RawValue `json:"balance_after"`
	Timestamp     string   `json:"timestamp"`
	Description   string   `json:"description"`
}

// RawValue 既可以是 JSON 数字也可以是字符串，null 视为空
type RawValue string

// UnmarshalJSON 接受数字、字符串、null
func (v *RawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = RawValue(strings.TrimSpace(s))
		return nil
	}
	// 数字或其他字面量原样保留，由导入流程判断是否合法
	*v = RawValue(string(data))
	return nil
}

// String 返回去空白后的原始文本
func (v RawValue) String() string {
	return strings.TrimSpace(string(v))
}

// IsEmpty 是否未提供
func (v RawValue) IsEmpty() bool {
	return v.String() == ""
}
