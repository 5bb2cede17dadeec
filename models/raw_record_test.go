package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRecord_UnmarshalMixedValues(t *testing.T) {
	data := `{"tx_ref":"TXN1","amount":1000,"fee":"10.50","balance_after":null,"category":"P2P Transfer"}`

	var rec RawRecord
	require.NoError(t, json.Unmarshal([]byte(data), &rec))

	assert.Equal(t, "TXN1", rec.Ref)
	assert.Equal(t, "1000", rec.Amount.String())
	assert.Equal(t, "10.50", rec.Fee.String())
	assert.True(t, rec.BalanceAfter.IsEmpty())
	assert.Equal(t, "P2P Transfer", rec.Category)
}

func TestRawValue_KeepsMalformedLiteral(t *testing.T) {
	var rec RawRecord
	require.NoError(t, json.Unmarshal([]byte(`{"amount":true,"fee":" abc "}`), &rec))

	// 非法值不在解码阶段报错，交给导入流程拒绝
	assert.Equal(t, "true", rec.Amount.String())
	assert.Equal(t, "abc", rec.Fee.String())
	assert.False(t, rec.Amount.IsEmpty())
}
