package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionMetaRoundTrip(t *testing.T) {
	tx := &Transaction{}
	assert.Empty(t, tx.MetaMap())

	tx.SetMeta("orphan", "true")
	tx.SetMeta("held_reason", "plan_not_found")

	m := tx.MetaMap()
	assert.Equal(t, "true", m["orphan"])
	assert.Equal(t, "plan_not_found", m["held_reason"])
}

func TestTransactionAppendMeta(t *testing.T) {
	tx := &Transaction{}
	tx.AppendMeta("pending_payment_ids", "pay_a")
	tx.AppendMeta("pending_payment_ids", "pay_b")

	assert.Equal(t, "pay_a,pay_b", tx.MetaMap()["pending_payment_ids"])
}
