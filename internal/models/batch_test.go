package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchStatusTransitions(t *testing.T) {
	assert.True(t, BatchStatusDraft.CanTransition(BatchStatusApproved))
	assert.True(t, BatchStatusDraft.CanTransition(BatchStatusDraft), "draft may be regenerated")
	assert.True(t, BatchStatusApproved.CanTransition(BatchStatusIssued))

	assert.False(t, BatchStatusDraft.CanTransition(BatchStatusIssued), "no skipping approval")
	assert.False(t, BatchStatusApproved.CanTransition(BatchStatusDraft), "no going back")
	assert.False(t, BatchStatusIssued.CanTransition(BatchStatusDraft), "issued is terminal")
	assert.False(t, BatchStatusIssued.CanTransition(BatchStatusApproved))
}

func TestBatchStatusValid(t *testing.T) {
	assert.True(t, BatchStatusDraft.Valid())
	assert.True(t, BatchStatusApproved.Valid())
	assert.True(t, BatchStatusIssued.Valid())
	assert.False(t, BatchStatus("archived").Valid())
}
