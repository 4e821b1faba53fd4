package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailhive/retailhive-backend/pkg/enums"
	"github.com/retailhive/retailhive-backend/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventProductApproved, 1, JSONDecoder[payloads.ProductDecisionEvent]())

	productID := uuid.New()
	out, err := reg.Decode(enums.EventProductApproved, 1, json.RawMessage(`{"product_id":"`+productID.String()+`","approved":true}`))
	require.NoError(t, err)

	decoded, ok := out.(*payloads.ProductDecisionEvent)
	require.True(t, ok)
	assert.Equal(t, productID, decoded.ProductID)
	assert.True(t, decoded.Approved)

	_, err = reg.Decode(enums.EventProductApproved, 2, json.RawMessage(`{}`))
	assert.Error(t, err)

	_, err = reg.Decode(enums.EventProductApproved, 1, json.RawMessage(`[`))
	assert.Error(t, err)
}
