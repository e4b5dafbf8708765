package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/shadowtrace/internal/models"
)

func TestCBORCarriesEventFields(t *testing.T) {
	batch := models.Batch{{
		Action:    "CLICK",
		Page:      "https://example.com",
		Timestamp: "2026-01-01T00:00:00.000Z",
		Element:   &models.ElementDescriptor{Tag: "BUTTON", Attributes: map[string]string{"id": "go"}},
		SessionID: "s-1",
	}}

	data, err := CBOR.Marshal(batch)
	require.NoError(t, err)

	var decoded models.Batch
	require.NoError(t, CBOR.Decode(bytes.NewReader(data), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "s-1", decoded[0].SessionID)
	assert.Equal(t, "go", decoded[0].Element.Attributes["id"])
}

func TestCBORIsDeterministic(t *testing.T) {
	descriptor := models.ElementDescriptor{Attributes: map[string]string{"b": "2", "a": "1", "c": "3"}}

	first, err := CBOR.Marshal(descriptor)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := CBOR.Marshal(descriptor)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", ContentTypeJSON, false},
		{"json", ContentTypeJSON, false},
		{"cbor", ContentTypeCBOR, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		c, err := ByName(tt.name)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.ContentType())
	}
}

func TestForContentType(t *testing.T) {
	assert.Equal(t, CBOR, ForContentType("application/cbor"))
	assert.Equal(t, JSON, ForContentType("application/json"))
	assert.Equal(t, JSON, ForContentType(""))
}
