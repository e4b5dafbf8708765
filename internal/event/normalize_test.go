package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vincentbai/shadowtrace/internal/dom"
	"github.com/vincentbai/shadowtrace/internal/models"
)

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNormalizeAction(t *testing.T) {
	tests := []struct {
		name   string
		hint   string
		target dom.Element
		want   string
	}{
		{"click is uppercased", "click", dom.NewNode("button"), "CLICK"},
		{"change on input", "change", dom.NewNode("input", dom.Attr{Name: "type", Value: "text"}), "INPUT"},
		{"change on textarea", "change", dom.NewNode("textarea"), "INPUT"},
		{"change on select", "change", dom.NewNode("select"), "SELECT"},
		{"change elsewhere", "change", dom.NewNode("div"), "CHANGE"},
		{"submit", "submit", dom.NewNode("form"), "SUBMIT"},
		{"load without target", "load", nil, "LOAD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.hint, tt.target, dom.Describe(tt.target), StaticPage{}, at)
			assert.Equal(t, tt.want, got.Action)
		})
	}
}

func TestNormalizeFields(t *testing.T) {
	descriptor := &models.ElementDescriptor{Tag: "BUTTON"}
	page := StaticPage{URL: "https://shop.example/cart", ReferrerURL: "https://shop.example/"}

	got := Normalize("click", dom.NewNode("button"), descriptor, page, at)

	assert.Equal(t, "https://shop.example/cart", got.Page)
	assert.Equal(t, "https://shop.example/", got.PreviousPage)
	assert.Equal(t, "2026-03-01T12:00:00.000Z", got.Timestamp)
	assert.Same(t, descriptor, got.Element)
	assert.Empty(t, got.SessionID)
}

func TestNormalizeWithoutPageContext(t *testing.T) {
	got := Normalize("load", nil, nil, nil, at)

	assert.Empty(t, got.Page)
	assert.Empty(t, got.PreviousPage)
	assert.Nil(t, got.Element)
}
