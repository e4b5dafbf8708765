package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEventWireFieldNames(t *testing.T) {
	value := "hello"
	event := Event{
		Action:       "INPUT",
		Page:         "https://example.com/form",
		PreviousPage: "https://example.com/",
		Timestamp:    "2009-02-13T23:31:30.000Z",
		Element: &ElementDescriptor{
			Tag:        "INPUT",
			ID:         "email",
			Attributes: map[string]string{"id": "email", "type": "text"},
			Value:      &value,
		},
		SessionID: "abc",
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}

	for _, field := range []string{`"action"`, `"page"`, `"previousPage"`, `"timestamp"`, `"element"`, `"sessionId"`, `"innerText"`, `"className"`, `"value":"hello"`} {
		if !strings.Contains(string(jsonData), field) {
			t.Errorf("Expected %s in %s", field, jsonData)
		}
	}
}

func TestEventWithNullElement(t *testing.T) {
	event := Event{
		Action:    "LOAD",
		Page:      "https://example.com",
		Timestamp: "2009-02-13T23:31:30.000Z",
		SessionID: "abc",
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal event with null element: %v", err)
	}
	if !strings.Contains(string(jsonData), `"element":null`) {
		t.Errorf("Expected null element, got %s", jsonData)
	}

	var unmarshaled Event
	if err := json.Unmarshal(jsonData, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal event with null element: %v", err)
	}
	if unmarshaled.Element != nil {
		t.Errorf("Expected nil element, got %v", unmarshaled.Element)
	}
}

func TestDescriptorWithoutValueOmitsField(t *testing.T) {
	jsonData, err := json.Marshal(ElementDescriptor{Tag: "BUTTON"})
	if err != nil {
		t.Fatalf("Failed to marshal descriptor: %v", err)
	}
	if strings.Contains(string(jsonData), `"value"`) {
		t.Errorf("Expected no value field, got %s", jsonData)
	}
}

func TestBatchIsBareArray(t *testing.T) {
	batch := Batch{{Action: "CLICK"}, {Action: "SUBMIT"}}

	jsonData, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("Failed to marshal batch: %v", err)
	}
	if !strings.HasPrefix(string(jsonData), "[") {
		t.Errorf("Expected JSON array, got %s", jsonData)
	}
}

func TestFormatTimestamp(t *testing.T) {
	at := time.Date(2009, 2, 13, 23, 31, 30, 123e6, time.FixedZone("X", 3600))
	if got := FormatTimestamp(at); got != "2009-02-13T22:31:30.123Z" {
		t.Errorf("FormatTimestamp() = %s", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	value := "secret"
	original := &ElementDescriptor{Attributes: map[string]string{"a": "1"}, Value: &value}

	clone := original.Clone()
	clone.Attributes["a"] = "2"
	*clone.Value = "changed"

	if original.Attributes["a"] != "1" || *original.Value != "secret" {
		t.Errorf("Clone shares state with original: %+v", original)
	}
	if (*ElementDescriptor)(nil).Clone() != nil {
		t.Error("Expected nil clone of nil descriptor")
	}
}
