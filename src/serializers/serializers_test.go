package serializers

import (
	"reflect"
	"testing"

	"runtime-observer/src/helpers"
)

func TestForContentType(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                                ContentTypeJSON,
		"application/json; charset=utf-8": ContentTypeJSON,
		"application/x-protobuf":          ContentTypeProtobuf,
		"Application/Protobuf":            ContentTypeProtobuf,
		"text/plain":                      ContentTypeJSON,
	}
	for header, want := range cases {
		if got := ForContentType(header).ContentType(); got != want {
			t.Fatalf("ForContentType(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestProtoStructCarriesSnapshot(t *testing.T) {
	t.Parallel()

	snapshot := map[string]any{
		"data_push": map[string]any{"status": "active", "is_receiving_data": true},
		"logs":      []any{map[string]any{"message": "BUY signal triggered", "timestamp": 1700000000.0}},
	}
	ser := NewProtoStructSerializer()
	data, err := ser.Marshal(snapshot)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := DecodeSnapshot(ser, data)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if !reflect.DeepEqual(decoded, snapshot) {
		t.Fatalf("decoded = %#v", decoded)
	}

	if _, err := ser.Marshal([]any{"not", "an", "object"}); err == nil {
		t.Fatalf("arrays cannot be carried as a Struct")
	}
}

func TestDecodeSnapshotErrors(t *testing.T) {
	t.Parallel()

	_, err := DecodeSnapshot(NewJSONSerializer(), []byte("{broken"))
	if err == nil || !helpers.IsDecodeError(err) {
		t.Fatalf("expected a DecodeError, got %v", err)
	}

	payload, err := DecodeSnapshot(NewJSONSerializer(), []byte(`[1, "two"]`))
	if err != nil {
		t.Fatalf("non-object JSON still decodes: %v", err)
	}
	if list, ok := payload.([]any); !ok || len(list) != 2 {
		t.Fatalf("payload = %#v", payload)
	}
}
