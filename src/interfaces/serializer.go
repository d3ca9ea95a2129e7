package interfaces

// -----------------------------------------------------------------------------

// ISerializer defines the contract for marshaling and unmarshaling snapshot payloads.
// Sources and the REST ingest stay agnostic about the wire format (JSON, protobuf Struct).
type ISerializer interface {
	// Marshal converts a decoded record tree into a byte slice.
	Marshal(obj any) ([]byte, error)

	// Unmarshal decodes a byte slice into obj.
	Unmarshal(data []byte, obj any) error

	// ContentType is the MIME type this serializer reads and writes.
	ContentType() string
}
