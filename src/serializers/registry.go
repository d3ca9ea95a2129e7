package serializers

import (
	"mime"
	"strings"

	"runtime-observer/src/helpers"
	"runtime-observer/src/interfaces"
)

// -----------------------------------------------------------------------------

// ForContentType picks the codec for a Content-Type header value. Anything that
// is not protobuf is read as JSON.
func ForContentType(contentType string) interfaces.ISerializer {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}
	switch mediaType {
	case ContentTypeProtobuf, "application/protobuf", "application/vnd.google.protobuf":
		return NewProtoStructSerializer()
	}
	return NewJSONSerializer()
}

// -----------------------------------------------------------------------------

// DecodeSnapshot turns a wire payload into the untyped record tree the
// normalizer consumes.
func DecodeSnapshot(ser interfaces.ISerializer, data []byte) (any, error) {
	var payload any
	if err := ser.Unmarshal(data, &payload); err != nil {
		return nil, helpers.NewDecodeError("decode snapshot", err)
	}
	return payload, nil
}
