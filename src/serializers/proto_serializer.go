package serializers

import (
	"fmt"

	"runtime-observer/src/interfaces"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ContentTypeProtobuf marks a google.protobuf.Struct encoded snapshot.
const ContentTypeProtobuf = "application/x-protobuf"

// -----------------------------------------------------------------------------

// ProtoStructSerializer carries snapshots as google.protobuf.Struct messages.
// Only object payloads can be encoded; decoding yields map[string]any.
type ProtoStructSerializer struct{}

// -----------------------------------------------------------------------------

func NewProtoStructSerializer() interfaces.ISerializer {
	return &ProtoStructSerializer{}
}

// -----------------------------------------------------------------------------

func (p *ProtoStructSerializer) Marshal(obj any) ([]byte, error) {
	var msg *structpb.Struct
	switch t := obj.(type) {
	case *structpb.Struct:
		msg = t
	case map[string]any:
		s, err := structpb.NewStruct(t)
		if err != nil {
			return nil, fmt.Errorf("protobuf marshal error: %w", err)
		}
		msg = s
	default:
		return nil, fmt.Errorf("protobuf marshal error: snapshot must be an object, got %T", obj)
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protobuf marshal error: %w", err)
	}
	return data, nil
}

// -----------------------------------------------------------------------------

func (p *ProtoStructSerializer) Unmarshal(data []byte, obj any) error {
	msg := &structpb.Struct{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("protobuf unmarshal error: %w", err)
	}

	switch t := obj.(type) {
	case *any:
		*t = msg.AsMap()
	case *map[string]any:
		*t = msg.AsMap()
	case *structpb.Struct:
		proto.Reset(t)
		proto.Merge(t, msg)
	default:
		return fmt.Errorf("protobuf unmarshal error: unsupported target %T", obj)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (p *ProtoStructSerializer) ContentType() string {
	return ContentTypeProtobuf
}
