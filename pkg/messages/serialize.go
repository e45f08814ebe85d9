package messages

import (
	"bytes"
	"fmt"
	"io"

	eventfb "github.com/cbodonnell/tsuro/flatbuffers/event"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
)

func SerializeEvent(e *Event) ([]byte, error) {
	b, err := SerializeEventFlatbuffer(e)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event: %v", err)
	}

	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := compWriter.Write(b); err != nil {
		return nil, fmt.Errorf("failed to compress event: %v", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return compressed.Bytes(), nil
}

func DeserializeEvent(data []byte) (*Event, error) {
	compReader, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer compReader.Close()
	b, err := io.ReadAll(compReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed event: %v", err)
	}

	e, err := DeserializeEventFlatbuffer(b)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize event: %v", err)
	}

	return e, nil
}

func SerializeEventFlatbuffer(e *Event) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("event is nil")
	}
	builder := flatbuffers.NewBuilder(0)

	eventType := builder.CreateString(string(e.Event))
	sessionID := builder.CreateString(e.SessionID)
	key := builder.CreateString(e.Key)
	message := builder.CreateString(e.Message)
	var value flatbuffers.UOffsetT
	if e.Value != nil {
		value = builder.CreateByteVector(e.Value)
	}

	eventfb.EventStart(builder)
	eventfb.EventAddEvent(builder, eventType)
	eventfb.EventAddSessionId(builder, sessionID)
	eventfb.EventAddKey(builder, key)
	if e.Value != nil {
		eventfb.EventAddValue(builder, value)
	}
	eventfb.EventAddMessage(builder, message)
	eventOffset := eventfb.EventEnd(builder)
	builder.Finish(eventOffset)

	return builder.FinishedBytes(), nil
}

func DeserializeEventFlatbuffer(b []byte) (e *Event, err error) {
	if len(b) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("buffer too short: %d bytes", len(b))
	}
	defer func() {
		if r := recover(); r != nil {
			e, err = nil, fmt.Errorf("malformed event buffer: %v", r)
		}
	}()

	eventFlatbuffer := eventfb.GetRootAsEvent(b, 0)
	e = &Event{
		Event:     EventType(eventFlatbuffer.Event()),
		SessionID: string(eventFlatbuffer.SessionId()),
		Key:       string(eventFlatbuffer.Key()),
		Message:   string(eventFlatbuffer.Message()),
	}
	if value := eventFlatbuffer.ValueBytes(); value != nil {
		e.Value = append([]byte{}, value...)
	}
	if e.Event == "" {
		return nil, fmt.Errorf("event type is missing")
	}

	return e, nil
}
