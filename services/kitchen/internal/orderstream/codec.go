package orderstream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/pkg/lifecycle"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName  = "pos.orderstream.OrderEvents"
	streamMethod = "/" + ServiceName + "/Stream"

	sourceName = "orderstream"
)

// OrderEventsServer is the server API of the order stream. Requests and
// events travel as google.protobuf.Struct values shaped like event.OrderEvent.
type OrderEventsServer interface {
	Stream(req *structpb.Struct, stream grpc.ServerStream) error
}

var streamDesc = grpc.StreamDesc{
	StreamName:    "Stream",
	Handler:       streamHandler,
	ServerStreams: true,
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderEventsServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams:     []grpc.StreamDesc{streamDesc},
	Metadata:    "orderstream",
}

func streamHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(OrderEventsServer).Stream(req, stream)
}

func encodeEvent(evt event.OrderEvent) (*structpb.Struct, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("cannot encode order event: %w", err)
	}
	msg := new(structpb.Struct)
	if err := protojson.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("cannot convert order event: %w", err)
	}
	return msg, nil
}

func decodeEvent(msg *structpb.Struct) (event.OrderEvent, error) {
	var evt event.OrderEvent
	data, err := protojson.Marshal(msg)
	if err != nil {
		return evt, fmt.Errorf("cannot convert order event: %w", err)
	}
	if err := json.Unmarshal(data, &evt); err != nil {
		return evt, fmt.Errorf("cannot decode order event: %w", err)
	}
	return evt, nil
}

func snapshotEvent(o lifecycle.Order, at time.Time) (event.OrderEvent, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return event.OrderEvent{}, err
	}
	return event.OrderEvent{
		EventType:  event.EventOrderSnapshot,
		OccurredAt: at.UTC(),
		OrderID:    int64(o.ID),
		Status:     o.Status.Code(),
		Source:     sourceName,
		Order:      data,
	}, nil
}

// changeEvent maps a controller change to the event sent downstream.
// Optimistic and reorder changes are not forwarded.
func changeEvent(c lifecycle.Change) (event.OrderEvent, bool, error) {
	if c.Optimistic {
		return event.OrderEvent{}, false, nil
	}

	evt := event.OrderEvent{
		OccurredAt: c.At.UTC(),
		OrderID:    int64(c.OrderID),
		Source:     sourceName,
	}

	switch c.Kind {
	case lifecycle.ChangeAdded:
		evt.EventType = event.EventOrderCreated
	case lifecycle.ChangeUpdated:
		evt.EventType = event.EventOrderUpdated
		if c.Previous != nil && c.Order != nil && c.Previous.Status != c.Order.Status {
			evt.EventType = event.EventOrderStatusChanged
			evt.PreviousStatus = c.Previous.Status.Code()
		}
	case lifecycle.ChangeRemoved:
		evt.EventType = event.EventOrderRemoved
		if c.Previous != nil {
			evt.Status = c.Previous.Status.Code()
		}
		return evt, true, nil
	default:
		return event.OrderEvent{}, false, nil
	}

	if c.Order != nil {
		data, err := json.Marshal(c.Order)
		if err != nil {
			return event.OrderEvent{}, false, err
		}
		evt.Status = c.Order.Status.Code()
		evt.Order = data
	}
	return evt, true, nil
}
