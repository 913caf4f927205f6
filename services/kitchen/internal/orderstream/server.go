package orderstream

import (
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
	"github.com/appetiteclub/pos/pkg/event"
	"github.com/appetiteclub/pos/pkg/lifecycle"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Feed is the order cache a stream server reads from.
type Feed interface {
	Orders() []lifecycle.Order
	Subscribe(id string) <-chan lifecycle.Change
	Unsubscribe(id string)
}

// Server streams the current orders and every later change to downstream displays.
type Server struct {
	feed   Feed
	logger apt.Logger
	now    func() time.Time
}

func NewServer(feed Feed, logger apt.Logger) *Server {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Server{feed: feed, logger: logger, now: time.Now}
}

// RegisterGRPCService registers this service with the gRPC server.
func (s *Server) RegisterGRPCService(server *grpc.Server) {
	server.RegisterService(&serviceDesc, s)
}

// Stream sends a snapshot then live changes. The optional request field
// "status" limits the stream to orders entering or leaving that status.
func (s *Server) Stream(req *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()

	var filter orderstatus.Status
	if v, ok := req.GetFields()["status"]; ok && v.GetStringValue() != "" {
		st, err := orderstatus.Parse(v.GetStringValue())
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "unknown status %q", v.GetStringValue())
		}
		filter = st
	}

	subscriberID := uuid.New().String()
	s.logger.Info("new order stream subscriber", "subscriber_id", subscriberID, "status_filter", filter.Code())

	changes := s.feed.Subscribe(subscriberID)
	defer func() {
		s.feed.Unsubscribe(subscriberID)
		s.logger.Info("order stream subscriber disconnected", "subscriber_id", subscriberID)
	}()

	now := s.now()
	for _, o := range s.feed.Orders() {
		if !filter.IsZero() && o.Status != filter {
			continue
		}
		evt, err := snapshotEvent(o, now)
		if err != nil {
			s.logger.Error("cannot encode snapshot order", "order_id", o.ID, "error", err)
			continue
		}
		if err := s.send(stream, evt); err != nil {
			s.logger.Errorf("failed to send snapshot order: %v", err)
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if !matchesFilter(c, filter) {
				continue
			}
			evt, forward, err := changeEvent(c)
			if err != nil {
				s.logger.Error("cannot encode order change", "order_id", c.OrderID, "error", err)
				continue
			}
			if !forward {
				continue
			}
			if err := s.send(stream, evt); err != nil {
				s.logger.Errorf("failed to send order event: %v", err)
				return err
			}
		}
	}
}

func (s *Server) send(stream grpc.ServerStream, evt event.OrderEvent) error {
	msg, err := encodeEvent(evt)
	if err != nil {
		return err
	}
	return stream.SendMsg(msg)
}

func matchesFilter(c lifecycle.Change, filter orderstatus.Status) bool {
	if filter.IsZero() {
		return true
	}
	if c.Order != nil && c.Order.Status == filter {
		return true
	}
	return c.Previous != nil && c.Previous.Status == filter
}
