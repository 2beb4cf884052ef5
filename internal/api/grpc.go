package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// GRPCServiceName is the full name of the segmentation service. Its single
// unary method, Segment, takes a Frame and returns a SegmentResponse, both
// carried with the "json" content subtype.
const GRPCServiceName = "tableseg.Segmenter"

const segmentMethod = "/" + GRPCServiceName + "/Segment"

// jsonCodecName is the content subtype of every Segmenter message, so
// requests are sent as application/grpc+json.
const jsonCodecName = "json"

// jsonCodec carries Frame and SegmentResponse over gRPC in the same JSON
// form as the HTTP API.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// SegmentService is the server side of tableseg.Segmenter.
type SegmentService interface {
	Segment(ctx context.Context, f *Frame) (*SegmentResponse, error)
}

var segmenterServiceDesc = grpc.ServiceDesc{
	ServiceName: GRPCServiceName,
	HandlerType: (*SegmentService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Segment", Handler: segmentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tableseg/segmenter.json",
}

func segmentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Frame)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SegmentService).Segment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: segmentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SegmentService).Segment(ctx, req.(*Frame))
	}
	return interceptor(ctx, in, info, handler)
}

// grpcSegmenter maps Server.Segment errors to gRPC status codes.
type grpcSegmenter struct {
	s *Server
}

func (g grpcSegmenter) Segment(ctx context.Context, f *Frame) (*SegmentResponse, error) {
	resp, err := g.s.Segment(ctx, f)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, ErrBadFrame):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return nil, status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return nil, status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return nil, status.Error(codes.Internal, err.Error())
	}
}

// RegisterGRPC registers the Segmenter service and a health service that
// reports it as serving.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&segmenterServiceDesc, grpcSegmenter{s})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(GRPCServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
}

// NewGRPCServer returns a gRPC server with the Segmenter and health
// services registered. Message limits admit any frame the HTTP API admits.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(MaxFrameBytes),
		grpc.MaxSendMsgSize(MaxFrameBytes),
	}, opts...)
	gs := grpc.NewServer(opts...)
	s.RegisterGRPC(gs)
	return gs
}

// GRPCClient calls a remote Segmenter service.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// DialGRPC connects to the Segmenter at target, e.g. "localhost:50051".
// The connection is plaintext unless opts supply credentials.
func DialGRPC(target string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxFrameBytes),
			grpc.MaxCallSendMsgSize(MaxFrameBytes),
		),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &GRPCClient{conn: conn}, nil
}

// Segment sends one frame to tableseg.Segmenter/Segment.
func (c *GRPCClient) Segment(ctx context.Context, f *Frame) (*SegmentResponse, error) {
	out := new(SegmentResponse)
	if err := c.conn.Invoke(ctx, segmentMethod, f, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

// Healthy reports whether the server says the Segmenter is serving.
func (c *GRPCClient) Healthy(ctx context.Context) (bool, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: GRPCServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func (c *GRPCClient) Close() error { return c.conn.Close() }
