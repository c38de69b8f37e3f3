package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"roomchat/internal/common"
	"roomchat/internal/message"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// CodecName is the content subtype clients select with
// grpc.CallContentSubtype to talk to ChatStream.
const CodecName = "json"

const (
	ChatStreamServiceName = "roomchat.v1.ChatStream"
	SubscribeMethod       = "/" + ChatStreamServiceName + "/Subscribe"
	streamBuffer          = 64
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type SubscribeRequest struct {
	GroupID string `json:"groupId"`
	// IncludeHistory replays the backfilled timeline before live messages.
	IncludeHistory bool `json:"includeHistory"`
}

type ChatMessage = message.Formatted

type ChatStreamServer interface {
	Subscribe(*SubscribeRequest, ChatStream_SubscribeServer) error
}

type ChatStream_SubscribeServer interface {
	Send(*ChatMessage) error
	grpc.ServerStream
}

type chatStreamSubscribeServer struct {
	grpc.ServerStream
}

func (x *chatStreamSubscribeServer) Send(m *ChatMessage) error {
	return x.ServerStream.SendMsg(m)
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(ChatStreamServer).Subscribe(req, &chatStreamSubscribeServer{stream})
}

var ChatStreamServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatStreamServiceName,
	HandlerType: (*ChatStreamServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "roomchat/v1/chat_stream",
}

func RegisterChatStreamServer(s grpc.ServiceRegistrar, srv ChatStreamServer) {
	s.RegisterService(&ChatStreamServiceDesc, srv)
}

// StreamServer serves live group messages to authenticated callers. The
// caller's Principal is put on the context by the stream auth interceptor.
type StreamServer struct {
	svc ChatService
	log *zap.SugaredLogger
}

func NewStreamServer(svc ChatService, log *zap.SugaredLogger) *StreamServer {
	return &StreamServer{svc: svc, log: log}
}

// Subscribe holds the subscription open until the client cancels, a send
// fails or the underlying network stream ends.
func (s *StreamServer) Subscribe(req *SubscribeRequest, stream ChatStream_SubscribeServer) error {
	ctx := stream.Context()
	p, ok := common.PrincipalFrom(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "authorization required")
	}

	out := make(chan message.Formatted, streamBuffer)
	stop := make(chan struct{})
	sub, err := s.svc.Subscribe(ctx, p, req.GroupID, func(m message.Formatted) {
		select {
		case out <- m:
		case <-stop:
		}
	})
	if err != nil {
		s.log.Warnw("subscribe failed", "actor", p.ActorID(), "group", req.GroupID, "error", err)
		return statusError(err)
	}
	defer sub.Dispose()
	defer close(stop)

	if req.IncludeHistory {
		for _, m := range sub.Timeline().Items() {
			m := m
			if err := stream.Send(&m); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case <-sub.Done():
			return status.Error(codes.Unavailable, "message stream ended")
		case m := <-out:
			if err := stream.Send(&m); err != nil {
				s.log.Debugw("stream send failed", "actor", p.ActorID(), "group", req.GroupID, "error", err)
				return err
			}
		}
	}
}

type ChatStream_SubscribeClient interface {
	Recv() (*ChatMessage, error)
	grpc.ClientStream
}

type chatStreamSubscribeClient struct {
	grpc.ClientStream
}

func (x *chatStreamSubscribeClient) Recv() (*ChatMessage, error) {
	m := new(ChatMessage)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type StreamClient struct {
	cc grpc.ClientConnInterface
}

func NewStreamClient(cc grpc.ClientConnInterface) *StreamClient {
	return &StreamClient{cc: cc}
}

func (c *StreamClient) Subscribe(ctx context.Context, req *SubscribeRequest, opts ...grpc.CallOption) (ChatStream_SubscribeClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ChatStreamServiceDesc.Streams[0], SubscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &chatStreamSubscribeClient{stream}
	// io.EOF means the server already ended the call; Recv reports why.
	if err := x.ClientStream.SendMsg(req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
