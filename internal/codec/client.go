// Package codec talks to the external embedding service over gRPC. The
// service exposes a loosely-typed JSON-struct API, so requests and
// replies travel as structpb payloads instead of generated stubs.
package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region methods

const (
	methodEmbed    = "/codec.Encoder/Embed"
	methodGenerate = "/codec.Encoder/Generate"
)

// #endregion methods

// #region types

// GenerateResult holds the response from a Generate call.
type GenerateResult struct {
	Text    string
	Entropy float32
}

// invoker is the slice of grpc.ClientConn the client needs. Tests
// substitute a fake.
type invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// #endregion types

// #region client-struct

// Client wraps the gRPC connection to the embedding service.
type Client struct {
	conn   *grpc.ClientConn
	inv    invoker
	health healthpb.HealthClient
}

// #endregion client-struct

// #region constructor

// New connects to the embedding gRPC server.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		inv:    conn,
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// NewWithInvoker creates a Client with an injected transport.
// Used for testing without a real gRPC connection.
func NewWithInvoker(inv invoker) *Client {
	return &Client{inv: inv}
}

// #endregion constructor

// #region close

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region health

// Healthy checks the service's liveness via the standard health protocol.
func (c *Client) Healthy(ctx context.Context) error {
	if c.health == nil {
		return nil
	}
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("health check: service status %s", resp.Status)
	}
	return nil
}

// #endregion health

// #region embed

// Embed sends text to the embedding service and returns its vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req, err := structpb.NewStruct(map[string]any{"text": text})
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	reply := &structpb.Struct{}
	if err := c.inv.Invoke(ctx, methodEmbed, req, reply); err != nil {
		return nil, fmt.Errorf("embed rpc: %w", err)
	}

	field, ok := reply.Fields["embedding"]
	if !ok {
		return nil, fmt.Errorf("embed rpc: reply missing embedding")
	}
	values := field.GetListValue().GetValues()
	embedding := make([]float32, len(values))
	for i, v := range values {
		embedding[i] = float32(v.GetNumberValue())
	}
	return embedding, nil
}

// #endregion embed

// #region generate

// Generate sends a prompt plus retrieved context to the service.
func (c *Client) Generate(ctx context.Context, prompt string, retrieved []string) (GenerateResult, error) {
	contextValues := make([]any, len(retrieved))
	for i, r := range retrieved {
		contextValues[i] = r
	}
	req, err := structpb.NewStruct(map[string]any{
		"prompt":  prompt,
		"context": contextValues,
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("build generate request: %w", err)
	}
	reply := &structpb.Struct{}
	if err := c.inv.Invoke(ctx, methodGenerate, req, reply); err != nil {
		return GenerateResult{}, fmt.Errorf("generate rpc: %w", err)
	}

	result := GenerateResult{}
	if f, ok := reply.Fields["text"]; ok {
		result.Text = f.GetStringValue()
	}
	if f, ok := reply.Fields["entropy"]; ok {
		result.Entropy = float32(f.GetNumberValue())
	}
	return result, nil
}

// #endregion generate
