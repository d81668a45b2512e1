package embed

// #region imports
import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// #endregion

// #region wire

// The sidecar contract uses protobuf well-known types so no generated stubs
// are required: the request is a StringValue holding the text, the response a
// ListValue of numbers.
const (
	ServiceName = "assistant.embed.v1.EmbedService"
	embedMethod = "/" + ServiceName + "/Embed"
)

// #endregion

// #region client-struct

// Client embeds text through a gRPC embedding sidecar.
type Client struct {
	conn    *grpc.ClientConn
	dim     int
	timeout time.Duration
}

// #endregion

// #region constructor

// NewClient connects to the embedding sidecar at addr.
func NewClient(addr string, dim int, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, dim: dim, timeout: timeout}, nil
}

// #endregion

// #region close

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// #endregion

// #region embed

// Dimension implements Embedder.
func (c *Client) Dimension() int { return c.dim }

// Name implements Embedder.
func (c *Client) Name() string { return "grpc" }

// Embed implements Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp := &structpb.ListValue{}
	if err := c.conn.Invoke(ctx, embedMethod, wrapperspb.String(text), resp); err != nil {
		return nil, fmt.Errorf("embed rpc: %w", err)
	}
	vec := make([]float32, len(resp.Values))
	for i, v := range resp.Values {
		n, ok := v.Kind.(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("embed rpc: element %d is not a number", i)
		}
		vec[i] = float32(n.NumberValue)
	}
	if c.dim > 0 && len(vec) != c.dim {
		return nil, fmt.Errorf("embed rpc: got dimension %d, want %d", len(vec), c.dim)
	}
	return vec, nil
}

// #endregion
