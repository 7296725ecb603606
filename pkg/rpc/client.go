package rpc

import (
	"context"
	cryptotls "crypto/tls"
	"fmt"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/HatiCode/viewcast/pkg/features"
)

// Prediction is the client-side view of a Predict response.
type Prediction struct {
	Views    int64
	RawViews float64
	Revenue  decimal.Decimal
	Decision string
}

// Client calls the Board service.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to addr. A nil tlsCfg uses plaintext.
func Dial(addr string, tlsCfg *cryptotls.Config) (*Client, error) {
	creds := insecure.NewCredentials()
	if tlsCfg != nil {
		creds = credentials.NewTLS(tlsCfg)
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection. Close is a no-op for it.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes a connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Predict scores one video remotely.
func (c *Client) Predict(ctx context.Context, v features.Video, opts ...grpc.CallOption) (Prediction, error) {
	in, err := VideoToStruct(v)
	if err != nil {
		return Prediction{}, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PredictMethod, in, out, opts...); err != nil {
		return Prediction{}, err
	}

	return predictionFromStruct(out)
}

func predictionFromStruct(s *structpb.Struct) (Prediction, error) {
	f := s.GetFields()

	revenue, err := decimal.NewFromString(f["revenue"].GetStringValue())
	if err != nil {
		return Prediction{}, fmt.Errorf("invalid revenue in response: %w", err)
	}

	return Prediction{
		Views:    int64(f["views"].GetNumberValue()),
		RawViews: f["raw_views"].GetNumberValue(),
		Revenue:  revenue,
		Decision: f["decision"].GetStringValue(),
	}, nil
}
