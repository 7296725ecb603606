package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/HatiCode/viewcast/pkg/board"
	"github.com/HatiCode/viewcast/pkg/engine"
	"github.com/HatiCode/viewcast/pkg/features"
)

// Predictor scores a single video.
type Predictor interface {
	Predict(v features.Video) (engine.Result, error)
}

// Recorder receives per-call instrumentation.
type Recorder interface {
	RecordPrediction(platform, decision string)
	RecordError(component, reason string)
}

// Server implements BoardServer on top of the engine.
type Server struct {
	predictor Predictor
	metrics   Recorder
	logger    *slog.Logger
}

var _ BoardServer = (*Server)(nil)

// NewServer creates a Board server. metrics may be nil.
func NewServer(predictor Predictor, metrics Recorder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{predictor: predictor, metrics: metrics, logger: logger}
}

// Predict scores the video described by req.
//
// Bad or unknown attributes yield codes.InvalidArgument and an unfitted model
// yields codes.FailedPrecondition.
func (s *Server) Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	video, err := VideoFromStruct(req)
	if err != nil {
		s.recordError("invalid_request")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.predictor.Predict(video)
	switch {
	case err == nil:
	case features.IsInvalidInput(err):
		s.recordError("invalid_input")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, engine.ErrModelNotReady):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	default:
		s.logger.Error("predict failed", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	if s.metrics != nil {
		s.metrics.RecordPrediction(board.PlatformLabel(res.Vector.Platform), res.Decision)
	}

	out, err := ResultToStruct(res)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) recordError(reason string) {
	if s.metrics != nil {
		s.metrics.RecordError("grpc", reason)
	}
}

// LoggingInterceptor logs every unary call with its status code and duration.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("gRPC request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// VideoFromStruct reads a video from its Struct form. duration_seconds must
// be a number; type, platform and day must be strings.
func VideoFromStruct(s *structpb.Struct) (features.Video, error) {
	if s == nil {
		return features.Video{}, errors.New("empty request")
	}
	fields := s.GetFields()

	var v features.Video

	d, ok := fields["duration_seconds"]
	if !ok {
		return v, errors.New("missing field duration_seconds")
	}
	num, ok := d.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return v, errors.New("duration_seconds must be a number")
	}
	v.DurationSeconds = num.NumberValue

	for _, field := range []struct {
		name string
		dst  *string
	}{{"type", &v.Type}, {"platform", &v.Platform}, {"day", &v.Day}} {
		name, dst := field.name, field.dst
		f, ok := fields[name]
		if !ok {
			return features.Video{}, fmt.Errorf("missing field %s", name)
		}
		str, ok := f.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return features.Video{}, fmt.Errorf("%s must be a string", name)
		}
		*dst = str.StringValue
	}

	return v, nil
}

// VideoToStruct is the inverse of VideoFromStruct.
func VideoToStruct(v features.Video) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"duration_seconds": v.DurationSeconds,
		"type":             v.Type,
		"platform":         v.Platform,
		"day":              v.Day,
	})
}

// ResultToStruct renders an engine result as the Predict response.
func ResultToStruct(r engine.Result) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"views":     float64(r.Views),
		"raw_views": r.RawViews,
		"revenue":   r.Revenue.StringFixed(engine.RevenueDecimals),
		"decision":  r.Decision,
	})
}
