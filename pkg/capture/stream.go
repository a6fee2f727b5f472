package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/harunnryd/scenecue/pkg/errorsx"
	"github.com/harunnryd/scenecue/pkg/frames"
	"github.com/harunnryd/scenecue/pkg/logging"
	"github.com/harunnryd/scenecue/pkg/pipeline"
)

// MessageReader is the read half of a WebSocket connection.
type MessageReader interface {
	ReadMessage() (messageType int, p []byte, err error)
}

// ClipHandler classifies encoded clips.
type ClipHandler interface {
	HandleClip(ctx context.Context, f frames.AudioFrame) pipeline.Outcome
}

// StreamStats summarizes one finished stream.
type StreamStats struct {
	Clips     int
	Stored    int
	Discarded int
	Ignored   int
}

// Stream reads whole clips from one connection and classifies them in
// arrival order for a single user.
type Stream struct {
	userID  string
	handler ClipHandler
	pts     *frames.PTSGen
	logger  *slog.Logger
	// OnClip, when set, observes every outcome.
	OnClip func(pipeline.Outcome)
}

func NewStream(userID string, handler ClipHandler, logger *slog.Logger) *Stream {
	return &Stream{
		userID:  userID,
		handler: handler,
		pts:     frames.NewPTSGen(),
		logger:  logging.NewComponentLogger(logger, "stream").With(slog.String("user_id", userID)),
	}
}

// Serve consumes messages until the peer goes away or ctx ends. Binary
// messages are clips; anything else is ignored. A close frame, an abrupt
// disconnect and cancellation all end the stream without error.
func (s *Stream) Serve(ctx context.Context, conn MessageReader) (StreamStats, error) {
	var stats StreamStats
	for {
		if ctx.Err() != nil {
			s.logger.Info("stream_cancelled")
			return stats, nil
		}
		mt, payload, err := conn.ReadMessage()
		if err != nil {
			if isDisconnect(err) || ctx.Err() != nil {
				s.logger.Info("stream_closed", slog.Int("clips", stats.Clips))
				return stats, nil
			}
			s.logger.Warn("stream_read_failed", slog.String("error", err.Error()))
			return stats, errorsx.Wrap(err, errorsx.ReasonTransportRead)
		}
		if mt != websocket.BinaryMessage {
			stats.Ignored++
			continue
		}
		if len(payload) == 0 {
			stats.Ignored++
			continue
		}
		stats.Clips++
		meta := map[string]string{
			frames.MetaTraceID: uuid.NewString(),
			frames.MetaSource:  frames.SourceStream,
		}
		out := s.handler.HandleClip(ctx, frames.NewAudioFrame(s.userID, s.pts.Next(s.userID), payload, meta))
		if out.Err != nil {
			stats.Discarded++
		} else if out.Stored {
			stats.Stored++
		}
		if s.OnClip != nil {
			s.OnClip(out)
		}
	}
}

func isDisconnect(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}
