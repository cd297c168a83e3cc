package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/unity-mcp/unity-mcp-bridge/pkg/wire"
)

// session runs the dispatch loop over one bridge connection. Both
// attachment modes reduce to this: read, frame, dispatch, reply.
type session struct {
	conn       net.Conn
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// serve reads until the connection drops or ctx ends. A framing overflow or
// write failure is returned to the caller; a plain remote close is not an
// error.
func (s *session) serve(ctx context.Context) error {
	framer := wire.NewFramer(0)
	buf := make([]byte, 4096)

	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			msgs, ferr := framer.Feed(buf[:n])
			if errors.Is(ferr, wire.ErrBufferOverflow) {
				return ferr
			}
			if ferr != nil {
				s.logger.Warn("discarding malformed message", "error", ferr)
			}
			for _, raw := range msgs {
				env, derr := wire.Decode(raw)
				if derr != nil {
					s.logger.Warn("discarding undecodable message", "error", derr)
					continue
				}
				resp := s.dispatcher.Dispatch(ctx, env)
				if werr := s.write(resp); werr != nil {
					return fmt.Errorf("editor: write response: %w", werr)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("editor: read: %w", err)
		}
	}
}

// write encodes and transmits one response. A result the encoder cannot
// marshal is downgraded to an error response so the bridge side never waits
// out its timeout on a reply that silently failed to serialize.
func (s *session) write(resp wire.Response) error {
	data, err := resp.Encode()
	if err != nil {
		s.logger.Error("unserializable handler result", "id", resp.ID, "error", err)
		data, err = errorResponse(resp.ID, "handler result is not serializable").Encode()
		if err != nil {
			return err
		}
	}
	_, err = s.conn.Write(data)
	return err
}
