package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/client2login/cli/pkg/nativehost"
)

// Serve reads framed requests from r and writes framed responses to w
// until r closes or ctx is cancelled. One malformed frame ends the
// session; a malformed request inside a valid frame only fails that
// request.
func (d *Dispatcher) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := nativehost.ReadFrame(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading request frame: %w", err)
		}

		var req Request
		var resp Response
		if err := json.Unmarshal(frame, &req); err != nil {
			resp = Response{Error: fmt.Sprintf("malformed request: %v", err)}
		} else {
			resp = d.Dispatch(ctx, req)
		}

		payload, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encoding response: %w", err)
		}
		if err := nativehost.WriteFrame(w, payload); err != nil {
			return fmt.Errorf("writing response frame: %w", err)
		}
	}
}
