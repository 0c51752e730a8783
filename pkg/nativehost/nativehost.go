// Package nativehost talks to the locally installed helper that can read
// the desktop client's own credentials. The helper speaks the Chrome
// native messaging framing: a 4-byte little-endian length prefix followed
// by a JSON payload, in both directions.
package nativehost

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// DefaultHostBinary is the helper executable looked up on PATH when no
// explicit path is configured.
const DefaultHostBinary = "cursor-client2login-host"

// maxFrameSize rejects corrupt length prefixes before allocating.
const maxFrameSize = 8 << 20

var (
	// ErrHostNotFound indicates the helper binary is not installed or not
	// on PATH.
	ErrHostNotFound = errors.New("native host not found")
	// ErrAccessDenied indicates the helper exists but could not be
	// executed or refused the connection.
	ErrAccessDenied = errors.New("native host access denied")
	// ErrDisconnected indicates the helper exited or closed the pipe
	// before answering.
	ErrDisconnected = errors.New("native host disconnected")
)

// ClientData is the credential material the helper extracts from the
// desktop client install.
type ClientData struct {
	Email       string `json:"email"`
	UserID      string `json:"userid"`
	AccessToken string `json:"accessToken"`
}

// Client spawns the helper per request. Failures are classified but never
// retried automatically; each class carries its own remediation.
type Client struct {
	// HostPath overrides the PATH lookup of DefaultHostBinary.
	HostPath string
	// Timeout bounds one request round trip. Zero means 15 seconds.
	Timeout time.Duration
	Log     *slog.Logger
}

type hostRequest struct {
	Action string `json:"action"`
}

type hostResponse struct {
	Success bool        `json:"success"`
	Data    *ClientData `json:"data"`
	Error   string      `json:"error"`
}

// FetchClientData asks the helper for the desktop client's current
// credentials.
func (c *Client) FetchClientData(ctx context.Context) (*ClientData, error) {
	resp, err := c.roundTrip(ctx, hostRequest{Action: "getClientCurrentData"})
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrAccessDenied, resp.Error)
		}
		return nil, fmt.Errorf("%w: helper returned no data", ErrAccessDenied)
	}
	return resp.Data, nil
}

func (c *Client) roundTrip(ctx context.Context, req hostRequest) (*hostResponse, error) {
	bin := c.HostPath
	if bin == "" {
		bin = DefaultHostBinary
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrHostNotFound, bin)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var in bytes.Buffer
	if err := WriteFrame(&in, payload); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path)
	cmd.Stdin = &in
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classifyRunError(err, stderr.String())
	}

	frame, err := ReadFrame(&out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	var resp hostResponse
	if err := json.Unmarshal(frame, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrDisconnected, err)
	}
	if c.Log != nil {
		c.Log.Debug("native host answered", "success", resp.Success)
	}
	return &resp, nil
}

func classifyRunError(err error, stderr string) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrHostNotFound, err)
	}
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	if stderr != "" {
		return fmt.Errorf("%w: %v: %s", ErrDisconnected, err, stderr)
	}
	return fmt.Errorf("%w: %v", ErrDisconnected, err)
}

// WriteFrame writes one native messaging frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(payload))); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one native messaging frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Remediation returns user-facing next steps for a classified failure.
// Unclassified errors get no guidance.
func Remediation(err error) []string {
	switch {
	case errors.Is(err, ErrHostNotFound):
		return []string{
			"Install the native host helper and ensure it is on PATH",
			"Run the helper's install script, then try again",
		}
	case errors.Is(err, ErrAccessDenied):
		return []string{
			"Check the helper binary is executable (chmod +x)",
			"Verify the desktop client is installed and has been signed in at least once",
		}
	case errors.Is(err, ErrDisconnected):
		return []string{
			"The helper exited unexpectedly; check its logs",
			"Reinstall the helper if the problem persists",
		}
	}
	return nil
}
