package cmd

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/require"
)

// captureBuffer collects output written by pterm's printers and, when a file
// is attached, whatever the redirected os.Stdout received.
type captureBuffer struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	file *os.File
}

func (c *captureBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *captureBuffer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Reset()
	c.file = nil
}

func (c *captureBuffer) setFile(f *os.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = f
}

func (c *captureBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.buf.String()
	if c.file != nil {
		if data, err := os.ReadFile(c.file.Name()); err == nil {
			s += string(data)
		}
	}
	return s
}

var outBuf captureBuffer

// setupStdoutCapture redirects stdout (and pterm's writers) into outBuf for
// the duration of the test. pterm's package-level printers capture their
// writer at package init, so each one used by this package is pointed at
// outBuf explicitly; os.Stdout must remain an *os.File, so it is redirected
// to a temp file that outBuf.String() reads back.
func setupStdoutCapture(t *testing.T) {
	t.Helper()
	outBuf.Reset()

	f, err := os.CreateTemp(t.TempDir(), "stdout")
	require.NoError(t, err)
	outBuf.setFile(f)

	origStdout := os.Stdout
	os.Stdout = f
	pterm.SetDefaultOutput(&outBuf)

	origInfo := pterm.Info.Writer
	origSuccess := pterm.Success.Writer
	origWarning := pterm.Warning.Writer
	origError := pterm.Error.Writer
	origTable := pterm.DefaultTable.Writer
	pterm.Info.Writer = &outBuf
	pterm.Success.Writer = &outBuf
	pterm.Warning.Writer = &outBuf
	pterm.Error.Writer = &outBuf
	pterm.DefaultTable.Writer = &outBuf

	t.Cleanup(func() {
		os.Stdout = origStdout
		pterm.SetDefaultOutput(origStdout)
		pterm.Info.Writer = origInfo
		pterm.Success.Writer = origSuccess
		pterm.Warning.Writer = origWarning
		pterm.Error.Writer = origError
		pterm.DefaultTable.Writer = origTable
		_ = f.Close()
	})
}
