package deeptoken

import (
	"log/slog"

	"github.com/pkg/browser"
)

// BrowserOpener opens the login page in the user's default browser. The
// returned window cannot be closed programmatically; Close is a no-op so
// the flow's cleanup path stays uniform.
type BrowserOpener struct {
	Log *slog.Logger
}

type browserWindow struct{}

func (browserWindow) Close() error { return nil }

// Open launches url in the default browser.
func (o BrowserOpener) Open(url string) (Window, error) {
	if o.Log != nil {
		o.Log.Debug("opening login page", "url", url)
	}
	if err := browser.OpenURL(url); err != nil {
		return nil, err
	}
	return browserWindow{}, nil
}
