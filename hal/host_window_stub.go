//go:build !tinygo && !cgo

package hal

import "errors"

// ErrNoWindow is returned by RunWindow in builds without cgo.
var ErrNoWindow = errors.New("window mode needs cgo; rebuild with CGO_ENABLED=1 or pass --headless")

// RunWindow is unavailable without cgo.
func RunWindow(HostConfig, func(HAL) func() error) error {
	return ErrNoWindow
}
