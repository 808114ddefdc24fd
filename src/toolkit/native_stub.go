//go:build !windows

package toolkit

// NewNative is only available on Windows. Other platforms can replay scripts through the
// scripted driver.
func NewNative(focal float32) (Driver, error) {
	return nil, ErrUnsupported
}
