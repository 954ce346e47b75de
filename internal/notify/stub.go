//go:build !linux

package notify

// New returns Nop; desktop notifications go over the Linux session bus.
func New() (Notifier, error) {
	return Nop{}, nil
}
