package alert

import (
	"github.com/gen2brain/beeep"

	"codeberg.org/mutker/nvidiamon/internal/errors"
)

// Notifier delivers alert messages to the user.
type Notifier interface {
	Notify(title, message string) error
}

// DesktopNotifier sends notifications through the platform notification
// service (D-Bus on Linux, toast on Windows, osascript on macOS).
type DesktopNotifier struct {
	icon string
}

func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{}
}

// WithIcon sets the icon shown next to notifications.
func (n *DesktopNotifier) WithIcon(path string) *DesktopNotifier {
	n.icon = path
	return n
}

func (n *DesktopNotifier) Notify(title, message string) error {
	errFactory := errors.New()

	if err := beeep.Notify(title, message, n.icon); err != nil {
		return errFactory.Wrap(ErrNotifyFailed, err)
	}

	return nil
}
