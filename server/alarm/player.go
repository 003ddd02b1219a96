package alarm

import (
	"os/exec"
	"strings"
)

// CommandPlayer plays the alarm sound by running an external command, eg
// "aplay /usr/share/sounds/alarm.wav" or "paplay beep.ogg".
// An empty command yields a silent player (useful on headless machines).
func CommandPlayer(command string) Player {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return func() error { return nil }
	}
	return func() error {
		cmd := exec.Command(parts[0], parts[1:]...)
		if out, err := cmd.CombinedOutput(); err != nil {
			if len(out) != 0 {
				return &playerError{msg: strings.TrimSpace(string(out))}
			}
			return err
		}
		return nil
	}
}

type playerError struct {
	msg string
}

func (e *playerError) Error() string {
	return e.msg
}
