//go:build unix

package progress

import "golang.org/x/sys/unix"

// isTerminal reports whether fd refers to a terminal; a winsize ioctl only
// succeeds on ttys.
func isTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
	return err == nil
}
