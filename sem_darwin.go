//go:build darwin

package cotask

import "golang.org/x/sys/unix"

// newWakeFD creates a self-pipe used to back a blocking semaphore (Darwin).
// Grounded on the eventloop teacher's createWakeFd for its self-pipe
// wakeup mechanism.
func newWakeFD() (readFD, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return -1, -1, err
		}
	}
	return fds[0], fds[1], nil
}

func closeWakeFD(readFD, writeFD int) {
	_ = unix.Close(readFD)
	if writeFD != readFD && writeFD >= 0 {
		_ = unix.Close(writeFD)
	}
}

func postWakeFD(writeFD int) error {
	var buf [1]byte
	_, err := unix.Write(writeFD, buf[:])
	if err == unix.EAGAIN {
		// Pipe buffer already has a pending wakeup byte; do_sleep only
		// needs "at least one wakeup happened", so this is a no-op.
		return nil
	}
	return err
}

func waitWakeFD(readFD int) error {
	if err := pollWakeFD(readFD); err != nil {
		return err
	}
	drainWakeFDNonBlocking(readFD)
	return nil
}

func pollWakeFD(readFD int) error {
	fds := []unix.PollFd{{Fd: int32(readFD), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
}

func drainWakeFDNonBlocking(readFD int) {
	var buf [64]byte
	for {
		_, err := unix.Read(readFD, buf[:])
		if err != nil {
			return
		}
	}
}
