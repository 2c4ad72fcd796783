//go:build linux

package cotask

import "golang.org/x/sys/unix"

// newWakeFD creates an eventfd used to back a blocking semaphore (Linux).
// Grounded on the eventloop teacher's createWakeFd for its wake pipe: here
// the same primitive backs sleep_sem (spec.md §3) for SyncBlocking mode
// rather than a loop wakeup channel.
func newWakeFD() (readFD, writeFD int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

func closeWakeFD(readFD, writeFD int) {
	_ = unix.Close(readFD)
	if writeFD != readFD && writeFD >= 0 {
		_ = unix.Close(writeFD)
	}
}

// postWakeFD posts one wakeup unit.
func postWakeFD(writeFD int) error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(writeFD, buf[:])
	return err
}

// waitWakeFD blocks until at least one unit is available, then drains all
// pending units (an eventfd counter, not a strict single-post semaphore;
// do_sleep only needs "has flag_wakeup been set since I last cleared it").
func waitWakeFD(readFD int) error {
	var buf [8]byte
	for {
		_, err := unix.Read(readFD, buf[:])
		if err == nil {
			return nil
		}
		if err != unix.EAGAIN && err != unix.EINTR {
			return err
		}
		if err == unix.EAGAIN {
			// Non-blocking drain raced an empty counter; the fd is
			// configured EFD_NONBLOCK only to make drains after a post
			// race-free, blocking reads on an empty eventfd still park
			// the goroutine's OS thread in the kernel via a retry loop
			// guarded by pollWakeFD.
			if err2 := pollWakeFD(readFD); err2 != nil {
				return err2
			}
		}
	}
}

// pollWakeFD blocks (no timeout) until the fd is readable.
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
	var buf [8]byte
	for {
		_, err := unix.Read(readFD, buf[:])
		if err != nil {
			return
		}
	}
}
