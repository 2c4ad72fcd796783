//go:build !linux && !darwin

package cotask

import "sync"

// newWakeFD falls back to a channel-backed semaphore on platforms without
// eventfd or a cheap self-pipe (e.g. Windows). The "fd" here is an opaque
// handle into a package-level registry rather than a real descriptor;
// postWakeFD/waitWakeFD below never touch the OS.
func newWakeFD() (readFD, writeFD int, err error) {
	wakeFDRegistryMu.Lock()
	defer wakeFDRegistryMu.Unlock()
	wakeFDNext++
	id := wakeFDNext
	wakeFDRegistry[id] = make(chan struct{}, 1)
	return id, id, nil
}

func closeWakeFD(readFD, _ int) {
	wakeFDRegistryMu.Lock()
	defer wakeFDRegistryMu.Unlock()
	delete(wakeFDRegistry, readFD)
}

func postWakeFD(writeFD int) error {
	wakeFDRegistryMu.Lock()
	ch := wakeFDRegistry[writeFD]
	wakeFDRegistryMu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case ch <- struct{}{}:
	default:
	}
	return nil
}

func waitWakeFD(readFD int) error {
	wakeFDRegistryMu.Lock()
	ch := wakeFDRegistry[readFD]
	wakeFDRegistryMu.Unlock()
	if ch == nil {
		return nil
	}
	<-ch
	return nil
}

func drainWakeFDNonBlocking(readFD int) {
	wakeFDRegistryMu.Lock()
	ch := wakeFDRegistry[readFD]
	wakeFDRegistryMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case <-ch:
	default:
	}
}

var (
	wakeFDRegistryMu sync.Mutex
	wakeFDRegistry   = map[int]chan struct{}{}
	wakeFDNext       int
)
