// Package lock guards a tracking workbook against concurrent runs. A run
// holds an advisory lock on <workbook>.lock from before it reads the previous
// snapshot until the reconciled workbook has been written. The operating
// system drops the lock when the holding process exits, so a crashed run
// never blocks the next one.
package lock

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrHeld is returned when another run holds the lock.
var ErrHeld = eris.New("lock: held by another run")

// Lock is an acquired lock.
type Lock struct {
	fl *flock.Flock
}

// Path returns the lock file location.
func Path(target string) string {
	return target + ".lock"
}

// Acquire locks target. It fails with ErrHeld, without waiting, when another
// process (or another Acquire in this one) holds the lock. A lock file left
// behind by a dead run is simply taken over.
func Acquire(target string) (*Lock, error) {
	path := Path(target)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, eris.Wrapf(err, "lock: %s", path)
	}
	if !ok {
		return nil, eris.Wrapf(ErrHeld, "lock: %s (%s)", path, owner(path))
	}

	stamp := fmt.Sprintf("%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(stamp), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, eris.Wrapf(err, "lock: write %s", path)
	}
	zap.L().Debug("lock: acquired", zap.String("path", path))
	return &Lock{fl: fl}, nil
}

// Release unlocks. The lock file stays on disk, emptied, because removing it
// could race a run that already opened it. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	fl := l.fl
	l.fl = nil
	path := fl.Path()
	if err := os.Truncate(path, 0); err != nil {
		zap.L().Debug("lock: truncate", zap.String("path", path), zap.Error(err))
	}
	if err := fl.Unlock(); err != nil {
		return eris.Wrapf(err, "lock: unlock %s", path)
	}
	zap.L().Debug("lock: released", zap.String("path", path))
	return nil
}

// owner describes the holder recorded in an existing lock file.
func owner(path string) string {
	b, err := os.ReadFile(path)
	if err != nil || len(b) == 0 {
		return "owner unknown"
	}
	var pid int
	var since string
	if _, err := fmt.Sscanf(string(b), "%d %s", &pid, &since); err != nil {
		return "owner unknown"
	}
	return "pid " + strconv.Itoa(pid) + " since " + since
}
