package upgrade

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
)

// Lock excludes concurrent upgrade runs against the same root.
type Lock struct {
	fl   *flock.Flock
	path string
}

// LockPath returns the lock file for root inside lockDir. The name is a hash
// of the absolute root so worktrees and the main tree lock independently.
func LockPath(lockDir, root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(lockDir, hex.EncodeToString(sum[:])[:16]+".lock")
}

// AcquireLock takes the exclusive lock for root, retrying with exponential
// backoff until timeout. A held lock after timeout returns ErrLocked; a
// non-positive timeout tries exactly once.
func AcquireLock(ctx context.Context, lockDir, root string, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(lockDir, 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := LockPath(lockDir, root)
	fl := flock.New(path)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = timeout
	var policy backoff.BackOff = bo
	if timeout <= 0 {
		policy = &backoff.StopBackOff{}
	}

	err := backoff.Retry(func() error {
		locked, err := fl.TryLock()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("lock %s: %w", path, err))
		}
		if !locked {
			return ErrLocked
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		if err == ErrLocked {
			return nil, &Error{Kind: ErrLocked, Message: fmt.Sprintf("for %s (lock file %s)", root, path)}
		}
		return nil, err
	}
	return &Lock{fl: fl, path: path}, nil
}

// Path is the lock file location.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. The lock file itself stays for reuse.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
