package vault

import (
	"context"
	"time"

	"github.com/x1wallet/walletcore/internal/storage"
)

// Touch records user activity and restarts the idle timer.
func (v *Vault) Touch(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateOpen {
		return nil
	}
	v.resetTimer()
	return v.store.SetLastActivity(ctx, v.now())
}

// AutoLockMinutes returns the idle duration, storage.AutoLockNever when
// disabled.
func (v *Vault) AutoLockMinutes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.autoLockMinutes
}

// SetAutoLock persists the idle duration in minutes and reschedules.
func (v *Vault) SetAutoLock(ctx context.Context, minutes int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.store.SetAutoLockMinutes(ctx, minutes); err != nil {
		return err
	}
	v.autoLockMinutes = minutes
	if v.state == StateOpen {
		v.resetTimer()
	}
	return nil
}

// resetTimer schedules the idle lock. The timer only runs for an open,
// protected vault with a finite duration. Callers hold mu.
func (v *Vault) resetTimer() {
	v.stopIdle()
	if v.verifier == nil || v.autoLockMinutes == storage.AutoLockNever || v.autoLockMinutes <= 0 {
		return
	}
	v.timerGen++
	gen := v.timerGen
	v.stopTimer = v.afterFunc(time.Duration(v.autoLockMinutes)*time.Minute, func() {
		v.onIdle(gen)
	})
}

func (v *Vault) stopIdle() {
	if v.stopTimer != nil {
		v.stopTimer()
		v.stopTimer = nil
	}
	v.timerGen++
}

func (v *Vault) onIdle(gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.timerGen {
		return
	}
	v.stopTimer = nil
	v.lock("idle")
}
