package notify

import (
	"context"
	"sync"
)

// Registrar stores a device token against the signed-in account.
type Registrar interface {
	RegisterDeviceToken(ctx context.Context, token string) error
}

// DeviceState is the current push registration token shared by all
// sessions of a user. The backend is only told when the token changes.
type DeviceState struct {
	reg Registrar

	mu         sync.Mutex
	token      string
	registered string
}

func NewDeviceState(reg Registrar) *DeviceState {
	return &DeviceState{reg: reg}
}

func (d *DeviceState) Token() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.token
}

// Set records token and registers it unless it is already registered.
func (d *DeviceState) Set(ctx context.Context, token string) error {
	d.mu.Lock()
	d.token = token
	if token == "" || token == d.registered {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	if err := d.reg.RegisterDeviceToken(ctx, token); err != nil {
		return err
	}

	d.mu.Lock()
	if d.token == token {
		d.registered = token
	}
	d.mu.Unlock()
	return nil
}

// Reset forgets the registration, e.g. after sign-out, so the next Set
// registers again for whoever signs in.
func (d *DeviceState) Reset() {
	d.mu.Lock()
	d.token = ""
	d.registered = ""
	d.mu.Unlock()
}
