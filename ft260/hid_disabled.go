//go:build (!linux && !darwin && !windows) || ios || !cgo
// +build !linux,!darwin,!windows ios !cgo

package ft260

import "github.com/antongulenko/hid"

// Without cgo, the hid package only offers stubs and cannot send feature reports
func openHidDevice(hid.DeviceInfo) (hidDevice, error) {
	return nil, hid.ErrUnsupportedPlatform
}
