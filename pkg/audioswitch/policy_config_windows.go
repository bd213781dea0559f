package audioswitch

import (
	"fmt"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
)

// IPolicyConfig is undocumented and not covered by go-wca, so its vtable is declared here
var (
	clsidPolicyConfigClient = ole.NewGUID("{870AF99C-171D-4F9E-AF0D-E63DF40C2BC9}")
	iidPolicyConfig         = ole.NewGUID("{F8679F50-850A-41CF-9C72-430F290290C8}")
)

// ERole eConsole
const eConsole = 0

type policyConfig struct {
	ole.IUnknown
}

type policyConfigVtbl struct {
	ole.IUnknownVtbl
	GetMixFormat          uintptr
	GetDeviceFormat       uintptr
	ResetDeviceFormat     uintptr
	SetDeviceFormat       uintptr
	GetProcessingPeriod   uintptr
	SetProcessingPeriod   uintptr
	GetShareMode          uintptr
	SetShareMode          uintptr
	GetPropertyValue      uintptr
	SetPropertyValue      uintptr
	SetDefaultEndpoint    uintptr
	SetEndpointVisibility uintptr
}

func newPolicyConfig() (*policyConfig, error) {
	unknown, err := ole.CreateInstance(clsidPolicyConfigClient, iidPolicyConfig)
	if err != nil {
		return nil, fmt.Errorf("create IPolicyConfig instance: %w", err)
	}

	return (*policyConfig)(unsafe.Pointer(unknown)), nil
}

func (v *policyConfig) vtable() *policyConfigVtbl {
	return (*policyConfigVtbl)(unsafe.Pointer(v.RawVTable))
}

func (v *policyConfig) SetVisibility(endpoint EndpointRef, visible bool) error {
	id, err := syscall.UTF16PtrFromString(endpoint.ID)
	if err != nil {
		return fmt.Errorf("encode endpoint id: %w", err)
	}

	var flag uintptr
	if visible {
		flag = 1
	}

	hr, _, _ := syscall.Syscall(
		v.vtable().SetEndpointVisibility,
		3,
		uintptr(unsafe.Pointer(v)),
		uintptr(unsafe.Pointer(id)),
		flag,
	)
	if hr != 0 {
		return ole.NewError(hr)
	}

	return nil
}

func (v *policyConfig) SetDefault(endpoint EndpointRef) error {
	id, err := syscall.UTF16PtrFromString(endpoint.ID)
	if err != nil {
		return fmt.Errorf("encode endpoint id: %w", err)
	}

	hr, _, _ := syscall.Syscall(
		v.vtable().SetDefaultEndpoint,
		3,
		uintptr(unsafe.Pointer(v)),
		uintptr(unsafe.Pointer(id)),
		eConsole,
	)
	if hr != 0 {
		return ole.NewError(hr)
	}

	return nil
}
