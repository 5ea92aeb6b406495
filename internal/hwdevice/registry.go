package hwdevice

import (
	"fmt"
	"sort"
	"sync"

	"github.com/asticode/go-astiav"
)

var (
	registryLocker sync.RWMutex
	registry       = map[astiav.HardwareDeviceType]Device{}
)

// Register adds d to the registry. Registering the same hardware type twice panics.
func Register(d Device) {
	registryLocker.Lock()
	defer registryLocker.Unlock()

	t := d.Type()
	if _, ok := registry[t]; ok {
		panic(fmt.Errorf("there is already a device registered for hardware type %v", t))
	}
	registry[t] = d
}

func Lookup(t astiav.HardwareDeviceType) (Device, bool) {
	registryLocker.RLock()
	defer registryLocker.RUnlock()

	d, ok := registry[t]
	return d, ok
}

// FindByName resolves a hardware device type name such as "vaapi" to its adapter.
func FindByName(name string) (Device, error) {
	t := astiav.FindHardwareDeviceTypeByName(name)
	if t == astiav.HardwareDeviceTypeNone {
		return nil, fmt.Errorf("find device %q: %w", name, ErrUnsupportedDevice)
	}

	d, ok := Lookup(t)
	if !ok {
		return nil, fmt.Errorf("find device %q: %w", name, ErrUnsupportedDevice)
	}
	return d, nil
}

func Types() []astiav.HardwareDeviceType {
	registryLocker.RLock()
	defer registryLocker.RUnlock()

	types := make([]astiav.HardwareDeviceType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		return types[i] < types[j]
	})
	return types
}
