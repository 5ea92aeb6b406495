// Package sink holds the pull-style audio output backends.
//
// A backend pulls packed float32 little-endian samples from an io.Reader on its
// own audio thread. Backends register a factory from their init.
package sink

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
	"time"
)

type Format struct {
	SampleRate int
	Channels   int
	BufferSize time.Duration
}

// BytesPerFrame is the size of one sample for every channel.
func (f Format) BytesPerFrame() int {
	return f.Channels * 4
}

type Sink interface {
	// Play starts pulling from r. It returns once playback is running.
	Play(r io.Reader) error
	Close() error
}

type Factory interface {
	Name() string
	NewSink(format Format) (Sink, error)
}

type factoryWithPriority struct {
	Priority int
	Factory
}

var (
	registryLocker  sync.Mutex
	factoryRegistry = map[reflect.Type]factoryWithPriority{}
)

func RegisterFactory(priority int, factory Factory) {
	registryLocker.Lock()
	defer registryLocker.Unlock()

	t := reflect.ValueOf(factory).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if _, ok := factoryRegistry[t]; ok {
		panic(fmt.Errorf("there is already registered a sink factory of type %v", t))
	}
	factoryRegistry[t] = factoryWithPriority{
		Priority: priority,
		Factory:  factory,
	}
}

// Factories returns the registered factories, lowest priority value first.
func Factories() []Factory {
	registryLocker.Lock()
	var factoriesWithPriorities []factoryWithPriority
	for _, factory := range factoryRegistry {
		factoriesWithPriorities = append(factoriesWithPriorities, factory)
	}
	registryLocker.Unlock()

	sort.Slice(factoriesWithPriorities, func(i, j int) bool {
		return factoriesWithPriorities[i].Priority < factoriesWithPriorities[j].Priority
	})

	var factories []Factory
	for _, factory := range factoriesWithPriorities {
		factories = append(factories, factory.Factory)
	}
	return factories
}

// Open creates a sink from the factory called name, or from the first factory
// that succeeds when name is "auto".
func Open(name string, format Format) (Sink, error) {
	var lastErr error
	for _, factory := range Factories() {
		if name != "auto" && factory.Name() != name {
			continue
		}

		s, err := factory.NewSink(format)
		if err == nil {
			return s, nil
		}
		lastErr = fmt.Errorf("sink %s: %w", factory.Name(), err)
		if name != "auto" {
			return nil, lastErr
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("sink %q is not registered", name)
}
