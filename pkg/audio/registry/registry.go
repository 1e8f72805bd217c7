// Package registry keeps the list of available capture and playback
// backends. Backends register themselves from their init functions.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/xaionaro-go/earmonitor/pkg/audio/types"
)

type PlayerPCMFactory interface {
	NewPlayerPCM() (types.PlayerPCM, error)
}

type RecorderPCMFactory interface {
	NewRecorderPCM() (types.RecorderPCM, error)
}

type factoryWithPriority[F any] struct {
	Priority int
	Factory  F
}

type factoryRegistry[F any] struct {
	locker    sync.Mutex
	factories map[reflect.Type]factoryWithPriority[F]
}

func (r *factoryRegistry[F]) register(priority int, factory F) {
	t := reflect.ValueOf(factory).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.locker.Lock()
	defer r.locker.Unlock()
	if r.factories == nil {
		r.factories = map[reflect.Type]factoryWithPriority[F]{}
	}
	if _, ok := r.factories[t]; ok {
		panic(fmt.Errorf("there is already registered a factory of type %v", t))
	}
	r.factories[t] = factoryWithPriority[F]{
		Priority: priority,
		Factory:  factory,
	}
}

// list returns the factories, the highest priority first. Factories with
// equal priority are ordered by type name to keep the order stable.
func (r *factoryRegistry[F]) list() []F {
	r.locker.Lock()
	type entry struct {
		name string
		factoryWithPriority[F]
	}
	entries := make([]entry, 0, len(r.factories))
	for t, f := range r.factories {
		entries = append(entries, entry{name: t.String(), factoryWithPriority: f})
	}
	r.locker.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].name < entries[j].name
	})

	result := make([]F, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.Factory)
	}
	return result
}

var (
	playerFactories   factoryRegistry[PlayerPCMFactory]
	recorderFactories factoryRegistry[RecorderPCMFactory]
)

func RegisterPlayerFactory(
	priority int,
	factory PlayerPCMFactory,
) {
	playerFactories.register(priority, factory)
}

func RegisterRecorderFactory(
	priority int,
	factory RecorderPCMFactory,
) {
	recorderFactories.register(priority, factory)
}

func PlayerFactories() []PlayerPCMFactory {
	return playerFactories.list()
}

func RecorderFactories() []RecorderPCMFactory {
	return recorderFactories.list()
}
