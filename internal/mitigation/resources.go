// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mitigation

import "sync"

// Resource keys serialize mutations of the same host state.
const (
	resFilter  = "filter"
	resFilter6 = "filter6"
	resNAT     = "nat"
	resNeigh   = "neigh"
	resKernel  = "kernel"
)

func resTC(iface string) string     { return "tc:" + iface }
func resSysctl(key string) string   { return "sysctl:" + key }
func resFile(path string) string    { return "file:" + path }
func resService(name string) string { return "service:" + name }
func resAP(iface string) string     { return "ap:" + iface }
func resWebapp(dir string) string   { return "webapp:" + dir }

// keyedMutex hands out one mutex per resource key. Unused keys are dropped.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
