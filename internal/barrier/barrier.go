// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package barrier provides a reusable rendezvous point for a fixed group of
// goroutines.  Every arrival in a generation blocks until the last party
// arrives; the last party releases the others and starts the next generation.
package barrier

import (
	"errors"
	"sync"
)

// ErrZeroParties is returned when a barrier is created without parties.
var ErrZeroParties = errors.New("barrier count cannot be zero")

// Barrier represents a cyclic N-party barrier with a generation counter.
// The zero value is not usable; create barriers with New.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	threshold  uint
	count      uint
	generation uint64
}

// New creates a new barrier for the given number of parties.
func New(parties uint) (*Barrier, error) {
	if parties == 0 {
		return nil, ErrZeroParties
	}
	b := &Barrier{
		threshold: parties,
		count:     parties,
	}
	b.cond = sync.NewCond(&b.mu)
	return b, nil
}

// Wait blocks until all parties have called Wait in the current generation.
// It returns true for exactly one caller per generation, the one whose arrival
// released the others.
func (b *Barrier) Wait() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	if b.count--; b.count == 0 {
		b.release()
		return true
	}

	// a waiter may only leave once its own generation has been released
	for gen == b.generation {
		b.cond.Wait()
	}
	return false
}

// Detach permanently removes a party that has not arrived in the current
// generation.  If every remaining party has already arrived, the generation
// is released.  It reports whether this call released the generation.
func (b *Barrier) Detach() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.threshold == 1 {
		panic("detach from barrier with a single party")
	}

	b.threshold--
	if b.count--; b.count == 0 {
		b.release()
		return true
	}
	return false
}

// Parties returns the number of parties the barrier currently waits for.
func (b *Barrier) Parties() uint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.threshold
}

// Generation returns the number of generations released so far.
func (b *Barrier) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

// release must be called with mu held.
func (b *Barrier) release() {
	b.generation++
	b.count = b.threshold
	b.cond.Broadcast()
}
