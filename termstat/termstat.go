// Copyright 2023 Koverse, Inc.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package termstat provides a stats implementation which periodically logs
// the counters which changed. It is meant for watching a long write from the
// terminal in lieu of a collector feeding an external tool. Only Count and
// Gauge are recorded.
package termstat

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
)

// Logger is what a Collector writes to.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Collector collects stats and logs them every interval.
type Collector struct {
	lock    sync.Mutex
	counts  map[string]int64
	gauges  map[string]float64
	changed bool
	log     Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewCollector returns a Collector which logs to log every interval until
// Close is called.
func NewCollector(log Logger, interval time.Duration) *Collector {
	c := &Collector{
		counts: make(map[string]int64),
		gauges: make(map[string]float64),
		log:    log,
		stop:   make(chan struct{}),
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				c.write()
			case <-c.stop:
				c.write()
				return
			}
		}
	}()
	return c
}

// Count adds value to the named stat at the specified rate.
func (c *Collector) Count(name string, value int64, rate float64, tags ...string) {
	if rate < 1 && rand.Float64() > rate {
		return
	}
	c.lock.Lock()
	c.counts[name] += value
	c.changed = true
	c.lock.Unlock()
}

// Gauge records the latest value of the named stat.
func (c *Collector) Gauge(name string, value float64, rate float64, tags ...string) {
	c.lock.Lock()
	c.gauges[name] = value
	c.changed = true
	c.lock.Unlock()
}

// Histogram does nothing.
func (c *Collector) Histogram(name string, value float64, rate float64, tags ...string) {}

// Set does nothing.
func (c *Collector) Set(name string, value string, rate float64, tags ...string) {}

// Timing does nothing.
func (c *Collector) Timing(name string, value time.Duration, rate float64, tags ...string) {}

// Counts returns a copy of the counters.
func (c *Collector) Counts() map[string]int64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	counts := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		counts[k] = v
	}
	return counts
}

// Close logs the final values and stops the Collector.
func (c *Collector) Close() error {
	c.once.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
	return nil
}

func (c *Collector) write() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.changed {
		return
	}
	parts := make([]string, 0, len(c.counts)+len(c.gauges))
	for name, v := range c.counts {
		parts = append(parts, fmt.Sprintf("%s: %d", name, v))
	}
	for name, v := range c.gauges {
		parts = append(parts, fmt.Sprintf("%s: %g", name, v))
	}
	sort.Strings(parts)
	c.changed = false
	c.log.Printf("stats %s", strings.Join(parts, " "))
}
