// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// ACTIVITY TRACKER
// =============================================================================

// Outcome classifies how an operation ended.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeFailed    Outcome = "failed"
	OutcomeDiscarded Outcome = "discarded"
)

// maxSlowest bounds the per-session list of slowest operations.
const maxSlowest = 10

var sessionIDCounter uint64

// ActivityTracker records operation outcomes for the running session.
// It is safe for concurrent use.
type ActivityTracker struct {
	mu      sync.RWMutex
	current *ActivitySession
	storage *ActivityStorage
}

// ActivitySession aggregates outcomes for one client run.
type ActivitySession struct {
	ID        string             `json:"id"`
	StartTime time.Time          `json:"start_time"`
	EndTime   time.Time          `json:"end_time,omitempty"`
	Counts    map[string]OpCount `json:"counts"`
	Slowest   []OpRecord         `json:"slowest"`
}

// OpCount tallies outcomes for a single operation name.
type OpCount struct {
	OK        int `json:"ok"`
	Failed    int `json:"failed"`
	Discarded int `json:"discarded"`
}

// Total returns the number of recorded outcomes.
func (c OpCount) Total() int {
	return c.OK + c.Failed + c.Discarded
}

// OpRecord is one timed operation.
type OpRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Op        string        `json:"op"`
	Outcome   Outcome       `json:"outcome"`
	Duration  time.Duration `json:"duration"`
}

// NewActivityTracker creates a tracker. A nil storage keeps activity in memory only.
func NewActivityTracker(storage *ActivityStorage) *ActivityTracker {
	return &ActivityTracker{
		current: newActivitySession(),
		storage: storage,
	}
}

func newActivitySession() *ActivitySession {
	return &ActivitySession{
		ID:        generateSessionID(),
		StartTime: time.Now(),
		Counts:    make(map[string]OpCount),
		Slowest:   make([]OpRecord, 0, maxSlowest),
	}
}

// =============================================================================
// RECORDING
// =============================================================================

// Record adds one operation outcome to the current session.
func (at *ActivityTracker) Record(op string, outcome Outcome, d time.Duration) {
	at.mu.Lock()
	defer at.mu.Unlock()

	count := at.current.Counts[op]
	switch outcome {
	case OutcomeOK:
		count.OK++
	case OutcomeFailed:
		count.Failed++
	default:
		count.Discarded++
	}
	at.current.Counts[op] = count

	at.current.Slowest = append(at.current.Slowest, OpRecord{
		Timestamp: time.Now(),
		Op:        op,
		Outcome:   outcome,
		Duration:  d,
	})
	sort.SliceStable(at.current.Slowest, func(i, j int) bool {
		return at.current.Slowest[i].Duration > at.current.Slowest[j].Duration
	})
	if len(at.current.Slowest) > maxSlowest {
		at.current.Slowest = at.current.Slowest[:maxSlowest]
	}
}

// =============================================================================
// RETRIEVAL
// =============================================================================

// Current returns a copy of the current session.
func (at *ActivityTracker) Current() *ActivitySession {
	at.mu.RLock()
	defer at.mu.RUnlock()
	return at.current.clone()
}

// History returns persisted sessions that started within [from, to].
func (at *ActivityTracker) History(from, to time.Time) []*ActivitySession {
	if at.storage == nil {
		return nil
	}
	ids, err := at.storage.List(from, to)
	if err != nil {
		return nil
	}
	sessions := make([]*ActivitySession, 0, len(ids))
	for _, id := range ids {
		s, err := at.storage.Load(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions
}

// =============================================================================
// SESSION MANAGEMENT
// =============================================================================

// EndSession stamps the current session, persists it and starts a new one.
func (at *ActivityTracker) EndSession() error {
	at.mu.Lock()
	defer at.mu.Unlock()

	at.current.EndTime = time.Now()
	var err error
	if at.storage != nil && len(at.current.Counts) > 0 {
		err = at.storage.Save(at.current)
	}
	at.current = newActivitySession()
	return err
}

func (s *ActivitySession) clone() *ActivitySession {
	out := &ActivitySession{
		ID:        s.ID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Counts:    make(map[string]OpCount, len(s.Counts)),
		Slowest:   make([]OpRecord, len(s.Slowest)),
	}
	for k, v := range s.Counts {
		out.Counts[k] = v
	}
	copy(out.Slowest, s.Slowest)
	return out
}

// Ops returns the recorded operation names in sorted order.
func (s *ActivitySession) Ops() []string {
	ops := make([]string, 0, len(s.Counts))
	for op := range s.Counts {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// generateSessionID returns a timestamp-prefixed id that sorts chronologically.
func generateSessionID() string {
	counter := atomic.AddUint64(&sessionIDCounter, 1)
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102-150405"), counter)
}
