// SPDX-License-Identifier: GPL-2.0-only

package vest

import (
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// triggerRecord is one entry in a MockController's ring buffer.
type triggerRecord struct {
	Cell  int
	Speed int
}

// stopAllCell is the cell of the (stopAllCell, 0) entry appended to a mock's
// ring whenever StopAll runs, mirroring the Python mock's `(-1, 0)` marker.
const stopAllCell = -1

// MockController is API-identical to Controller but never touches hardware:
// it logs instead of driving a real session. connected is permanently true,
// matching the Python MockVestController's always-on contract.
type MockController struct {
	mu       sync.Mutex
	serial   string
	logger   log.Logger
	recent   []triggerRecord
	lastErr  string
}

const mockRingCap = 100

func NewMockController(serial string, logger log.Logger) *MockController {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &MockController{serial: serial, logger: logger}
}

func (m *MockController) Connect() Status { return m.ConnectToDevice(nil) }

func (m *MockController) ConnectToDevice(_ *Selector) Status {
	return m.Status()
}

func (m *MockController) Disconnect() {
	// Safe no-op: a mock device is always "connected" for the registry's purposes.
}

func (m *MockController) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	vid, pid := uint16(0x1234), uint16(0x5678)
	return Status{
		Connected: true,
		VendorID:  &vid,
		ProductID: &pid,
		Serial:    m.serial,
		LastError: m.lastErr,
	}
}

func (m *MockController) Trigger(cell, speed int) bool {
	cell = clamp(cell, 0, 7)
	speed = clamp(speed, 0, 10)

	m.mu.Lock()
	m.record(triggerRecord{Cell: cell, Speed: speed})
	m.mu.Unlock()

	_ = level.Debug(m.logger).Log("msg", "mock trigger", "serial", m.serial, "cell", cell, "speed", speed)
	return true
}

func (m *MockController) StopAll() {
	m.mu.Lock()
	m.record(triggerRecord{Cell: stopAllCell, Speed: 0})
	m.mu.Unlock()
	_ = m.logger.Log("msg", "mock stop_all", "serial", m.serial)
}

// record must be called with mu held.
func (m *MockController) record(r triggerRecord) {
	m.recent = append(m.recent, r)
	if len(m.recent) > mockRingCap {
		m.recent = m.recent[len(m.recent)-mockRingCap:]
	}
}

// RecentTriggers returns a copy of the ring buffer, most useful from tests.
func (m *MockController) RecentTriggers() []triggerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]triggerRecord, len(m.recent))
	copy(out, m.recent)
	return out
}

func (m *MockController) String() string {
	return fmt.Sprintf("mock(%s)", m.serial)
}

var _ Controller = (*MockController)(nil)
var _ Controller = (*RealController)(nil)
