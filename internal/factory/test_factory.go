package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tablebank/internal/dependencies/mocks"
	"github.com/mcoot/tablebank/internal/storage"
	"github.com/mcoot/tablebank/internal/storage/memory"
	"github.com/mcoot/tablebank/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	MockIDs    *mocks.MockIDGenerator
}

// NewTestApp creates an App on in-memory storage with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithStorage(memory.New())
}

// NewTestAppWithStorage creates an App with mocked dependencies on the given storage
func NewTestAppWithStorage(store storage.Storage) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockClock.Step = time.Second
	mockRandom := mocks.NewMockRandom()
	mockIDs := mocks.NewMockIDGenerator("id")

	app := newWithDependencies(store, mockClock, mockRandom, mockIDs, Options{TokenCost: bcrypt.MinCost}, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		MockIDs:    mockIDs,
	}
}
