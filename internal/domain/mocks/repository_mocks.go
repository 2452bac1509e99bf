package mocks

import (
	"context"
	"sync"

	"github.com/memorymachines/log-pipeline/internal/domain"
)

// MockPublisher is a mock implementation of domain.EnvelopePublisher.
type MockPublisher struct {
	mu         sync.Mutex
	Published  []domain.LogEnvelope
	PublishErr error
}

func (m *MockPublisher) Publish(ctx context.Context, envelope domain.LogEnvelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, envelope)
	return nil
}

// MockDeliveryQueue is a mock implementation of domain.DeliveryQueue.
type MockDeliveryQueue struct {
	mu              sync.Mutex
	ReadResult      []domain.Delivery
	ReadErr         error
	AckedMessageIDs []string
	AckErr          error
	DeadLettered    []domain.Delivery
	DeadLetterErr   error
}

func (m *MockDeliveryQueue) ReadDeliveries(ctx context.Context, count int) ([]domain.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	deliveries := m.ReadResult
	m.ReadResult = nil
	return deliveries, nil
}

func (m *MockDeliveryQueue) Acknowledge(ctx context.Context, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

func (m *MockDeliveryQueue) DeadLetter(ctx context.Context, deliveries ...domain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeadLetterErr != nil {
		return m.DeadLetterErr
	}
	m.DeadLettered = append(m.DeadLettered, deliveries...)
	return nil
}

// MockProcessedLogStore is an in-memory mock of domain.ProcessedLogStore.
// Keys are (tenant_id, log_id); PutCalls counts writes so tests can assert
// that duplicate deliveries perform none.
type MockProcessedLogStore struct {
	mu       sync.Mutex
	Records  map[[2]string]domain.ProcessedLog
	GetErr   error
	PutErr   error
	PutCalls int
}

func NewMockProcessedLogStore() *MockProcessedLogStore {
	return &MockProcessedLogStore{Records: make(map[[2]string]domain.ProcessedLog)}
}

func (m *MockProcessedLogStore) Get(ctx context.Context, tenantID, logID string) (domain.ProcessedLog, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return domain.ProcessedLog{}, false, m.GetErr
	}
	record, ok := m.Records[[2]string{tenantID, logID}]
	return record, ok, nil
}

func (m *MockProcessedLogStore) Put(ctx context.Context, record domain.ProcessedLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	m.PutCalls++
	m.Records[[2]string{record.TenantID, record.LogID}] = record
	return nil
}

// MockDeadLetterArchive is a mock implementation of domain.DeadLetterArchive.
type MockDeadLetterArchive struct {
	mu       sync.Mutex
	Archived []domain.Delivery
	WriteErr error
}

func (m *MockDeadLetterArchive) Write(ctx context.Context, delivery domain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Archived = append(m.Archived, delivery)
	return nil
}

func (m *MockDeadLetterArchive) Scan(ctx context.Context, handler func(delivery domain.Delivery) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.Archived {
		if err := handler(d); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockDeadLetterArchive) Truncate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Archived = nil
	return nil
}
