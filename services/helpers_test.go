package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/store"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testStart = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

// tickingClock advances one second per call so generated order numbers never collide.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{now: testStart}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// setupTestStore opens a migrated, seeded in-memory store.
func setupTestStore(t *testing.T) *store.Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := store.New(db, store.Options{OrderNumberPrefix: "LD", Now: newTickingClock().Now})
	require.NoError(t, s.Migrate(context.Background()))
	_, err = s.SeedProductionStages(context.Background(), models.DefaultProductionStages())
	require.NoError(t, err)
	return s
}

func createTestOrder(t *testing.T, s *store.Store, name, phone string) *models.Order {
	order, err := s.CreateOrderRecord(context.Background(), &models.Order{
		CustomerName:  name,
		CustomerPhone: phone,
		DiamondType:   enums.DiamondTypeMemorial,
		DiamondSize:   enums.DiamondSizeOneCarat,
	}, "admin")
	require.NoError(t, err)
	return order
}

func validOrderData() OrderData {
	return OrderData{
		CustomerName:  "张三",
		CustomerPhone: "13800138000",
		DiamondType:   string(enums.DiamondTypeMemorial),
		DiamondSize:   string(enums.DiamondSizeOneCarat),
	}
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
