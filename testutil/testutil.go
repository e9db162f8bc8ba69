// Package testutil provides a throwaway sqlite database and recording
// collaborators for package tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"multiproduct/database"
	"multiproduct/models"
	"multiproduct/queue"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated, role-seeded sqlite database in a temp dir.
// A single connection serialises transactions the way row locks would.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	log.SetOutput(io.Discard)
	t.Cleanup(func() { log.SetOutput(logWriter) })

	path := filepath.Join(t.TempDir(), "test.db")
	cfg := database.GormConfig()
	cfg.Logger = logger.Discard
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := database.SeedRoles(db); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	return db
}

var logWriter = log.Writer()

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var userSeq int64

// CreateUser inserts a customer with password "password123".
func CreateUser(t testing.TB, db *gorm.DB, email string, active bool) *models.User {
	t.Helper()
	role, err := database.RoleByName(db, models.RoleCustomer)
	if err != nil {
		t.Fatalf("load customer role: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	n := atomic.AddInt64(&userSeq, 1)
	user := &models.User{
		Username: fmt.Sprintf("user%d", n),
		Email:    email,
		Phone:    fmt.Sprintf("+1555%07d", n),
		Password: string(hash),
		IsActive: active,
		RoleID:   &role.ID,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	user.Role = role
	return user
}

// CreateAdmin inserts an active admin user.
func CreateAdmin(t testing.TB, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := CreateUser(t, db, email, true)
	role, err := database.RoleByName(db, models.RoleAdmin)
	if err != nil {
		t.Fatalf("load admin role: %v", err)
	}
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Update("role_id", role.ID).Error; err != nil {
		t.Fatalf("promote admin: %v", err)
	}
	user.RoleID = &role.ID
	user.Role = role
	return user
}

// CreateProduct inserts an active product; trialDays <= 0 means no trial.
func CreateProduct(t testing.TB, db *gorm.DB, name string, trialDays int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:      name,
		BasePrice: decimal.NewFromInt(10),
		IsActive:  true,
	}
	if trialDays > 0 {
		p.TrialDuration = &trialDays
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

// CreatePlan inserts a paid plan under product.
func CreatePlan(t testing.TB, db *gorm.DB, product *models.Product, name string, planType models.PlanType, price string) *models.SubscriptionPlan {
	t.Helper()
	plan := &models.SubscriptionPlan{
		ProductID: product.ID,
		Name:      name,
		PlanType:  planType,
		Price:     decimal.RequireFromString(price),
	}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return plan
}

// Day returns midnight UTC for the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{now: t.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Dispatcher records enqueued jobs instead of running them.
type Dispatcher struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func (d *Dispatcher) Enqueue(_ context.Context, kind queue.Kind, recipient string, payload map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, queue.NewJob(kind, recipient, payload))
}

func (d *Dispatcher) Jobs() []queue.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]queue.Job, len(d.jobs))
	copy(out, d.jobs)
	return out
}

func (d *Dispatcher) ByKind(kind queue.Kind) []queue.Job {
	var out []queue.Job
	for _, j := range d.Jobs() {
		if j.Kind == kind {
			out = append(out, j)
		}
	}
	return out
}

func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = nil
}
