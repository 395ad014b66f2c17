package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finhouse/internal/config"
	"finhouse/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		want    BackendType
		wantErr string
	}{
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: "app config is nil",
		},
		{
			name:    "unknown backend",
			cfg:     &config.Config{DataBackend: "sheets", BillingTimezone: "UTC"},
			wantErr: "invalid backend type in config: sheets",
		},
		{
			name:    "bad timezone",
			cfg:     &config.Config{DataBackend: "memory", BillingTimezone: "Nowhere/Land"},
			wantErr: "load billing timezone",
		},
		{
			name: "postgres",
			cfg:  &config.Config{DataBackend: "postgres", PostgresDSN: "postgres://localhost/db", BillingTimezone: "Europe/Rome"},
			want: PostgresBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("FromAppConfig() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromAppConfig() error = %v", err)
			}
			if got.Type != tt.want || got.Location == nil {
				t.Errorf("FromAppConfig() = %+v", got)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without dsn", Config{Type: PostgresBackend}, true},
		{"invalid type", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenMemoryEnforcesBillUniqueness(t *testing.T) {
	ctx := context.Background()
	res, err := Open(ctx, Config{Type: MemoryBackend, Location: time.UTC}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer res.Cleanup()

	p := core.CalculateBillingPeriod(10, 20, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	bill := core.Bill{CreditCardID: "c1", UserID: "u1", PeriodStart: p.Start, ClosingDate: p.End, DueDate: p.Due, Status: core.BillOpen}
	if _, err := res.Repository.CreateBill(ctx, bill); err != nil {
		t.Fatalf("CreateBill() error = %v", err)
	}
	if _, err := res.Repository.CreateBill(ctx, bill); err == nil {
		t.Fatal("duplicate bill accepted")
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "finhouse.db")
	res, err := Open(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer res.Cleanup()

	id, err := res.Repository.CreateAccount(ctx, core.Account{OwnerID: "u1", Name: "Main", Type: core.Checking, Active: true})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if _, err := res.Repository.GetAccount(ctx, id); err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
}
