package plaid

import (
	"context"
	"testing"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/follow-the-money/internal/model"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		ClientID:    "client-id",
		Secret:      "secret",
		Environment: "sandbox",
		AccessToken: "access-token",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid sandbox config",
			mutate: func(*Config) {},
		},
		{
			name:   "valid production config",
			mutate: func(c *Config) { c.Environment = "production" },
		},
		{
			name:    "missing client ID",
			mutate:  func(c *Config) { c.ClientID = "" },
			wantErr: "client ID is required",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Secret = "" },
			wantErr: "secret is required",
		},
		{
			name:    "missing access token",
			mutate:  func(c *Config) { c.AccessToken = "" },
			wantErr: "access token is required",
		},
		{
			name:    "missing environment",
			mutate:  func(c *Config) { c.Environment = "" },
			wantErr: "environment is required",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "development" },
			wantErr: "must be sandbox or production",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMapTransaction(t *testing.T) {
	client, err := NewClient(Config{
		ClientID:    "client-id",
		Secret:      "secret",
		Environment: "sandbox",
		AccessToken: "access-token",
	})
	require.NoError(t, err)

	pt := plaid.Transaction{}
	pt.SetDate("2025-06-01")
	pt.SetName("ICA SUPERMARKET STOCKHOLM")
	pt.SetMerchantName("ICA Supermarket")
	pt.SetAmount(45.67)

	record := client.mapTransaction(pt)

	assert.Equal(t, "2025-06-01", record.Date.Format(model.DateFormat))
	assert.Equal(t, "ICA Supermarket", record.Description)
	assert.InDelta(t, -45.67, record.Amount, 0.001, "outflow should be stored as negative spend")
}

func TestMapTransactionFallsBackToName(t *testing.T) {
	client, err := NewClient(Config{
		ClientID:    "client-id",
		Secret:      "secret",
		Environment: "sandbox",
		AccessToken: "access-token",
	})
	require.NoError(t, err)

	pt := plaid.Transaction{}
	pt.SetDate("2025-06-02")
	pt.SetName("DIRECT DEPOSIT PAYROLL")
	pt.SetAmount(-1200.00)

	record := client.mapTransaction(pt)

	assert.Equal(t, "DIRECT DEPOSIT PAYROLL", record.Description)
	assert.InDelta(t, 1200.00, record.Amount, 0.001, "inflow should be stored as positive")
}

func TestGetRecordsRejectsInvertedRange(t *testing.T) {
	client, err := NewClient(Config{
		ClientID:    "client-id",
		Secret:      "secret",
		Environment: "sandbox",
		AccessToken: "access-token",
	})
	require.NoError(t, err)

	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err = client.GetRecords(context.Background(), start, end)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start date must be before end date")
}
