package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	appbudget "github.com/erp/budget/internal/application/budget"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRateProvider_Rate(t *testing.T) {
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("parses rate and sends query and auth", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rates", r.URL.Path)
			assert.Equal(t, "EUR", r.URL.Query().Get("from"))
			assert.Equal(t, "USD", r.URL.Query().Get("to"))
			assert.Equal(t, "2026-03-01", r.URL.Query().Get("date"))
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"from":"EUR","to":"USD","date":"2026-03-01","rate":"1.0825"}`))
		}))
		defer srv.Close()

		p := NewHTTPRateProvider(HTTPRateProviderConfig{BaseURL: srv.URL, APIKey: "secret"}, nil)
		rate, err := p.Rate(context.Background(), "EUR", "USD", date)
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.RequireFromString("1.0825")))
	})

	t.Run("same currency skips the network", func(t *testing.T) {
		p := NewHTTPRateProvider(HTTPRateProviderConfig{BaseURL: "http://127.0.0.1:1"}, nil)
		rate, err := p.Rate(context.Background(), "USD", "USD", date)
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	})

	t.Run("404 maps to rate not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		p := NewHTTPRateProvider(HTTPRateProviderConfig{BaseURL: srv.URL}, nil)
		_, err := p.Rate(context.Background(), "EUR", "USD", date)
		assert.ErrorIs(t, err, appbudget.ErrRateNotFound)
	})

	t.Run("server errors are retried then reported", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		p := NewHTTPRateProvider(HTTPRateProviderConfig{BaseURL: srv.URL}, nil)
		_, err := p.Rate(context.Background(), "EUR", "USD", date)
		require.Error(t, err)
		assert.NotErrorIs(t, err, appbudget.ErrRateNotFound)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("non-positive rate is rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"rate":"0"}`))
		}))
		defer srv.Close()

		p := NewHTTPRateProvider(HTTPRateProviderConfig{BaseURL: srv.URL}, nil)
		_, err := p.Rate(context.Background(), "EUR", "USD", date)
		assert.Error(t, err)
	})

	t.Run("limiter honours context cancellation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"rate":"1.1"}`))
		}))
		defer srv.Close()

		p := NewHTTPRateProvider(HTTPRateProviderConfig{BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1}, nil)
		_, err := p.Rate(context.Background(), "EUR", "USD", date)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = p.Rate(ctx, "EUR", "USD", date)
		assert.ErrorContains(t, err, "rate limiter")
	})
}
