package service_test

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestFormatSequence(t *testing.T) {
	tests := []struct {
		value    int
		expected string
	}{
		{1, "00001"},
		{42, "00042"},
		{99999, "99999"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, service.FormatSequence(tc.value))
	}
}

func TestNumberSequenceService_Next(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	company := uuid.New()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	next := func(t *testing.T, companyID uuid.UUID, d domain.SequenceDomain, at time.Time) string {
		t.Helper()
		var number string
		err := f.db.Transaction(func(tx *gorm.DB) error {
			var err error
			number, err = f.numbers.Next(ctx, tx, companyID, d, at)
			return err
		})
		require.NoError(t, err)
		return number
	}

	t.Run("strictly increasing and unique", func(t *testing.T) {
		seen := map[string]bool{}
		prev := ""
		for i := 0; i < 5; i++ {
			n := next(t, company, domain.SequenceBill, at)
			assert.Len(t, n, 5)
			assert.False(t, seen[n], "duplicate %s", n)
			assert.Greater(t, n, prev)
			seen[n] = true
			prev = n
		}
		assert.Equal(t, "00005", prev)
	})

	t.Run("domains are independent", func(t *testing.T) {
		assert.Equal(t, "00001", next(t, company, domain.SequenceContract, at))
		assert.Equal(t, "00006", next(t, company, domain.SequenceBill, at))
	})

	t.Run("companies are independent", func(t *testing.T) {
		assert.Equal(t, "00001", next(t, uuid.New(), domain.SequenceBill, at))
	})

	t.Run("new year restarts", func(t *testing.T) {
		nextYear := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)
		assert.Equal(t, "00001", next(t, company, domain.SequenceBill, nextYear))
		assert.Equal(t, "00007", next(t, company, domain.SequenceBill, at))
	})

	t.Run("rolled back transaction does not consume a number", func(t *testing.T) {
		_ = f.db.Transaction(func(tx *gorm.DB) error {
			_, err := f.numbers.Next(ctx, tx, company, domain.SequenceBill, at)
			require.NoError(t, err)
			return assert.AnError
		})
		assert.Equal(t, "00008", next(t, company, domain.SequenceBill, at))
	})

	t.Run("unknown domain", func(t *testing.T) {
		err := f.db.Transaction(func(tx *gorm.DB) error {
			_, err := f.numbers.Next(ctx, tx, company, domain.SequenceDomain("receipt"), at)
			return err
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})
}

func TestNumberSequenceService_Admin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	company := uuid.New()

	current, err := f.numbers.GetCurrentSequence(ctx, company, domain.SequenceBuyerOrder, 2025)
	require.NoError(t, err)
	assert.Zero(t, current)

	require.NoError(t, f.numbers.InitializeSequence(ctx, company, domain.SequenceBuyerOrder, 2025, 120))
	current, err = f.numbers.GetCurrentSequence(ctx, company, domain.SequenceBuyerOrder, 2025)
	require.NoError(t, err)
	assert.Equal(t, 120, current)

	var number string
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		number, err = f.numbers.Next(ctx, tx, company, domain.SequenceBuyerOrder, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
		return err
	}))
	assert.Equal(t, "00121", number)

	assert.ErrorIs(t, f.numbers.InitializeSequence(ctx, company, domain.SequenceBuyerOrder, 2025, 100000), service.ErrInvalidInput)
	assert.ErrorIs(t, f.numbers.InitializeSequence(ctx, company, domain.SequenceDomain("x"), 2025, 1), service.ErrInvalidInput)

	seqs, err := f.numbers.ListSequences(ctx, &company)
	require.NoError(t, err)
	require.Len(t, seqs, 1)
	assert.Equal(t, 121, seqs[0].LastSequence)
}

func TestNumberSequenceService_Reserve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	company := uuid.New()
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	inTx := func(fn func(tx *gorm.DB) error) {
		t.Helper()
		require.NoError(t, f.db.Transaction(fn))
	}
	next := func() string {
		var number string
		inTx(func(tx *gorm.DB) error {
			var err error
			number, err = f.numbers.Next(ctx, tx, company, domain.SequenceBill, at)
			return err
		})
		return number
	}
	reserve := func(number string) {
		inTx(func(tx *gorm.DB) error {
			return f.numbers.Reserve(ctx, tx, company, domain.SequenceBill, number, at)
		})
	}

	assert.Equal(t, "00001", next())

	reserve("INV-00010")
	assert.Equal(t, "00011", next())

	// lower and digit-less numbers leave the counter alone
	reserve("00003")
	reserve("draft")
	assert.Equal(t, "00012", next())

	current, err := f.numbers.GetCurrentSequence(ctx, company, domain.SequenceBill, 2025)
	require.NoError(t, err)
	assert.Equal(t, 12, current)
}

// Row locks are only enforced by PostgreSQL
func TestNumberSequenceService_ConcurrentNext(t *testing.T) {
	if os.Getenv("TEST_POSTGRES_DSN") == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	f := newFixture(t)
	company := uuid.New()
	at := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	const workers = 16
	var wg sync.WaitGroup
	numbers := make(chan string, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.db.Transaction(func(tx *gorm.DB) error {
				number, err := f.numbers.Next(ctx, tx, company, domain.SequenceSellerOrder, at)
				if err != nil {
					return err
				}
				numbers <- number
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got := make([]string, 0, workers)
	for n := range numbers {
		got = append(got, n)
	}
	sort.Strings(got)

	expected := make([]string, workers)
	for i := range expected {
		expected[i] = fmt.Sprintf("%05d", i+1)
	}
	assert.Equal(t, expected, got)
}
