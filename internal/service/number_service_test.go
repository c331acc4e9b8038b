package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCounterAllocator struct {
	values map[string]int64
	keys   []string
}

func (m *mockCounterAllocator) NextValue(ctx context.Context, tx *sqlx.Tx, organizationID, counterKey string) (int64, error) {
	if m.values == nil {
		m.values = make(map[string]int64)
	}
	m.values[organizationID+"/"+counterKey]++
	m.keys = append(m.keys, counterKey)
	return m.values[organizationID+"/"+counterKey], nil
}

func TestGenerateNumberFormat(t *testing.T) {
	counters := &mockCounterAllocator{}
	svc := NewNumberService(counters, "PFX")

	number, err := svc.Generate(context.Background(), nil, "org-1", "school-1", "Diploma", 2026)
	require.NoError(t, err)
	assert.Equal(t, "PFX-DIPLOMA-2026-0001", number)
	assert.Equal(t, []string{"diploma:school-1:2026"}, counters.keys)

	number, err = svc.Generate(context.Background(), nil, "org-1", "school-1", "Diploma", 2026)
	require.NoError(t, err)
	assert.Equal(t, "PFX-DIPLOMA-2026-0002", number)
}

func TestGenerateNumberScopesCounters(t *testing.T) {
	counters := &mockCounterAllocator{}
	svc := NewNumberService(counters, "PFX")

	first, err := svc.Generate(context.Background(), nil, "org-1", "school-1", "diploma", 2026)
	require.NoError(t, err)
	// A different school, year or type starts its own sequence.
	second, err2 := svc.Generate(context.Background(), nil, "org-1", "school-2", "diploma", 2026)
	require.NoError(t, err2)
	third, err3 := svc.Generate(context.Background(), nil, "org-1", "school-1", "diploma", 2027)
	require.NoError(t, err3)

	assert.Equal(t, "PFX-DIPLOMA-2026-0001", first)
	assert.Equal(t, "PFX-DIPLOMA-2026-0001", second)
	assert.Equal(t, "PFX-DIPLOMA-2027-0001", third)
}

// lockedCounterAllocator serializes NextValue the way the row lock on
// certificate_counters does in Postgres.
type lockedCounterAllocator struct {
	mu     sync.Mutex
	values map[string]int64
}

func (m *lockedCounterAllocator) NextValue(ctx context.Context, tx *sqlx.Tx, organizationID, counterKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]int64)
	}
	m.values[organizationID+"/"+counterKey]++
	return m.values[organizationID+"/"+counterKey], nil
}

func TestGenerateNumberConcurrent(t *testing.T) {
	const workers = 32
	svc := NewNumberService(&lockedCounterAllocator{}, "PFX")

	numbers := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			numbers[i], errs[i] = svc.Generate(context.Background(), nil, "org-1", "school-1", "diploma", 2026)
		}(i)
	}
	wg.Wait()

	// Every worker gets a distinct number and together they cover the
	// contiguous range with no gaps or duplicates.
	seen := make(map[string]bool, workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[numbers[i]], "duplicate number %s", numbers[i])
		seen[numbers[i]] = true
	}
	for seq := 1; seq <= workers; seq++ {
		assert.True(t, seen[fmt.Sprintf("PFX-DIPLOMA-2026-%04d", seq)], "missing sequence %d", seq)
	}
}

func TestVerificationHashUnique(t *testing.T) {
	svc := NewNumberService(&mockCounterAllocator{}, "PFX")

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		hash, err := svc.VerificationHash("stu-a")
		require.NoError(t, err)
		assert.Len(t, hash, 64)
		assert.False(t, seen[hash], "hash repeated")
		seen[hash] = true
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Diploma":           "diploma",
		"High School":       "high-school",
		"  Course / Merit ": "course-merit",
		"UPPER":             "upper",
	}
	for in, want := range cases {
		assert.Equal(t, want, slug(in), in)
	}
}
