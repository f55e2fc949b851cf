package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerators(t *testing.T) {
	tests := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"user", NewUserID, UserPrefix},
		{"transaction", NewTransactionID, TransactionPrefix},
		{"checking", func() string { return NewAccountNumber(CheckingPrefix) }, CheckingPrefix},
		{"savings", func() string { return NewAccountNumber(SavingsPrefix) }, SavingsPrefix},
	}
	for _, tt := range tests {
		got := tt.gen()
		assert.True(t, strings.HasPrefix(got, tt.prefix+"-"), "%s: %q", tt.name, got)
		assert.True(t, HasPrefix(got, tt.prefix), "%s: %q", tt.name, got)
	}
}

func TestFormatParse(t *testing.T) {
	u := uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	s := Format(CheckingPrefix, u)
	assert.Equal(t, "CHK-1b4e28ba-2fa1-11d2-883f-0016d3cca427", s)

	prefix, got, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, CheckingPrefix, prefix)
	assert.Equal(t, u, got)
}

func TestParse_Errors(t *testing.T) {
	badInputs := []string{
		"",
		"CHK",
		"-1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		"CHK-not-a-uuid",
		"CHK1700000000000",
	}
	for _, input := range badInputs {
		_, _, err := Parse(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

func TestHasPrefix_WrongPrefix(t *testing.T) {
	assert.False(t, HasPrefix(NewAccountNumber(SavingsPrefix), CheckingPrefix))
}

func TestConcurrentGenerationIsUnique(t *testing.T) {
	const n = 1000
	var mu sync.Mutex
	seen := make(map[string]bool, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := NewTransactionID()
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
