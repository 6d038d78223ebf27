package invoice

import (
	"bytes"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNumberGenerator_Format(t *testing.T) {
	g := &NumberGenerator{now: fixedClock(time.UnixMilli(1718000000123)), random: rand.Reader}

	n, err := g.Next()

	require.NoError(t, err)
	assert.True(t, ValidNumber(n), n)
	assert.Regexp(t, `^INV-1718000000123-[0-9a-z]{9}$`, n)
}

func TestNumberGenerator_UniqueWithinSameMillisecond(t *testing.T) {
	g := &NumberGenerator{now: fixedClock(time.UnixMilli(1718000000123)), random: rand.Reader}

	const workers, perWorker = 8, 2500
	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				n, err := g.Next()
				if err != nil {
					t.Error(err)
					return
				}
				local = append(local, n)
			}
			mu.Lock()
			for _, n := range local {
				seen[n] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestNumberGenerator_RejectsBiasedBytes(t *testing.T) {
	// bytes >= 252 are skipped; 0..8 map to '0'..'8'
	random := bytes.NewReader(append(
		[]byte{255, 0, 254, 1, 253, 2, 252, 3, 4, 5, 6, 7, 8, 9, 9, 9, 9, 9},
		make([]byte, 18)...,
	))
	g := &NumberGenerator{now: fixedClock(time.UnixMilli(1700000000000)), random: random}

	n, err := g.Next()

	require.NoError(t, err)
	assert.Equal(t, "INV-1700000000000-012345678", n)
}

func TestNumberGenerator_RandomSourceFailure(t *testing.T) {
	g := &NumberGenerator{now: time.Now, random: bytes.NewReader(nil)}

	_, err := g.Next()

	assert.Error(t, err)
}

func TestValidNumber(t *testing.T) {
	assert.True(t, ValidNumber("INV-1718000000123-abc123xyz"))
	assert.False(t, ValidNumber("INV-171800000012-abc123xyz"))
	assert.False(t, ValidNumber("INV-1718000000123-ABC123XYZ"))
	assert.False(t, ValidNumber("INV-1718000000123-abc123xy"))
	assert.False(t, ValidNumber("1718000000123-abc123xyz"))
}
