package invoice

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"time"
)

const (
	suffixLen = 9
	alphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	// largest multiple of 36 that fits in a byte; higher bytes are rejected
	// so every suffix character is uniformly distributed
	maxUnbiased = 252
)

var numberPattern = regexp.MustCompile(`^INV-\d{13}-[0-9a-z]{9}$`)

// ValidNumber reports whether s has the INV-<epoch ms>-<base36> shape
func ValidNumber(s string) bool {
	return numberPattern.MatchString(s)
}

// NumberGenerator produces invoice numbers of the form INV-<unix ms>-<9 base36 chars>.
// Uniqueness is probabilistic; the repository's unique index is the final check.
type NumberGenerator struct {
	now    func() time.Time
	random io.Reader
}

func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now, random: rand.Reader}
}

// Next returns a fresh invoice number
func (g *NumberGenerator) Next() (string, error) {
	suffix, err := g.suffix()
	if err != nil {
		return "", fmt.Errorf("invoice number suffix: %w", err)
	}
	return fmt.Sprintf("INV-%d-%s", g.now().UnixMilli(), suffix), nil
}

func (g *NumberGenerator) suffix() (string, error) {
	out := make([]byte, 0, suffixLen)
	buf := make([]byte, suffixLen*2)
	for len(out) < suffixLen {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= maxUnbiased {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == suffixLen {
				break
			}
		}
	}
	return string(out), nil
}
