// Package entropy supplies the uniform [0, 1) draws consumed once per tick.
// Sources: seeded PRNG (reproducible), crypto/rand, scripted sequences for
// tests, and an optional random.org pool that falls back to crypto/rand.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	mrand "math/rand"
	"net/http"
	"sync"
	"time"
)

// Source yields one uniform draw in [0, 1) per call.
type Source interface {
	Float() float64
}

// New picks a source: random.org when apiKey is set, a seeded PRNG when
// seed is non-zero, crypto/rand otherwise.
func New(seed int64, apiKey string) Source {
	if c := NewClient(apiKey); c != nil {
		return c
	}
	if seed != 0 {
		return NewSeeded(seed)
	}
	return Crypto{}
}

// Seeded is a deterministic PRNG source.
type Seeded struct {
	rng *mrand.Rand
}

// NewSeeded creates a Seeded source.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewSource(seed))}
}

// Float implements Source.
func (s *Seeded) Float() float64 { return s.rng.Float64() }

// Crypto draws from crypto/rand.
type Crypto struct{}

// Float implements Source.
func (Crypto) Float() float64 { return cryptoRandFloat() }

// Sequence replays a fixed list of draws, wrapping around at the end.
type Sequence struct {
	vals []float64
	next int
}

// NewSequence creates a Sequence. An empty list yields 0.5 forever.
func NewSequence(vals ...float64) *Sequence {
	return &Sequence{vals: vals}
}

// Float implements Source.
func (s *Sequence) Float() float64 {
	if len(s.vals) == 0 {
		return 0.5
	}
	v := s.vals[s.next%len(s.vals)]
	s.next++
	return v
}

// Drawn returns how many values have been consumed.
func (s *Sequence) Drawn() int { return s.next }

// Client provides true random numbers from random.org with a local pool.
// Refills run in the background so Float never blocks the game loop.
type Client struct {
	apiKey string
	client *http.Client

	mu        sync.Mutex
	pool      []float64
	refilling bool
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Float returns a pooled value, or a crypto/rand value while the pool is
// empty.
func (c *Client) Float() float64 {
	if c == nil {
		return cryptoRandFloat()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pool) < 10 && !c.refilling {
		c.refilling = true
		go c.refill()
	}

	if len(c.pool) == 0 {
		return cryptoRandFloat()
	}

	val := c.pool[0]
	c.pool = c.pool[1:]
	return val
}

func (c *Client) refill() {
	data := c.fetch()

	c.mu.Lock()
	c.pool = append(c.pool, data...)
	c.refilling = false
	c.mu.Unlock()
}

func (c *Client) fetch() []float64 {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateDecimalFractions",
		"params": map[string]any{
			"apiKey":        c.apiKey,
			"n":             100,
			"decimalPlaces": 6,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		slog.Debug("random.org marshal failed", "error", err)
		return nil
	}

	resp, err := c.client.Post("https://api.random.org/json-rpc/4/invoke", "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Debug("random.org fetch failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Debug("random.org read failed", "error", err)
		return nil
	}

	var result struct {
		Result struct {
			Random struct {
				Data []float64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		slog.Debug("random.org parse failed", "error", err)
		return nil
	}
	if result.Error != nil {
		slog.Debug("random.org API error", "error", result.Error.Message)
		return nil
	}

	// random.org can return 1.0 at 6 decimal places; keep draws in [0, 1).
	out := result.Result.Random.Data[:0]
	for _, v := range result.Result.Random.Data {
		if v >= 0 && v < 1 {
			out = append(out, v)
		}
	}
	slog.Debug("random.org pool refilled", "count", len(out))
	return out
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}
