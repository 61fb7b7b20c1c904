package identity

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/felipepmaragno/stem-explainer/internal/httputil"
)

const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

var ErrUnknownKey = errors.New("unknown signing key")

// KeySource resolves a token's kid to the RSA key that signed it.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// StaticKeySource serves a fixed key set.
type StaticKeySource map[string]*rsa.PublicKey

func (s StaticKeySource) Key(_ context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok := s[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
	}
	return key, nil
}

// minRefresh bounds refetches triggered by unknown kids.
const (
	minRefresh     = time.Minute
	defaultMaxAge  = time.Hour
	maxCertsLength = 1 << 20
)

// HTTPKeySource fetches the x509 certificate map published for Firebase
// and caches it for the response's max-age.
type HTTPKeySource struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	fetchedAt time.Time
	inflight  chan struct{}
}

func NewHTTPKeySource(url string, client *http.Client) *HTTPKeySource {
	if url == "" {
		url = GoogleCertsURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPKeySource{url: url, client: client, now: time.Now}
}

func (s *HTTPKeySource) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	for {
		s.mu.Lock()
		now := s.now()
		key, ok := s.keys[kid]
		fresh := now.Before(s.expiresAt)
		if ok && fresh {
			s.mu.Unlock()
			return key, nil
		}
		if fresh && now.Sub(s.fetchedAt) < minRefresh {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
		}

		// One fetch at a time; the rest wait for it and look again.
		if wait := s.inflight; wait != nil {
			s.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		done := make(chan struct{})
		s.inflight = done
		s.mu.Unlock()

		keys, maxAge, err := s.fetch(ctx)

		s.mu.Lock()
		s.inflight = nil
		if err == nil {
			s.keys = keys
			s.fetchedAt = now
			s.expiresAt = now.Add(maxAge)
		}
		close(done)
		key, ok = s.keys[kid]
		s.mu.Unlock()

		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
		}
		return key, nil
	}
}

func (s *HTTPKeySource) fetch(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch signing certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("fetch signing certs: status=%d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxCertsLength)).Decode(&certs); err != nil {
		return nil, 0, fmt.Errorf("decode signing certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemCert := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemCert))
		if err != nil {
			return nil, 0, fmt.Errorf("parse cert %s: %w", kid, err)
		}
		keys[kid] = key
	}

	maxAge := httputil.MaxAge(resp.Header)
	if maxAge == 0 {
		maxAge = defaultMaxAge
	}
	return keys, maxAge, nil
}
