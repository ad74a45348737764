package probe

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonsson/defcon/internal/model"
)

var httpUserAgent = "defcon"

// HTTP validates an HTTP(S) response against the spec's status code,
// content substring, body digest, JSON query and total-duration
// constraints, in that priority order — the original handler's code/
// content/digest/duration precedence, with the JSON query placed before
// duration.
func HTTP(ctx context.Context, check *model.Check, site string, spec *model.Spec) (model.Event, error) {
	if spec.HTTP == nil {
		return model.Event{}, fmt.Errorf("http: check %s has no spec", check.UUID)
	}
	s := spec.HTTP
	timeout := spec.Timeout().Duration

	method := s.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, s.URL, nil)
	if err != nil {
		return model.Event{}, fmt.Errorf("http: build request: %w", err)
	}
	req.Header.Set("User-Agent", httpUserAgent)
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		return event(check, site, model.StatusCritical, err.Error()), nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	expected := s.ExpectedStatus
	if expected == 0 {
		expected = resp.StatusCode
	}
	if resp.StatusCode != expected {
		return event(check, site, model.StatusCritical, fmt.Sprintf("status code was %d", resp.StatusCode)), nil
	}

	if s.ContentSubstring != "" && !strings.Contains(string(body), s.ContentSubstring) {
		return event(check, site, model.StatusCritical, "content mismatch"), nil
	}

	if s.BodyDigest != "" {
		sum := sha512.Sum512(body)
		if hex.EncodeToString(sum[:]) != s.BodyDigest {
			return event(check, site, model.StatusCritical, "digest mismatch"), nil
		}
	}

	if s.JSONPath != "" {
		ok, err := matchJSONPath(body, s.JSONPath, s.JSONPathExpected)
		if err != nil || !ok {
			return event(check, site, model.StatusCritical, "JSON query failed"), nil
		}
	}

	if s.MaxDuration.Duration > 0 && duration > s.MaxDuration.Duration {
		return event(check, site, model.StatusCritical, "request took too long"), nil
	}

	return event(check, site, model.StatusOK, ""), nil
}
