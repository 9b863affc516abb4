package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "unknown"},
		{"context deadline", context.DeadlineExceeded, "timeout"},
		{"wrapped cancel", fmt.Errorf("walk: %w", context.Canceled), "timeout"},
		{"timeout message", errors.New("navigate timeout after 60s"), "timeout"},
		{"cloudflare block", errors.New("Cloudflare Attention Required"), "blocked"},
		{"http 429", errors.New("fetch asset: status 429"), "blocked"},
		{"net error", errors.New("net::ERR_CONNECTION_RESET"), "network_error"},
		{"missing element", errors.New("results list: cannot find element"), "parse_error"},
		{"unclassified", errors.New("something odd"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
