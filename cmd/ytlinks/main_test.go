package main

import (
	"context"
	"errors"
	"testing"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"1000", 1000},
		{"2MiB/s", 2 << 20},
		{"500KiB/s", 500 << 10},
		{"1.5kb", 1500},
		{"1GB/s", 1000 * 1000 * 1000},
		{"fast", 0},
		{"-3MiB", 0},
	}
	for _, tt := range tests {
		if got := parseRate(tt.in); got != tt.want {
			t.Errorf("parseRate(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRunWithoutInputs(t *testing.T) {
	err := run(context.Background(), options{fallback: "videoinfo"}, nil)
	if !errors.Is(err, errUsage) {
		t.Fatalf("want usage error, got %v", err)
	}
}

func TestRunRejectsBadOptions(t *testing.T) {
	if err := run(context.Background(), options{fallback: "rss"}, []string{"x"}); err == nil {
		t.Fatal("want error for unknown fallback")
	}
	if err := run(context.Background(), options{fallback: "videoinfo", verify: "v8"}, []string{"x"}); err == nil {
		t.Fatal("want error for unknown engine")
	}
}
