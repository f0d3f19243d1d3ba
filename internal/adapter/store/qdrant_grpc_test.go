package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"vectorchat/internal/domain"
)

func TestGRPCAddress(t *testing.T) {
	tests := []struct {
		url    string
		host   string
		port   int
		useTLS bool
	}{
		{"http://localhost:6333", "localhost", 6334, false},
		{"http://localhost", "localhost", 6334, false},
		{"https://cluster.cloud.qdrant.io:6333", "cluster.cloud.qdrant.io", 6334, true},
		{"http://qdrant:7000", "qdrant", 7000, false},
	}
	for _, tt := range tests {
		host, port, useTLS, err := grpcAddress(tt.url)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.url, err)
		}
		if host != tt.host || port != tt.port || useTLS != tt.useTLS {
			t.Errorf("%s: got (%s, %d, %v), want (%s, %d, %v)", tt.url, host, port, useTLS, tt.host, tt.port, tt.useTLS)
		}
	}

	if _, _, _, err := grpcAddress("::not a url"); !errors.Is(err, domain.ErrUsage) {
		t.Errorf("expected ErrUsage for bad url, got %v", err)
	}
}

func TestClassifyGRPC(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{status.Error(codes.Unauthenticated, "no key"), domain.ErrAuth},
		{status.Error(codes.PermissionDenied, "denied"), domain.ErrAuth},
		{status.Error(codes.Unavailable, "down"), domain.ErrNetwork},
		{fmt.Errorf("wrapped: %w", status.Error(codes.DeadlineExceeded, "slow")), domain.ErrNetwork},
		{context.DeadlineExceeded, domain.ErrNetwork},
		{status.Error(codes.InvalidArgument, "bad dim"), domain.ErrProvider},
		{status.Error(codes.Internal, "boom"), domain.ErrProvider},
	}
	for _, tt := range tests {
		if got := classifyGRPC("op", tt.err); !errors.Is(got, tt.want) {
			t.Errorf("classifyGRPC(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestQdrantPayloadFields(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := domain.Payload{Text: "hello", Source: "a.txt", ChunkIndex: 2, TotalChunks: 5, Model: "text-embedding-3-small", EmbeddedAt: at}

	payload, err := toQdrantPayload(in)
	if err != nil {
		t.Fatal(err)
	}
	if payload[payloadChunkIndex].GetIntegerValue() != 2 {
		t.Errorf("chunk_index not stored as integer: %v", payload[payloadChunkIndex])
	}
	out := fromQdrantPayload(payload)
	if !out.EmbeddedAt.Equal(at) {
		t.Errorf("embedded_at changed: got %v", out.EmbeddedAt)
	}
	out.EmbeddedAt = in.EmbeddedAt
	if out != in {
		t.Errorf("payload changed: got %+v, want %+v", out, in)
	}
}
