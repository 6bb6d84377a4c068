package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperengineering/lifexp/internal/config"
	"github.com/hyperengineering/lifexp/internal/types"
)

func testSnapshot(name string, at time.Time) *types.RemoteSnapshot {
	p := types.NewProfile(at)
	p.PlayerName = name
	p.Meta.FreshInstall = false
	p.Global.TotalXP = 42
	return &types.RemoteSnapshot{UpdatedAt: at, State: p}
}

func assertSnapshot(t *testing.T, got, want *types.RemoteSnapshot) {
	t.Helper()
	if got == nil || got.State == nil {
		t.Fatalf("got nil snapshot")
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, want.UpdatedAt)
	}
	if got.State.PlayerName != want.State.PlayerName {
		t.Errorf("PlayerName = %q, want %q", got.State.PlayerName, want.State.PlayerName)
	}
	if got.State.Global.TotalXP != want.State.Global.TotalXP {
		t.Errorf("TotalXP = %d, want %d", got.State.Global.TotalXP, want.State.Global.TotalXP)
	}
}

func TestNoop(t *testing.T) {
	var r Remote = Noop{}
	if _, err := r.Pull(context.Background(), "u"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Pull error = %v, want ErrNotConfigured", err)
	}
	if err := r.Push(context.Background(), "u", nil); err != nil {
		t.Errorf("Push error = %v", err)
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SyncConfig
		want string
	}{
		{"none", config.SyncConfig{Backend: config.BackendNone}, "remote.Noop"},
		{"empty", config.SyncConfig{}, "remote.Noop"},
		{"http", config.SyncConfig{Backend: config.BackendHTTP, HTTP: config.HTTPConfig{URL: "http://x"}}, "*remote.HTTP"},
		{"redis", config.SyncConfig{Backend: config.BackendRedis, Redis: config.RedisConfig{Addr: "localhost:6379"}}, "*remote.Redis"},
		{"s3", config.SyncConfig{Backend: config.BackendS3, S3: config.S3Config{Endpoint: "localhost:9000", Bucket: "b"}}, "*remote.S3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if got := typeName(r); got != tt.want {
				t.Errorf("New() = %s, want %s", got, tt.want)
			}
			if c, ok := r.(interface{ Close() error }); ok {
				c.Close()
			}
		})
	}

	if _, err := New(config.SyncConfig{Backend: "ftp"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func typeName(r Remote) string {
	switch r.(type) {
	case Noop:
		return "remote.Noop"
	case *HTTP:
		return "*remote.HTTP"
	case *Redis:
		return "*remote.Redis"
	case *S3:
		return "*remote.S3"
	}
	return "unknown"
}

func TestDecode(t *testing.T) {
	snap, err := decode([]byte(`{"updated_at":"2024-05-08T09:00:00Z","state":{"player_name":"Ada"}}`))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if snap.State.Settings.MonthGoal != types.DefaultMonthGoal {
		t.Error("decoded state should be normalized")
	}

	if _, err := decode([]byte(`{"updated_at":"2024-05-08T09:00:00Z"}`)); err == nil {
		t.Error("expected error for missing state")
	}
	if _, err := decode([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestEncode_RejectsEmpty(t *testing.T) {
	if _, err := encode(nil); err == nil {
		t.Error("expected error for nil snapshot")
	}
	if _, err := encode(&types.RemoteSnapshot{}); err == nil {
		t.Error("expected error for snapshot without state")
	}
}
