package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "empty endpoint",
			config:  Config{Endpoint: "", Bucket: "test", StateKey: "s"},
			wantErr: true,
		},
		{
			name:    "empty bucket",
			config:  Config{Endpoint: "localhost:9000", Bucket: "", StateKey: "s"},
			wantErr: true,
		},
		{
			name:    "empty state key",
			config:  Config{Endpoint: "localhost:9000", Bucket: "test"},
			wantErr: true,
		},
		{
			name: "valid config",
			config: Config{
				Endpoint:        "localhost:9000",
				Bucket:          "test",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
				StateKey:        "multi_meeting_state_v2",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStateObjectName(t *testing.T) {
	if got := StateObjectName("multi_meeting_state_v2"); got != "state/multi_meeting_state_v2.json" {
		t.Errorf("StateObjectName() = %q", got)
	}
}

func TestDecodeState(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantLen int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"whitespace", " \n", 0, false},
		{"null cursor dropped", `{"https://a/index.html": null}`, 0, false},
		{"one cursor", `{"https://a/index.html": {"last_id": 3, "pending_summary": null}}`, 1, false},
		{"malformed", `{`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := DecodeState([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeState() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(state) != tt.wantLen {
				t.Errorf("len(state) = %d, want %d", len(state), tt.wantLen)
			}
		})
	}

	state, _ := DecodeState([]byte(`{"https://a/index.html": {"last_id": 3}}`))
	if c := state["https://a/index.html"]; c.LastID == nil || *c.LastID != 3 {
		t.Errorf("LastID not decoded: %+v", c)
	}
}

// TestIntegration_StateRoundTrip tests actual state persistence against MinIO.
// Skip if MinIO is not running.
func TestIntegration_StateRoundTrip(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}

	client, err := New(Config{
		Endpoint:        endpoint,
		Bucket:          "mtg-monitor-test",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		StateKey:        "state_test_" + time.Now().Format("20060102150405"),
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()

	if err := client.EnsureBucket(ctx); err != nil {
		t.Skipf("MinIO not available, skipping integration test: %v", err)
	}

	t.Run("missing state is empty", func(t *testing.T) {
		state, err := client.LoadState(ctx)
		if err != nil {
			t.Fatalf("LoadState() error = %v", err)
		}
		if len(state) != 0 {
			t.Errorf("LoadState() = %v, want empty", state)
		}
	})

	t.Run("save then load", func(t *testing.T) {
		id := 7
		state := models.State{}
		cur := state.Cursor("https://www.meti.go.jp/x/index.html")
		cur.LastID = &id
		cur.LastMeetingDate = "2025年7月3日"

		if err := client.SaveState(ctx, state); err != nil {
			t.Fatalf("SaveState() error = %v", err)
		}
		got, err := client.LoadState(ctx)
		if err != nil {
			t.Fatalf("LoadState() error = %v", err)
		}
		c := got["https://www.meti.go.jp/x/index.html"]
		if c == nil || c.LastID == nil || *c.LastID != 7 || c.LastMeetingDate != "2025年7月3日" {
			t.Errorf("LoadState() cursor = %+v", c)
		}
	})
}
