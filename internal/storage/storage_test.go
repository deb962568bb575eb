package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subscout/subreddit-analyzer/internal/config"
)

func TestReportKey(t *testing.T) {
	assert.Equal(t, "reports/golang.json", ReportKey("golang"))
	assert.Equal(t, "reports/askreddit.json", ReportKey("AskReddit"))
}

func TestCommunityFromKey(t *testing.T) {
	tests := []struct {
		key       string
		community string
		ok        bool
	}{
		{key: ReportKey("golang"), community: "golang", ok: true},
		{key: "reports/.json"},
		{key: "reports/nested/golang.json"},
		{key: "other/golang.json"},
		{key: "reports/golang.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			community, ok := CommunityFromKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.community, community)
			}
		})
	}
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Store(ReportKey("golang"), []byte(`{"score": 56}`)))
	require.NoError(t, s.Store(ReportKey("devops"), []byte(`{"score": 40}`)))
	require.NoError(t, s.Store("other/notes.txt", []byte("x")))

	data, err := s.Retrieve(ReportKey("golang"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 56}`, string(data))

	// overwrite replaces the previous version
	require.NoError(t, s.Store(ReportKey("golang"), []byte(`{"score": 60}`)))
	data, err = s.Retrieve(ReportKey("golang"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 60}`, string(data))

	names, err := s.List(ReportPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/devops.json", "reports/golang.json"}, names)

	require.NoError(t, s.Delete(ReportKey("devops")))
	require.NoError(t, s.Delete(ReportKey("devops")))

	_, err = s.Retrieve(ReportKey("devops"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside.json", "/etc/passwd", "", "reports/../../x"} {
		assert.Error(t, s.Store(key, []byte("x")), key)
	}
}

func TestNew_Local(t *testing.T) {
	dir := t.TempDir()
	s, err := New(&config.Config{StorageBackend: "local", LocalStorageDir: dir}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(&config.Config{StorageBackend: "redis"}, nil)
	assert.Error(t, err)

	_, err = New(&config.Config{StorageBackend: "tape"}, nil)
	assert.Error(t, err)
}

// TestRedisStorage_Integration runs against a real server when REDIS_TEST_ADDR is set
func TestRedisStorage_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	rdb, err := NewRedisClient(context.Background(), addr, "", 0)
	require.NoError(t, err)
	defer rdb.Close()

	s := NewRedisStorage(rdb, time.Minute)
	key := ReportKey("integration-test")

	require.NoError(t, s.Store(key, []byte(`{}`)))
	data, err := s.Retrieve(key)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	names, err := s.List(ReportPrefix)
	require.NoError(t, err)
	assert.Contains(t, names, key)

	require.NoError(t, s.Delete(key))
	_, err = s.Retrieve(key)
	assert.ErrorIs(t, err, ErrNotFound)
}
