package graph

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// closedPort returns a local port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestConnect(t *testing.T) {
	t.Run("should fail when the store does not answer", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		lineage, err := Connect(ctx, Config{Host: "127.0.0.1", Port: closedPort(t)}, testLogger())
		require.Error(t, err)
		assert.Nil(t, lineage)
		assert.Contains(t, err.Error(), "failed to reach graph database")
	})

	t.Run("should reject an unusable address", func(t *testing.T) {
		lineage, err := Connect(context.Background(), Config{Host: "bad host", Port: 7687}, testLogger())
		require.Error(t, err)
		assert.Nil(t, lineage)
	})
}
