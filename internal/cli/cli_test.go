package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcare-rag/internal/pkg/jwtutil"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "ask", "reset", "stats", "token"} {
		assert.True(t, names[want], want)
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("CONFIG_FILE", t.TempDir()+"/missing.toml")
	t.Setenv("JWT_SECRET", "s3cret")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"token", "--subject", "ops", "--ttl", "1h"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	claims, err := jwtutil.ParseToken("s3cret", strings.TrimSpace(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestIngestRequiresURL(t *testing.T) {
	rootCmd.SetArgs([]string{"ingest"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	assert.Error(t, rootCmd.Execute())
}
