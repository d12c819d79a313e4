package daemon

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"testing"

	"price-notifications/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePid(t *testing.T, pid int) string {
	path := filepath.Join(t.TempDir(), "price_listening_daemon.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644))
	return path
}

func TestCredential_DefaultsToCurrentUser(t *testing.T) {
	u, err := user.Current()
	require.NoError(t, err)

	cred, err := Credential("", "")
	require.NoError(t, err)
	assert.Equal(t, u.Uid, strconv.Itoa(int(cred.Uid)))
	assert.Equal(t, u.Gid, strconv.Itoa(int(cred.Gid)))
	assert.True(t, cred.NoSetGroups)
}

func TestCredential_UnknownUser(t *testing.T) {
	_, err := Credential("no-such-user-for-price-notifications", "")
	assert.Error(t, err)

	_, err = Credential("", "no-such-group-for-price-notifications")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	pid, running := Status(filepath.Join(t.TempDir(), "missing.pid"))
	assert.Zero(t, pid)
	assert.False(t, running)

	pid, running = Status(writePid(t, os.Getpid()))
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, running)

	// above the kernel pid limit, so never alive
	pid, running = Status(writePid(t, 1<<30))
	assert.Equal(t, 1<<30, pid)
	assert.False(t, running)
}

func TestStop_NotRunning(t *testing.T) {
	_, err := Stop(filepath.Join(t.TempDir(), "missing.pid"))
	assert.Error(t, err)
}

func TestStart_RefusesWhenRunning(t *testing.T) {
	_, err := Start(Options{PidFile: writePid(t, os.Getpid())})
	assert.ErrorIs(t, err, types.ErrDaemonStartFailure)
}

func TestStart_RequiresPidFile(t *testing.T) {
	_, err := Start(Options{})
	assert.ErrorIs(t, err, types.ErrDaemonStartFailure)
}

func TestHandle_ReleaseInParent(t *testing.T) {
	assert.NoError(t, (&Handle{Parent: true}).Release())
	var h *Handle
	assert.NoError(t, h.Release())
}
