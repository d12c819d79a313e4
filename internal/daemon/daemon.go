package daemon

import (
	"os"
	"os/user"
	"strconv"
	"syscall"

	"price-notifications/internal/types"

	"github.com/pkg/errors"
	godaemon "github.com/sevlyar/go-daemon"
	log "github.com/sirupsen/logrus"
)

// Options describe the detached process.
type Options struct {
	PidFile string
	WorkDir string
	LogFile string
	// User and Group default to the invoking user and its primary group.
	User  string
	Group string
	Umask int
}

// Handle is returned to both sides of the fork. The parent must exit; the
// child keeps running and releases the pid file on shutdown.
type Handle struct {
	Parent bool
	Child  *os.Process

	ctx *godaemon.Context
}

// Release removes the pid file held by the child. It is a no-op in the parent.
func (h *Handle) Release() error {
	if h == nil || h.ctx == nil {
		return nil
	}
	return h.ctx.Release()
}

// Start detaches the current program into the background. In the parent it
// returns once the child is spawned; in the child it returns after the pid
// file has been written and stdout/stderr point at the log file.
func Start(opts Options) (*Handle, error) {
	if opts.PidFile == "" {
		return nil, errors.Wrap(types.ErrDaemonStartFailure, "pid file is required")
	}

	if !godaemon.WasReborn() {
		pid, running := Status(opts.PidFile)
		if running {
			return nil, errors.Wrapf(types.ErrDaemonStartFailure, "already running with pid %d", pid)
		}
		if pid != 0 {
			log.Warnf("Removing stale pid file %s (pid %d)", opts.PidFile, pid)
			if err := os.Remove(opts.PidFile); err != nil && !os.IsNotExist(err) {
				return nil, errors.Wrapf(types.ErrDaemonStartFailure, "could not remove stale pid file: %v", err)
			}
		}
	}

	cred, err := Credential(opts.User, opts.Group)
	if err != nil {
		return nil, errors.Wrapf(types.ErrDaemonStartFailure, "%v", err)
	}

	umask := opts.Umask
	if umask == 0 {
		umask = 0o027
	}

	ctx := &godaemon.Context{
		PidFileName: opts.PidFile,
		PidFilePerm: 0o644,
		LogFileName: opts.LogFile,
		LogFilePerm: 0o640,
		WorkDir:     opts.WorkDir,
		Umask:       umask,
		Credential:  cred,
	}

	child, err := ctx.Reborn()
	if err != nil {
		if errors.Is(err, godaemon.ErrWouldBlock) {
			return nil, errors.Wrap(types.ErrDaemonStartFailure, "pid file is locked by another listener")
		}
		return nil, errors.Wrapf(types.ErrDaemonStartFailure, "%v", err)
	}
	if child != nil {
		return &Handle{Parent: true, Child: child}, nil
	}

	log.Infof("Daemon started with pid %d", os.Getpid())
	return &Handle{ctx: ctx}, nil
}

// Credential resolves a user and group name into the ids the child runs as.
func Credential(userName, groupName string) (*syscall.Credential, error) {
	var (
		u   *user.User
		err error
	)
	if userName == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(userName)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not resolve user %q", userName)
	}

	gid := u.Gid
	if groupName != "" {
		g, err := user.LookupGroup(groupName)
		if err != nil {
			return nil, errors.Wrapf(err, "could not resolve group %q", groupName)
		}
		gid = g.Gid
	}

	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid uid %s", u.Uid)
	}
	g, err := strconv.ParseUint(gid, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid gid %s", gid)
	}

	return &syscall.Credential{Uid: uint32(uid), Gid: uint32(g), NoSetGroups: true}, nil
}

// Status reads the pid file. pid is 0 when there is no readable pid file;
// running tells whether that process is alive.
func Status(pidFile string) (pid int, running bool) {
	pid, err := godaemon.ReadPidFile(pidFile)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, alive(pid)
}

// Stop asks the running listener to shut down.
func Stop(pidFile string) (int, error) {
	pid, running := Status(pidFile)
	if !running {
		return pid, errors.New("listener is not running")
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return pid, errors.Wrapf(err, "could not signal pid %d", pid)
	}
	return pid, nil
}

func alive(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
