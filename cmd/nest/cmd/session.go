package cmd

import (
	"context"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/core"
	"github.com/oneconcern/nest/pkg/dlogger"
	"github.com/oneconcern/nest/pkg/fspath"
	"go.uber.org/zap"
)

// session is a file system loaded from the state file, with its private nodes mounted
type session struct {
	fs     *core.FileSystem
	state  *State
	closer io.Closer
	logger *zap.Logger
}

func sessionOptions(logger *zap.Logger) []core.Option {
	return []core.Option{
		core.WithLogger(logger),
		core.WithSettleTime(config.SettleTime),
	}
}

func openSession(ctx context.Context) (*session, error) {
	logger, err := newLogger(config)
	if err != nil {
		return nil, err
	}
	state, err := loadState(config.State)
	if err != nil {
		return nil, err
	}
	dataRoot, err := cid.Decode(state.DataRoot)
	if err != nil {
		return nil, err
	}

	store, closer, err := openBlockstore(config, logger)
	if err != nil {
		return nil, err
	}
	fs, err := core.FromCID(ctx, store, dataRoot, sessionOptions(logger)...)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	requests := make([]core.MountRequest, 0, len(state.Mounts))
	for _, m := range state.Mounts {
		key, err := m.capsuleKey()
		if err != nil {
			_ = closer.Close()
			return nil, err
		}
		requests = append(requests, core.MountRequest{Path: m.path(), CapsuleKey: key})
	}
	if _, err = fs.MountPrivateNodes(ctx, requests); err != nil {
		_ = closer.Close()
		return nil, err
	}

	return &session{fs: fs, state: state, closer: closer, logger: logger}, nil
}

// save records the current data root and the latest capsule keys of all mounts
func (s *session) save(ctx context.Context) error {
	dataRoot, err := s.fs.CalculateDataRoot(ctx)
	if err != nil {
		return err
	}
	s.state.DataRoot = dataRoot.String()

	for _, m := range s.state.Mounts {
		p := m.path()
		key, ok, err := s.fs.CapsuleKey(ctx, fspath.WithPartition(fspath.Private, p))
		if err != nil {
			return err
		}
		if ok {
			s.state.setMount(p, key)
		}
	}
	return saveState(config.State, s.state)
}

func (s *session) close() {
	s.fs.Close()
	if err := s.closer.Close(); err != nil {
		s.logger.Warn("closing block store", zap.Error(err))
	}
	_ = s.logger.Sync()
}

// withSession runs fn against the file system, then saves the state when fn succeeded and mutate is set
func withSession(ctx context.Context, mutate bool, fn func(*session) error) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if err = fn(s); err != nil {
		return err
	}
	if !mutate {
		return nil
	}
	return s.save(ctx)
}

func newLogger(c *CLIConfig) (*zap.Logger, error) {
	return dlogger.GetLogger(c.LogLevel, dlogger.WithConsole(true), dlogger.WithFields(zap.String("store", c.Store.Kind)))
}
