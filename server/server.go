package server

import (
	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/brettbedarf/webvfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Server exposes a read only FUSE view of a webvfs tree. The view is built from
// a snapshot taken at mount time; later mutations are not reflected.
type Server struct {
	cfg    *config.Config
	vfs    *filesystem.FileSystem
	server *fuse.Server
}

func New(cfg *config.Config, vfs *filesystem.FileSystem) *Server {
	return &Server{cfg: cfg, vfs: vfs}
}

// Serve mounts the current tree at mountPoint and returns once the mount is up
func (s *Server) Serve(mountPoint string) error {
	logger := util.GetLogger("Server.Serve")
	snap := s.vfs.Snapshot()
	opts := s.cfg.MountOptions

	srv, err := fs.Mount(mountPoint, newRoot(snap.Root), &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:    opts.Name,
			FsName:  opts.FsName,
			Debug:   opts.Debug || s.cfg.LogLvl == util.TraceLevel,
			Logger:  util.NewLogLogger("FuseServer", util.TraceLevel),
			Options: []string{"ro"},
		},
	})
	if err != nil {
		logger.Error().Err(err).Str("mountpoint", mountPoint).Msg("Failed to mount")
		return err
	}
	s.server = srv
	logger.Info().Str("mountpoint", mountPoint).Int("entries", len(snap.Root.Children)).Msg("Mounted")
	return nil
}

// Wait blocks until the filesystem is unmounted
func (s *Server) Wait() {
	if s.server != nil {
		s.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem.
func (s *Server) Unmount() error {
	if s.server == nil {
		return nil
	}
	return s.server.Unmount()
}
