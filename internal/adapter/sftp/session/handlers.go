package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"time"

	"github.com/marmos91/dray/internal/adapter/sftp/handle"
	"github.com/marmos91/dray/internal/logger"
	"github.com/marmos91/dray/internal/protocol/sftp"
	"github.com/marmos91/dray/internal/telemetry"
	"github.com/marmos91/dray/pkg/auth"
	"github.com/marmos91/dray/pkg/objectfs"
)

var errNotWritable = fmt.Errorf("handle not open for writing: %w", auth.ErrPermissionDenied)

// authorize resolves p and checks act against it.
func (s *Session) authorize(ctx context.Context, p string, act auth.Action) (string, error) {
	abs := s.resolve(p)
	telemetry.SetAttributes(ctx, telemetry.FSPath(abs))
	if err := s.az.Authorize(s.identity, abs, act); err != nil {
		return abs, err
	}
	return abs, nil
}

// ============================================================================
// Files
// ============================================================================

func (s *Session) handleOpen(ctx context.Context, p *sftp.OpenPacket) Result {
	writable := p.PFlags&(sftp.FlagWrite|sftp.FlagAppend) != 0
	act := auth.ActionRead
	if writable {
		act = auth.ActionWrite
	}
	abs, err := s.authorize(ctx, p.Filename, act)
	if err != nil {
		return fail(p.ID, err)
	}

	c := &cursor{path: abs}
	if writable {
		c.writer, err = s.fs.OpenWriter(ctx, abs, objectfs.OpenMode{
			Create:    p.PFlags&sftp.FlagCreate != 0,
			Exclusive: p.PFlags&sftp.FlagExcl != 0,
			Truncate:  p.PFlags&sftp.FlagTrunc != 0,
			Append:    p.PFlags&sftp.FlagAppend != 0,
		})
	} else {
		c.reader, err = s.fs.OpenReader(ctx, abs)
	}
	if err != nil {
		return fail(p.ID, err)
	}

	h := s.handles.Allocate(handle.KindFile, c)
	logger.DebugCtx(ctx, "OPEN", logger.KeyPath, abs, logger.KeyHandle, h, logger.KeyFlags, p.PFlags)
	return ok(&sftp.HandlePacket{ID: p.ID, Handle: h})
}

func (s *Session) handleClose(ctx context.Context, p *sftp.ClosePacket) Result {
	err := s.handles.Release(p.Handle, func(c *cursor, _ handle.Kind) error {
		if c.writer == nil {
			return nil
		}
		logger.DebugCtx(ctx, "CLOSE committing", logger.KeyPath, c.path, logger.KeySize, c.writer.Buffered())
		return c.writer.Commit(ctx)
	})
	if err != nil {
		return fail(p.ID, err)
	}
	return okStatus(p.ID)
}

func (s *Session) handleRead(ctx context.Context, p *sftp.ReadPacket) Result {
	telemetry.SetAttributes(ctx, telemetry.FSHandle(p.Handle), telemetry.FSOffset(p.Offset), telemetry.FSCount(p.Length))

	length := int(min(p.Length, s.maxRead))
	var data []byte
	err := s.handles.Do(p.Handle, func(c **cursor, kind handle.Kind) error {
		if kind != handle.KindFile {
			return objectfs.ErrIsDir
		}
		if p.Offset > math.MaxInt64 {
			return io.EOF
		}
		var rerr error
		if (*c).reader != nil {
			data, rerr = (*c).reader.ReadAt(ctx, int64(p.Offset), length)
		} else {
			data, rerr = (*c).writer.ReadAt(ctx, int64(p.Offset), length)
		}
		return rerr
	})
	if err != nil {
		return fail(p.ID, err)
	}
	if len(data) == 0 {
		// zero-length request before the end of the file
		return okStatus(p.ID)
	}
	res := ok(&sftp.DataPacket{ID: p.ID, Data: data})
	res.BytesRead = len(data)
	return res
}

func (s *Session) handleWrite(ctx context.Context, p *sftp.WritePacket) Result {
	telemetry.SetAttributes(ctx, telemetry.FSHandle(p.Handle), telemetry.FSOffset(p.Offset))

	err := s.handles.Do(p.Handle, func(c **cursor, kind handle.Kind) error {
		if kind != handle.KindFile {
			return objectfs.ErrIsDir
		}
		if (*c).writer == nil {
			return errNotWritable
		}
		if p.Offset > math.MaxInt64 {
			return objectfs.ErrNonSequential
		}
		return (*c).writer.WriteAt(ctx, p.Data, int64(p.Offset))
	})
	if err != nil {
		return fail(p.ID, err)
	}
	res := okStatus(p.ID)
	res.BytesWritten = len(p.Data)
	return res
}

// ============================================================================
// Attributes
// ============================================================================

func (s *Session) stat(ctx context.Context, id uint32, p string) Result {
	abs, err := s.authorize(ctx, p, auth.ActionRead)
	if err != nil {
		return fail(id, err)
	}
	fi, err := s.fs.Stat(ctx, abs)
	if s.implicitHome(abs, err) {
		fi, err = objectfs.ImplicitDir(abs), nil
	}
	if err != nil {
		return fail(id, err)
	}
	return ok(&sftp.AttrsPacket{ID: id, Attrs: fi.Attributes()})
}

// LSTAT and STAT are identical: object stores have no symlinks.
func (s *Session) handleLstat(ctx context.Context, p *sftp.LstatPacket) Result {
	return s.stat(ctx, p.ID, p.Path)
}

func (s *Session) handleStat(ctx context.Context, p *sftp.StatPacket) Result {
	return s.stat(ctx, p.ID, p.Path)
}

func (s *Session) handleFstat(ctx context.Context, p *sftp.FstatPacket) Result {
	var fi objectfs.FileInfo
	err := s.handles.Do(p.Handle, func(c **cursor, _ handle.Kind) error {
		switch {
		case (*c).reader != nil:
			fi = (*c).reader.Stat()
		case (*c).writer != nil:
			fi = (*c).writer.Stat()
		case (*c).lister != nil:
			fi = (*c).lister.Stat()
		}
		return nil
	})
	if err != nil {
		return fail(p.ID, err)
	}
	return ok(&sftp.AttrsPacket{ID: p.ID, Attrs: fi.Attributes()})
}

func (s *Session) handleSetstat(_ context.Context, p *sftp.SetstatPacket) Result {
	return fail(p.ID, ErrNotImplemented)
}

func (s *Session) handleFsetstat(_ context.Context, p *sftp.FsetstatPacket) Result {
	if _, _, err := s.handles.Lookup(p.Handle); err != nil {
		return fail(p.ID, err)
	}
	return fail(p.ID, ErrNotImplemented)
}

// ============================================================================
// Directories
// ============================================================================

func (s *Session) handleOpendir(ctx context.Context, p *sftp.OpendirPacket) Result {
	abs, err := s.authorize(ctx, p.Path, auth.ActionRead)
	if err != nil {
		return fail(p.ID, err)
	}
	lister, err := s.fs.OpenDir(ctx, abs)
	if s.implicitHome(abs, err) {
		lister, err = s.fs.OpenImplicitDir(abs), nil
	}
	if err != nil {
		return fail(p.ID, err)
	}

	h := s.handles.Allocate(handle.KindDir, &cursor{path: abs, lister: lister})
	return ok(&sftp.HandlePacket{ID: p.ID, Handle: h})
}

func (s *Session) handleReaddir(ctx context.Context, p *sftp.ReaddirPacket) Result {
	telemetry.SetAttributes(ctx, telemetry.FSHandle(p.Handle))

	var entries []sftp.NameEntry
	err := s.handles.Do(p.Handle, func(c **cursor, kind handle.Kind) error {
		if kind != handle.KindDir {
			return objectfs.ErrNotDir
		}
		now := time.Now()
		for len(entries) == 0 {
			batch, err := (*c).lister.Next(ctx)
			if err != nil {
				return err
			}
			for _, fi := range batch {
				if !s.az.Visible(s.identity, path.Join((*c).path, fi.Name)) {
					continue
				}
				entries = append(entries, sftp.NameEntry{
					Filename: fi.Name,
					Longname: s.longname(fi, now),
					Attrs:    fi.Attributes(),
				})
			}
		}
		return nil
	})
	if err != nil {
		return fail(p.ID, err)
	}
	logger.DebugCtx(ctx, "READDIR", logger.KeyHandle, p.Handle, logger.KeyEntries, len(entries))
	return ok(&sftp.NamePacket{ID: p.ID, Entries: entries})
}

func (s *Session) handleMkdir(ctx context.Context, p *sftp.MkdirPacket) Result {
	abs, err := s.authorize(ctx, p.Path, auth.ActionWrite)
	if err != nil {
		return fail(p.ID, err)
	}
	if err := s.fs.Mkdir(ctx, abs); err != nil {
		return fail(p.ID, err)
	}
	return okStatus(p.ID)
}

func (s *Session) handleRmdir(ctx context.Context, p *sftp.RmdirPacket) Result {
	abs, err := s.authorize(ctx, p.Path, auth.ActionWrite)
	if err != nil {
		return fail(p.ID, err)
	}
	if err := s.fs.Rmdir(ctx, abs); err != nil {
		return fail(p.ID, err)
	}
	return okStatus(p.ID)
}

// ============================================================================
// Namespace
// ============================================================================

func (s *Session) handleRemove(ctx context.Context, p *sftp.RemovePacket) Result {
	abs, err := s.authorize(ctx, p.Filename, auth.ActionWrite)
	if err != nil {
		return fail(p.ID, err)
	}
	if err := s.fs.Remove(ctx, abs); err != nil {
		return fail(p.ID, err)
	}
	return okStatus(p.ID)
}

func (s *Session) handleRename(ctx context.Context, p *sftp.RenamePacket) Result {
	oldAbs, err := s.authorize(ctx, p.OldPath, auth.ActionWrite)
	if err != nil {
		return fail(p.ID, err)
	}
	newAbs, err := s.authorize(ctx, p.NewPath, auth.ActionWrite)
	if err != nil {
		return fail(p.ID, err)
	}
	if err := s.fs.Rename(ctx, oldAbs, newAbs); err != nil {
		if errors.Is(err, objectfs.ErrPartialRename) {
			logger.ErrorCtx(ctx, "RENAME partially applied; both paths may exist",
				logger.KeyOldPath, oldAbs, logger.KeyNewPath, newAbs, logger.Err(err))
		}
		return fail(p.ID, err)
	}
	logger.DebugCtx(ctx, "RENAME", logger.KeyOldPath, oldAbs, logger.KeyNewPath, newAbs)
	return okStatus(p.ID)
}

// handleRealpath normalizes without touching the backend.
func (s *Session) handleRealpath(_ context.Context, p *sftp.RealpathPacket) Result {
	abs := s.resolve(p.Path)
	return ok(&sftp.NamePacket{ID: p.ID, Entries: []sftp.NameEntry{{Filename: abs, Longname: abs}}})
}

func (s *Session) handleReadlink(_ context.Context, p *sftp.ReadlinkPacket) Result {
	return fail(p.ID, ErrNotImplemented)
}

func (s *Session) handleSymlink(_ context.Context, p *sftp.SymlinkPacket) Result {
	return fail(p.ID, ErrNotImplemented)
}

func (s *Session) handleExtended(ctx context.Context, p *sftp.ExtendedPacket) Result {
	logger.DebugCtx(ctx, "unsupported extension", "extension", p.Request)
	return fail(p.ID, ErrNotImplemented)
}
