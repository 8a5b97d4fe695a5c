package session

import (
	"errors"
	"io"

	"github.com/marmos91/dray/internal/adapter/sftp/handle"
	"github.com/marmos91/dray/internal/protocol/sftp"
	"github.com/marmos91/dray/pkg/auth"
	"github.com/marmos91/dray/pkg/objectfs"
	"github.com/marmos91/dray/pkg/store/object"
)

// StatusFor maps any error to an SFTP status code. The mapping is total:
// errors it does not recognize become StatusFailure.
func StatusFor(err error) sftp.StatusCode {
	switch {
	case err == nil:
		return sftp.StatusOK
	case errors.Is(err, io.EOF):
		return sftp.StatusEOF
	case errors.Is(err, objectfs.ErrPartialRename):
		return sftp.StatusFailure
	case errors.Is(err, handle.ErrInvalidHandle):
		return sftp.StatusFailure
	case errors.Is(err, object.ErrNotFound):
		return sftp.StatusNoSuchFile
	case errors.Is(err, auth.ErrPermissionDenied), errors.Is(err, object.ErrAccessDenied):
		return sftp.StatusPermissionDenied
	case errors.Is(err, objectfs.ErrNonSequential),
		errors.Is(err, objectfs.ErrUnsupported),
		errors.Is(err, ErrNotImplemented):
		return sftp.StatusOpUnsupported
	}
	return sftp.StatusFailure
}

// publicErrors may be shown to clients as STATUS messages. Anything else is
// reported with the generic text of its status code, so backend details
// such as bucket names stay in the server log.
var publicErrors = []error{
	handle.ErrInvalidHandle,
	objectfs.ErrPartialRename,
	objectfs.ErrExist,
	objectfs.ErrNotEmpty,
	objectfs.ErrIsDir,
	objectfs.ErrNotDir,
	objectfs.ErrNonSequential,
	objectfs.ErrBufferFull,
	ErrNotImplemented,
}

// StatusMessage returns the client-facing text for err.
func StatusMessage(err error) string {
	for _, pub := range publicErrors {
		if errors.Is(err, pub) {
			return pub.Error()
		}
	}
	return StatusFor(err).String()
}
