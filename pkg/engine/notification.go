package engine

import "github.com/juergengeck/one.projfs/pkg/model"

// NotificationType names one ProjFS notification kind the engine
// subscribes to.
type NotificationType int

const (
	NotificationFileOpened NotificationType = iota
	NotificationNewFileCreated
	NotificationFileOverwritten
	NotificationPreDelete
	NotificationPreRename
	NotificationPreSetHardlink
	NotificationFileRenamed
	NotificationHardlinkCreated
	NotificationFileHandleClosedNoModification
	NotificationFileHandleClosedModified
	NotificationFileHandleClosedDeleted
	NotificationPreConvertToFull
)

// Notification answers one ProjFS write-path notification. Only a
// read-only informational subset ever allows; every create/overwrite/
// delete/rename/hardlink intent is denied, and unknown kinds default to
// denied as well.
func (e *Engine) Notification(kind NotificationType, virtualPath string) model.Status {
	p := CanonicalPath(virtualPath)
	switch kind {
	case NotificationFileOpened, NotificationFileHandleClosedNoModification, NotificationPreConvertToFull:
		return model.StatusOK
	case NotificationNewFileCreated, NotificationFileOverwritten, NotificationPreDelete, NotificationPreRename, NotificationPreSetHardlink:
		return model.StatusErrAccess
	case NotificationFileRenamed, NotificationHardlinkCreated, NotificationFileHandleClosedModified, NotificationFileHandleClosedDeleted:
		e.debugf("engine: notification %d allowed for %s", kind, p)
		return model.StatusOK
	default:
		e.debugf("engine: unknown notification %d for %s, denying", kind, p)
		return model.StatusErrAccess
	}
}

// QueryFileName always answers file-not-found: case-insensitive matching
// beyond what ProjFS's own search-expression semantics provide is not
// supported.
func (e *Engine) QueryFileName(virtualPath string) model.Status {
	return model.StatusErrNoEnt
}
