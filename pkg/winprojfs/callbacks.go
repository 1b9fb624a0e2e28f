//go:build windows
// +build windows

package winprojfs

/*
#include <windows.h>
#include <ProjectedFSLib.h>

extern HRESULT goGetPlaceholderInfoCallback(const PRJ_CALLBACK_DATA *callbackData);
extern HRESULT goGetDirectoryEnumerationCallback(const PRJ_CALLBACK_DATA *callbackData, const GUID *enumerationId);
extern HRESULT goStartDirectoryEnumerationCallback(const PRJ_CALLBACK_DATA *callbackData, const GUID *enumerationId);
extern HRESULT goEndDirectoryEnumerationCallback(const PRJ_CALLBACK_DATA *callbackData, const GUID *enumerationId);
extern HRESULT goGetFileDataCallback(const PRJ_CALLBACK_DATA *callbackData, UINT64 byteOffset, UINT32 length);
extern HRESULT goNotificationCallback(const PRJ_CALLBACK_DATA *callbackData, BOOLEAN isDirectory,
	PRJ_NOTIFICATION notification, PCWSTR destinationFileName, PRJ_NOTIFICATION_PARAMETERS *operationParameters);
extern HRESULT goQueryFileNameCallback(const PRJ_CALLBACK_DATA *callbackData);

static void fillCallbackTable(PRJ_CALLBACKS *cb) {
	cb->StartDirectoryEnumerationCallback = goStartDirectoryEnumerationCallback;
	cb->EndDirectoryEnumerationCallback = goEndDirectoryEnumerationCallback;
	cb->GetDirectoryEnumerationCallback = goGetDirectoryEnumerationCallback;
	cb->GetPlaceholderInfoCallback = goGetPlaceholderInfoCallback;
	cb->GetFileDataCallback = goGetFileDataCallback;
	cb->NotificationCallback = goNotificationCallback;
	cb->QueryFileNameCallback = goQueryFileNameCallback;
}
*/
import "C"

import (
	"sync"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"

	"github.com/juergengeck/one.projfs/pkg/engine"
	"github.com/juergengeck/one.projfs/pkg/model"
)

// activeProvider is the single pinned Provider instance ProjFS callbacks
// dispatch into. ProjFS callbacks carry only a context pointer the
// engine controls indirectly; since this engine supports exactly one
// virtualization instance per process, a package-level pointer is the
// simplest stable handle, matching the design notes' "keep the engine
// instance pinned for the entire lifetime of virtualization."
var (
	activeMu       sync.RWMutex
	activeProvider *Provider
)

func buildCallbackTable(p *Provider) C.PRJ_CALLBACKS {
	activeMu.Lock()
	activeProvider = p
	activeMu.Unlock()

	var cb C.PRJ_CALLBACKS
	C.fillCallbackTable(&cb)
	return cb
}

func currentProvider() *Provider {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return activeProvider
}

func virtualPathFromCallback(data *C.PRJ_CALLBACK_DATA) string {
	return engine.CanonicalPath(windows.UTF16PtrToString((*uint16)(unsafe.Pointer(data.FilePathName))))
}

//export goGetPlaceholderInfoCallback
func goGetPlaceholderInfoCallback(data *C.PRJ_CALLBACK_DATA) C.HRESULT {
	p := currentProvider()
	if p == nil {
		return C.HRESULT_FROM_WIN32(C.ERROR_FILE_NOT_FOUND)
	}
	res := p.eng.GetPlaceholderInfo(virtualPathFromCallback(data))
	if !res.Found {
		return C.HRESULT_FROM_WIN32(C.ERROR_FILE_NOT_FOUND)
	}

	var basicInfo C.PRJ_PLACEHOLDER_INFO
	basicInfo.FileBasicInfo.IsDirectory = boolToBOOL(res.Info.IsDirectory)
	basicInfo.FileBasicInfo.FileSize = C.INT64(res.Info.FileSize)
	setAllTimestampsNow(&basicInfo.FileBasicInfo)

	hr := C.PrjWritePlaceholderInfo(data.NamespaceVirtualizationContext,
		data.FilePathName, &basicInfo, C.UINT(unsafe.Sizeof(basicInfo)))
	return hr
}

//export goStartDirectoryEnumerationCallback
func goStartDirectoryEnumerationCallback(data *C.PRJ_CALLBACK_DATA, enumerationID *C.GUID) C.HRESULT {
	p := currentProvider()
	if p == nil {
		return C.E_FAIL
	}
	p.eng.StartDirectoryEnumeration(guidToUUID(enumerationID))
	return C.S_OK
}

//export goEndDirectoryEnumerationCallback
func goEndDirectoryEnumerationCallback(data *C.PRJ_CALLBACK_DATA, enumerationID *C.GUID) C.HRESULT {
	p := currentProvider()
	if p == nil {
		return C.E_FAIL
	}
	p.eng.EndDirectoryEnumeration(guidToUUID(enumerationID))
	return C.S_OK
}

//export goGetDirectoryEnumerationCallback
func goGetDirectoryEnumerationCallback(data *C.PRJ_CALLBACK_DATA, enumerationID *C.GUID) C.HRESULT {
	p := currentProvider()
	if p == nil {
		return C.E_FAIL
	}
	searchExpr := ""
	if sp := data.SearchExpression; sp != nil {
		searchExpr = windows.UTF16PtrToString((*uint16)(unsafe.Pointer(sp)))
	}
	restart := data.Flags&C.PRJ_CALLBACK_DATA_FLAG_ENUM_RESTART_SCAN != 0

	status := p.eng.GetDirectoryEnumeration(
		guidToUUID(enumerationID),
		virtualPathFromCallback(data),
		searchExpr,
		restart,
		dirEntryFillerFor(p, data.DirEntryBufferHandle),
		p,
	)
	return toNTStatus(status)
}

//export goGetFileDataCallback
func goGetFileDataCallback(data *C.PRJ_CALLBACK_DATA, byteOffset C.UINT64, length C.UINT32) C.HRESULT {
	p := currentProvider()
	if p == nil {
		return C.E_FAIL
	}
	var streamID [16]byte
	copyGUID(&streamID, &data.DataStreamId)

	status := p.eng.GetFileData(
		int32(data.CommandId),
		virtualPathFromCallback(data),
		uint64(byteOffset),
		uint32(length),
		0,
		streamID,
		p,
	)
	return toNTStatus(status)
}

//export goNotificationCallback
func goNotificationCallback(data *C.PRJ_CALLBACK_DATA, isDirectory C.BOOLEAN, notification C.PRJ_NOTIFICATION,
	destinationFileName C.PCWSTR, operationParameters *C.PRJ_NOTIFICATION_PARAMETERS) C.HRESULT {
	p := currentProvider()
	if p == nil {
		return C.E_FAIL
	}
	kind := notificationKindFromPRJ(notification)
	status := p.eng.Notification(kind, virtualPathFromCallback(data))
	return toNTStatus(status)
}

//export goQueryFileNameCallback
func goQueryFileNameCallback(data *C.PRJ_CALLBACK_DATA) C.HRESULT {
	p := currentProvider()
	if p == nil {
		return C.E_FAIL
	}
	return toNTStatus(p.eng.QueryFileName(virtualPathFromCallback(data)))
}

// dirEntryFillerFor binds the PRJ_DIR_ENTRY_BUFFER_HANDLE of one
// GetDirectoryEnumeration invocation to engine.DirEntryFiller.
type boundFiller struct {
	p      *Provider
	handle C.PRJ_DIR_ENTRY_BUFFER_HANDLE
}

func (f boundFiller) FillDirEntryBuffer(name string, info engine.FileBasicInfo) engine.FillResult {
	return f.p.FillDirEntryBuffer(f.handle, name, info)
}

func dirEntryFillerFor(p *Provider, handle C.PRJ_DIR_ENTRY_BUFFER_HANDLE) engine.DirEntryFiller {
	return boundFiller{p: p, handle: handle}
}

func copyGUID(dst *[16]byte, src *C.GUID) {
	b := (*[16]byte)(unsafe.Pointer(src))
	copy(dst[:], b[:])
}

func guidToUUID(g *C.GUID) uuid.UUID {
	var raw [16]byte
	copyGUID(&raw, g)
	return uuid.UUID(raw)
}

func setAllTimestampsNow(info *C.PRJ_FILE_BASIC_INFO) {
	now := time.Now()
	ft := windows.NsecToFiletime(now.UnixNano())
	raw := int64(ft.HighDateTime)<<32 | int64(ft.LowDateTime)
	info.CreationTime = C.INT64(raw)
	info.LastAccessTime = C.INT64(raw)
	info.LastWriteTime = C.INT64(raw)
	info.ChangeTime = C.INT64(raw)
	if info.IsDirectory != 0 {
		info.FileAttributes = C.FILE_ATTRIBUTE_DIRECTORY
	} else {
		info.FileAttributes = C.FILE_ATTRIBUTE_NORMAL
	}
}

// toNTStatus maps the engine's internal Status to the NTSTATUS/HRESULT
// vocabulary ProjFS callbacks return, the same shape as the teacher's
// winfsp.toNTStatus table.
func toNTStatus(s model.Status) C.HRESULT {
	switch s {
	case model.StatusOK:
		return C.S_OK
	case model.StatusErrNoEnt:
		return C.HRESULT_FROM_WIN32(C.ERROR_FILE_NOT_FOUND)
	case model.StatusErrAccess:
		return C.HRESULT_FROM_WIN32(C.ERROR_ACCESS_DENIED)
	case model.StatusErrIO:
		return C.HRESULT_FROM_WIN32(C.ERROR_IO_DEVICE)
	case model.StatusErrInval:
		return C.E_INVALIDARG
	case model.StatusErrIsDir:
		return C.HRESULT_FROM_WIN32(C.ERROR_DIRECTORY_NOT_SUPPORTED)
	case model.StatusErrNotDir:
		return C.HRESULT_FROM_WIN32(C.ERROR_DIRECTORY)
	case model.StatusErrPending:
		return C.HRESULT_FROM_WIN32(C.ERROR_IO_PENDING)
	default:
		return C.E_FAIL
	}
}

func notificationKindFromPRJ(n C.PRJ_NOTIFICATION) engine.NotificationType {
	switch n {
	case C.PRJ_NOTIFICATION_FILE_OPENED:
		return engine.NotificationFileOpened
	case C.PRJ_NOTIFICATION_NEW_FILE_CREATED:
		return engine.NotificationNewFileCreated
	case C.PRJ_NOTIFICATION_FILE_OVERWRITTEN:
		return engine.NotificationFileOverwritten
	case C.PRJ_NOTIFICATION_PRE_DELETE:
		return engine.NotificationPreDelete
	case C.PRJ_NOTIFICATION_PRE_RENAME:
		return engine.NotificationPreRename
	case C.PRJ_NOTIFICATION_PRE_SET_HARDLINK:
		return engine.NotificationPreSetHardlink
	case C.PRJ_NOTIFICATION_FILE_RENAMED:
		return engine.NotificationFileRenamed
	case C.PRJ_NOTIFICATION_HARDLINK_CREATED:
		return engine.NotificationHardlinkCreated
	case C.PRJ_NOTIFICATION_FILE_HANDLE_CLOSED_NO_MODIFICATION:
		return engine.NotificationFileHandleClosedNoModification
	case C.PRJ_NOTIFICATION_FILE_HANDLE_CLOSED_FILE_MODIFIED:
		return engine.NotificationFileHandleClosedModified
	case C.PRJ_NOTIFICATION_FILE_HANDLE_CLOSED_FILE_DELETED:
		return engine.NotificationFileHandleClosedDeleted
	case C.PRJ_NOTIFICATION_FILE_PRE_CONVERT_TO_FULL:
		return engine.NotificationPreConvertToFull
	default:
		return engine.NotificationType(-1)
	}
}
