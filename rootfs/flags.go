package rootfs

import "golang.org/x/sys/unix"

const (
	msBIND     = unix.MS_BIND
	msREC      = unix.MS_REC
	msRemount  = unix.MS_REMOUNT
	msRDONLY   = unix.MS_RDONLY
	msPRIVATE  = unix.MS_PRIVATE
	msRPRIVATE = unix.MS_PRIVATE | unix.MS_REC
	msSLAVE    = unix.MS_SLAVE
	msRSLAVE   = unix.MS_SLAVE | unix.MS_REC
	msSHARED   = unix.MS_SHARED
	msRSHARED  = unix.MS_SHARED | unix.MS_REC
	mntDetach  = unix.MNT_DETACH
)

func bindRemountFlags() int {
	return msBIND | msRemount | msRDONLY
}
