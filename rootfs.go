// Package rootfs contains types shared by the rootfs materialization
// packages and commands.
package rootfs

import (
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Owner overrides the owner recorded on the file system when hashing and
// copying entries, e.g. when a build runs as a different effective user than
// the one which will own the resulting files.
//
// A nil *Owner means “use whatever lstat(2) reports”.
type Owner struct {
	UID int
	GID int
}

// Resolve returns the effective uid and gid for an entry whose lstat(2)
// reports uid and gid.
func (o *Owner) Resolve(uid, gid int) (int, int) {
	if o == nil {
		return uid, gid
	}
	return o.UID, o.GID
}

func (o *Owner) String() string {
	if o == nil {
		return ""
	}
	return strconv.Itoa(o.UID) + ":" + strconv.Itoa(o.GID)
}

// ParseOwner parses an override of the form uid:gid. The empty string yields
// a nil override.
func ParseOwner(s string) (*Owner, error) {
	if s == "" {
		return nil, nil
	}
	idx := strings.IndexByte(s, ':')
	if idx == -1 {
		return nil, xerrors.Errorf("malformed owner %q: want uid:gid", s)
	}
	uid, err := strconv.Atoi(s[:idx])
	if err != nil {
		return nil, xerrors.Errorf("malformed uid in %q: %v", s, err)
	}
	gid, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return nil, xerrors.Errorf("malformed gid in %q: %v", s, err)
	}
	if uid < 0 || gid < 0 {
		return nil, xerrors.Errorf("malformed owner %q: ids must not be negative", s)
	}
	return &Owner{UID: uid, GID: gid}, nil
}
