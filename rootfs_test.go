package rootfs_test

import (
	"testing"

	"github.com/distr1/rootfs"
	"github.com/google/go-cmp/cmp"
)

func TestParseOwner(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want *rootfs.Owner
	}{
		{"", nil},
		{"0:0", &rootfs.Owner{}},
		{"1000:100", &rootfs.Owner{UID: 1000, GID: 100}},
	} {
		t.Run(tt.in, func(t *testing.T) {
			got, err := rootfs.ParseOwner(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseOwner(%q): diff (-want +got):\n%s", tt.in, diff)
			}
		})
	}

	for _, in := range []string{"1000", "a:b", "1:", "-1:0"} {
		if _, err := rootfs.ParseOwner(in); err == nil {
			t.Errorf("ParseOwner(%q) unexpectedly succeeded", in)
		}
	}
}

func TestOwnerResolve(t *testing.T) {
	var none *rootfs.Owner
	if uid, gid := none.Resolve(12, 34); uid != 12 || gid != 34 {
		t.Errorf("nil override: got %d:%d, want 12:34", uid, gid)
	}
	o := &rootfs.Owner{UID: 1, GID: 2}
	if uid, gid := o.Resolve(12, 34); uid != 1 || gid != 2 {
		t.Errorf("override: got %d:%d, want 1:2", uid, gid)
	}
}
