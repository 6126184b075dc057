//go:build windows

package fileutil

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/windows"
)

// Windows has no O_NOFOLLOW equivalent for os.OpenFile.
const noFollow = 0

// restrict replaces the DACL on path with a single GENERIC_ALL entry for the
// current user. Failures are logged; the file is still usable.
func restrict(path string) error {
	if err := setOwnerOnlyDACL(path); err != nil {
		slog.Warn("owner-only DACL not applied", "path", path, "error", err)
	}
	return nil
}

func setOwnerOnlyDACL(path string) error {
	user, err := windows.GetCurrentProcessToken().GetTokenUser()
	if err != nil {
		return fmt.Errorf("current user SID: %w", err)
	}

	inherit := uint32(windows.NO_INHERITANCE)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		inherit = windows.CONTAINER_INHERIT_ACE | windows.OBJECT_INHERIT_ACE
	}

	acl, err := windows.ACLFromEntries([]windows.EXPLICIT_ACCESS{{
		AccessPermissions: windows.GENERIC_ALL,
		AccessMode:        windows.SET_ACCESS,
		Inheritance:       inherit,
		Trustee: windows.TRUSTEE{
			TrusteeForm:  windows.TRUSTEE_IS_SID,
			TrusteeType:  windows.TRUSTEE_IS_USER,
			TrusteeValue: windows.TrusteeValueFromSID(user.User.Sid),
		},
	}}, nil)
	if err != nil {
		return fmt.Errorf("build ACL: %w", err)
	}

	info := windows.SECURITY_INFORMATION(windows.DACL_SECURITY_INFORMATION | windows.PROTECTED_DACL_SECURITY_INFORMATION)
	if err := windows.SetNamedSecurityInfo(path, windows.SE_FILE_OBJECT, info, nil, nil, acl, nil); err != nil {
		return fmt.Errorf("set DACL: %w", err)
	}
	return nil
}
