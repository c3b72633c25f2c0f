// SPDX-License-Identifier: MPL-2.0

package mount

import (
	"path"
	"strings"
)

// ToContainerPath converts a host path into the POSIX path it is mounted at.
// Windows drive paths take the WSL form: C:\Users\me becomes /c/Users/me.
func ToContainerPath(hostPath string) string {
	if len(hostPath) >= 2 && hostPath[1] == ':' && isDriveLetter(hostPath[0]) {
		rest := strings.ReplaceAll(hostPath[2:], `\`, "/")
		drive := strings.ToLower(hostPath[:1])
		return path.Clean("/" + drive + "/" + rest)
	}
	if strings.HasPrefix(hostPath, `\\`) {
		// UNC paths have no drive letter to anchor on.
		return path.Clean(strings.ReplaceAll(hostPath, `\`, "/"))
	}
	return path.Clean(hostPath)
}

func isDriveLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
