// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/xcross/xcross/internal/shellquote"
)

// collisionMarker starts the error line of the symlink script when a path
// it would link already holds a real file.
const collisionMarker = "invalid: got unexpected file at"

// symlinkRecurse links every leaf under the prefix to the same path without
// the prefix, descending into directories that already exist there.
const symlinkRecurse = `symlink_recurse() {
	for f in "${1}"/*; do
		[ -e "${f}" ] || [ -L "${f}" ] || continue
		dst=${f#"$prefix"}
		if [ -f "${dst}" ] && [ ! -L "${dst}" ]; then
			echo "` + collisionMarker + ` ${dst}" 1>&2
			exit 1
		elif [ -d "${dst}" ]; then
			symlink_recurse "${f}"
		else
			ln -s "${f}" "${dst}"
		fi
	done
}`

// symlink makes Target, a path inside copied data, visible at Link.
type symlink struct {
	Target string
	Link   string
}

// symlinkScript returns the script that hands the copied data to user and
// exposes it at the paths a local build would mount it at.
func symlinkScript(user string, links []symlink, trace bool) (string, error) {
	lines := []string{"set -e"}
	if trace {
		lines = append(lines, "set -x")
	}
	lines = append(lines,
		fmt.Sprintf("chown -R %s %s", shellquote.Quote(user), MountPrefix),
		"prefix="+shellquote.Quote(MountPrefix),
		symlinkRecurse,
		`symlink_recurse "${prefix}"`,
	)
	for _, l := range links {
		lines = append(lines,
			"mkdir -p "+shellquote.Quote(path.Dir(l.Link)),
			"ln -s "+shellquote.Quote(l.Target)+" "+shellquote.Quote(l.Link),
		)
	}

	script := strings.Join(lines, "\n") + "\n"
	if err := shellquote.Validate(script); err != nil {
		return "", err
	}
	return script, nil
}

// removeListScript deletes every path listed, one per line, in list.
func removeListScript(list string) string {
	return `while IFS= read -r line; do rm -f -- "$line"; done < ` + shellquote.Quote(list)
}

// targetDirSubcommands accept --target-dir, so one is injected when absent.
var targetDirSubcommands = []string{
	"b", "build", "c", "check", "clean", "clippy", "d", "doc", "fix",
	"install", "r", "run", "rustc", "rustdoc", "t", "test", "bench",
}

// RewriteTargetDir points --target-dir at dir. An existing value, in either
// the "--target-dir X" or the "--target-dir=X" form, is replaced; otherwise
// one is added when the subcommand builds anything. Arguments after "--"
// belong to the built program and are left alone.
func RewriteTargetDir(args []string, dir string) []string {
	end := slices.Index(args, "--")
	if end < 0 {
		end = len(args)
	}

	out := make([]string, 0, len(args)+2)
	found := false
	for i := 0; i < end; i++ {
		switch arg := args[i]; {
		case arg == "--target-dir":
			found = true
			out = append(out, arg, dir)
			i++
		case strings.HasPrefix(arg, "--target-dir="):
			found = true
			out = append(out, "--target-dir="+dir)
		default:
			out = append(out, arg)
		}
	}
	if !found && slices.Contains(targetDirSubcommands, subcommand(args[:end])) {
		out = append(out, "--target-dir", dir)
	}
	return append(out, args[end:]...)
}

// hasTargetDir reports whether args pass --target-dir to cargo.
func hasTargetDir(args []string) bool {
	for _, arg := range args {
		switch {
		case arg == "--":
			return false
		case arg == "--target-dir", strings.HasPrefix(arg, "--target-dir="):
			return true
		}
	}
	return false
}

// subcommand returns the first argument that is neither a flag nor a
// "+toolchain" override.
func subcommand(args []string) string {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "+") {
			return arg
		}
	}
	return ""
}
