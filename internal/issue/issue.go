// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"cmp"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Catalog page ids.
const (
	ContainerEngineNotFoundId Id = iota + 1
	ImageNotFoundId
	AmbiguousImageId
	ConfigLoadFailedId
	MissingStdlibId
	SymlinkCollisionId
	RemoteSyncFailedId
	NestedContainerId
	CustomImageBuildFailedId
)

type (
	// Id identifies a catalog page.
	Id int

	// MarkdownMsg is Markdown text rendered to the terminal.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is a catalog page explaining a class of failure.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the page with the given glamour style ("dark", "light", "notty").
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

xcross runs every build inside a container, so it needs docker or podman.

## Things you can try:
- Install Docker: https://docs.docker.com/get-docker/
- Install Podman: ` + "`sudo apt install podman`" + ` or ` + "`brew install podman`" + `
- Point xcross at a specific engine binary:
~~~
$ CROSS_CONTAINER_ENGINE=/opt/bin/podman xcross run --target aarch64-unknown-linux-gnu -- build
~~~`,
		extLinks: []HttpLink{"https://docs.docker.com/engine/install/", "https://podman.io/docs/installation"},
	}

	imageNotFoundIssue = &Issue{
		id: ImageNotFoundId,
		mdMsg: `
# No image for this target!

There is no built-in image for the requested target, and none is configured.

## Things you can try:
- List the targets with built-in images:
~~~
$ xcross targets
~~~
- Configure an image for the target in xcross.toml:
~~~toml
[target.riscv64gc-unknown-linux-musl]
image = "ghcr.io/me/riscv64-musl:latest"
~~~
- Or through the environment:
~~~
$ CROSS_TARGET_RISCV64GC_UNKNOWN_LINUX_MUSL_IMAGE=ghcr.io/me/riscv64-musl:latest xcross run ...
~~~`,
	}

	ambiguousImageIssue = &Issue{
		id: AmbiguousImageId,
		mdMsg: `
# More than one image fits this target!

The built-in catalog lists several images for the target and none of them is
the default, so xcross will not guess.

## Things you can try:
- Pick a sub-variant with a leading dash:
~~~toml
[target.x86_64-unknown-linux-gnu]
image = "-centos"
~~~
- Or name the full image.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

xcross.toml could not be read or does not match the expected schema.

## Things you can try:
- Check the TOML syntax of xcross.toml
- Make sure target sections are named after full target triples:
~~~toml
[target.aarch64-unknown-linux-gnu]
runner = "qemu-user"
~~~
- Pass a different file with ` + "`--config`",
	}

	missingStdlibIssue = &Issue{
		id: MissingStdlibId,
		mdMsg: `
# The build failed inside the container

One possible cause is that the standard library for the target is not installed
in the toolchain being mounted into the container.

## Things you can try:
~~~
$ rustup target add <target>
~~~`,
	}

	symlinkCollisionIssue = &Issue{
		id: SymlinkCollisionId,
		mdMsg: `
# Volume mount collides with copied data!

An extra volume was mapped onto a container path that already holds a real file
copied from the project. xcross refuses to overwrite it.

## Things you can try:
- Move the extra volume so it does not overlap the project directory
- Remove the volume from ` + "`build.env.volumes`",
	}

	remoteSyncFailedIssue = &Issue{
		id: RemoteSyncFailedId,
		mdMsg: `
# Could not copy data to the remote engine!

In remote mode xcross copies the toolchain and project into a data volume.

## Things you can try:
- Check that the remote engine is reachable: ` + "`docker version`" + `
- Recreate the persistent volume:
~~~
$ xcross volumes remove
$ xcross volumes create
~~~`,
	}

	nestedContainerIssue = &Issue{
		id: NestedContainerId,
		mdMsg: `
# Could not translate paths for a nested container!

xcross is running inside a container, so host paths must be mapped through
the outer container's mounts. Only the overlay2 storage driver is supported.

## Things you can try:
- Run the outer container with the project bind-mounted
- Set ` + "`CROSS_CONTAINER_IN_CONTAINER=false`" + ` if xcross is not actually in a container`,
	}

	customImageBuildFailedIssue = &Issue{
		id: CustomImageBuildFailedId,
		mdMsg: `
# Failed to build the custom image!

The target configures a Dockerfile or pre-build commands, and building the
derived image failed.

## Things you can try:
- Check the Dockerfile and ` + "`pre-build`" + ` lines of the target
- Run with ` + "`--verbose`" + ` to see the full build output`,
	}

	issues = map[Id]*Issue{
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		imageNotFoundIssue.Id():           imageNotFoundIssue,
		ambiguousImageIssue.Id():          ambiguousImageIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		missingStdlibIssue.Id():           missingStdlibIssue,
		symlinkCollisionIssue.Id():        symlinkCollisionIssue,
		remoteSyncFailedIssue.Id():        remoteSyncFailedIssue,
		nestedContainerIssue.Id():         nestedContainerIssue,
		customImageBuildFailedIssue.Id():  customImageBuildFailedIssue,
	}
)

// Values returns every catalog page ordered by id.
func Values() []*Issue {
	values := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		values = append(values, i)
	}
	slices.SortFunc(values, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return values
}

// Get returns the catalog page for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
