// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"os"
	goruntime "runtime"
	"strconv"
	"time"

	"github.com/xcross/xcross/internal/config"
	"github.com/xcross/xcross/internal/container"
	"github.com/xcross/xcross/internal/dirs"
	"github.com/xcross/xcross/internal/fingerprint"
	"github.com/xcross/xcross/internal/image"
	"github.com/xcross/xcross/internal/mount"
	"github.com/xcross/xcross/internal/target"
	"github.com/xcross/xcross/internal/toolchain"
)

// Build tools the container can run.
const (
	ToolCargo = "cargo"
	ToolXargo = "xargo"
)

// ErrMissingOption is returned when a required Options field is unset.
var ErrMissingOption = errors.New("missing run option")

type (
	// Options are the settings of one build, shared by both executors.
	Options struct {
		Engine    *container.Engine
		Target    target.Triple
		Image     image.Image
		Toolchain *toolchain.Toolchain
		// Config defaults to config.DefaultConfig().
		Config *config.Config
		// UsesXargo runs xargo instead of cargo.
		UsesXargo bool
		Terminal  Terminal
		Streams   container.StreamOptions

		// UID and GID are the ids the build runs as. The container section of
		// the configuration overrides them.
		UID int
		GID int
		// Username is exported to the container as USER when set.
		Username string

		// LookupEnv reads the host environment. Defaults to os.LookupEnv.
		LookupEnv func(string) (string, bool)
		// HostOS is the GOOS of the machine running xcross. Defaults to
		// runtime.GOOS.
		HostOS string
		// Now defaults to time.Now.
		Now func() time.Time
		// Store keeps fingerprints of persistent volumes. Defaults to
		// fingerprint.DefaultStore().
		Store *fingerprint.Store
		// TempDir holds staging trees of incremental copies. Defaults to
		// os.TempDir().
		TempDir string
	}

	// Paths are the directories of one build.
	Paths struct {
		// Dirs are the engine-host paths and their container locations.
		Dirs dirs.Directories
		// Ensured are the same paths as this process sees them. Remote runs
		// copy from these.
		Ensured dirs.Ensured
		// Finder translates extra volume paths. May be nil.
		Finder *mount.MountFinder
	}
)

func (o *Options) validate() error {
	switch {
	case o.Engine == nil:
		return fmt.Errorf("%w: engine", ErrMissingOption)
	case o.Toolchain == nil:
		return fmt.Errorf("%w: toolchain", ErrMissingOption)
	case o.Target == "":
		return fmt.Errorf("%w: target", ErrMissingOption)
	case o.Image.Name == "":
		return fmt.Errorf("%w: image", ErrMissingOption)
	}
	return nil
}

func (o *Options) config() *config.Config {
	if o.Config == nil {
		o.Config = config.DefaultConfig()
	}
	return o.Config
}

func (o *Options) lookupEnv(name string) (string, bool) {
	if o.LookupEnv == nil {
		return os.LookupEnv(name)
	}
	return o.LookupEnv(name)
}

func (o *Options) hostOS() string {
	if o.HostOS == "" {
		return goruntime.GOOS
	}
	return o.HostOS
}

func (o *Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o *Options) store() *fingerprint.Store {
	if o.Store == nil {
		o.Store = fingerprint.DefaultStore()
	}
	return o.Store
}

func (o *Options) tempDir() string {
	if o.TempDir == "" {
		return os.TempDir()
	}
	return o.TempDir
}

// tool returns the build tool the container runs.
func (o *Options) tool() string {
	if o.UsesXargo {
		return ToolXargo
	}
	return ToolCargo
}

// user returns "uid:gid", with the configured overrides applied.
func (o *Options) user() string {
	uid, gid := o.UID, o.GID
	c := o.config().Container
	if c.UID != nil {
		uid = *c.UID
	}
	if c.GID != nil {
		gid = *c.GID
	}
	return strconv.Itoa(uid) + ":" + strconv.Itoa(gid)
}
