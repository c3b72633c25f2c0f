// SPDX-License-Identifier: MPL-2.0

package image

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultRepository is the registry path built-in images live under.
	DefaultRepository = "ghcr.io/cross-rs"
	// DefaultTag is the tag of built-in images.
	DefaultTag = "main"
)

//go:embed catalog.toml
var catalogTOML []byte

type (
	// ProvidedImage is one row of the built-in catalog.
	ProvidedImage struct {
		// Target is usually a target triple; "zig" names the image used by
		// the alternative toolchain.
		Target    string
		Platforms []ImagePlatform
		// Sub names a sub-variant such as "centos"; empty for the default image.
		Sub string
	}

	// Catalog is the immutable list of built-in images.
	Catalog struct {
		repository string
		tag        string
		images     []ProvidedImage
	}

	catalogFile struct {
		Repository string `toml:"repository"`
		Tag        string `toml:"tag"`
		Images     []struct {
			Target    string   `toml:"target"`
			Sub       string   `toml:"sub"`
			Platforms []string `toml:"platforms"`
		} `toml:"image"`
	}
)

// DefaultCatalog returns the catalog embedded in the binary, parsed once.
var DefaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(catalogTOML)
})

// ParseCatalog decodes a TOML catalog manifest. Every row must declare at
// least one platform.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode image catalog: %w", err)
	}

	c := &Catalog{
		repository: file.Repository,
		tag:        file.Tag,
		images:     make([]ProvidedImage, 0, len(file.Images)),
	}
	if c.repository == "" {
		c.repository = DefaultRepository
	}
	if c.tag == "" {
		c.tag = DefaultTag
	}

	for i, row := range file.Images {
		if row.Target == "" {
			return nil, fmt.Errorf("image catalog row %d: missing target", i)
		}
		if len(row.Platforms) == 0 {
			return nil, fmt.Errorf("image catalog row %d (%s): empty platform list", i, row.Target)
		}
		img := ProvidedImage{Target: row.Target, Sub: row.Sub}
		for _, s := range row.Platforms {
			p, err := ParseImagePlatform(s)
			if err != nil {
				return nil, fmt.Errorf("image catalog row %d (%s): %w", i, row.Target, err)
			}
			img.Platforms = append(img.Platforms, p)
		}
		c.images = append(c.images, img)
	}
	return c, nil
}

// NewCatalog builds a catalog from rows, for tests and embedders.
func NewCatalog(repository, tag string, images []ProvidedImage) (*Catalog, error) {
	for _, img := range images {
		if len(img.Platforms) == 0 {
			return nil, fmt.Errorf("image catalog row %s: empty platform list", img.Target)
		}
	}
	return &Catalog{repository: repository, tag: tag, images: slices.Clone(images)}, nil
}

// ImageName renders the full name of the image under repository and tag.
func (p ProvidedImage) ImageName(repository, tag string) string {
	if p.Sub != "" {
		return fmt.Sprintf("%s/%s:%s-%s", repository, p.Target, tag, p.Sub)
	}
	return fmt.Sprintf("%s/%s:%s", repository, p.Target, tag)
}

// Repository returns the registry path of built-in images.
func (c *Catalog) Repository() string { return c.repository }

// Tag returns the tag of built-in images.
func (c *Catalog) Tag() string { return c.tag }

// Images returns every row.
func (c *Catalog) Images() []ProvidedImage {
	return slices.Clone(c.images)
}

// ForTarget returns the rows for name, in catalog order.
func (c *Catalog) ForTarget(name string) []ProvidedImage {
	var out []ProvidedImage
	for _, img := range c.images {
		if img.Target == name {
			out = append(out, img)
		}
	}
	return out
}

// Targets returns the distinct target names with a built-in image, sorted.
func (c *Catalog) Targets() []string {
	var names []string
	for _, img := range c.images {
		if !slices.Contains(names, img.Target) {
			names = append(names, img.Target)
		}
	}
	slices.Sort(names)
	return names
}
