package panel

import (
	"fmt"
	"strings"
)

// Carousel shows one module of an instrument group at a time
type Carousel struct {
	names    []string
	fallback string
	index    int
}

// NewCarousel creates a carousel over the given module names. A group
// always has at least one module; blank names fall back to
// "<fallback> <position>".
func NewCarousel(fallback string, names []string) *Carousel {
	c := &Carousel{
		names:    append([]string(nil), names...),
		fallback: fallback,
	}
	if len(c.names) == 0 {
		c.names = []string{""}
	}
	return c
}

// Len returns the number of modules in the group
func (c *Carousel) Len() int {
	return len(c.names)
}

// Index returns the visible module
func (c *Carousel) Index() int {
	return c.index
}

// Name returns the caption of the visible module
func (c *Carousel) Name() string {
	if name := strings.TrimSpace(c.names[c.index]); name != "" {
		return name
	}
	return fmt.Sprintf("%s %d", c.fallback, c.index+1)
}

// Next advances, wrapping past the last module to the first
func (c *Carousel) Next() int {
	c.index = (c.index + 1) % len(c.names)
	return c.index
}

// Prev retreats, wrapping before the first module to the last
func (c *Carousel) Prev() int {
	c.index = (c.index - 1 + len(c.names)) % len(c.names)
	return c.index
}

// Show jumps to a module by position
func (c *Carousel) Show(index int) error {
	if index < 0 || index >= len(c.names) {
		return fmt.Errorf("module %d out of range [0, %d)", index, len(c.names))
	}
	c.index = index
	return nil
}

func (c *Carousel) view() CarouselView {
	return CarouselView{Index: c.index, Count: len(c.names), Name: c.Name()}
}
