package main

import (
	md2pptx "github.com/alnah/go-md2pptx"
)

// converterPool adapts md2pptx.ConverterPool to the CLI Pool interface.
// The library pool hands out concrete *Converter values; the CLI works
// against the Converter interface so tests can substitute mocks.
type converterPool struct {
	inner *md2pptx.ConverterPool
}

// newConverterPool is the production poolFactory.
func newConverterPool(size int, opts ...md2pptx.Option) Pool {
	return &converterPool{inner: md2pptx.NewConverterPool(size, opts...)}
}

// Acquire gets a converter, creating one lazily if needed.
func (p *converterPool) Acquire() (Converter, error) {
	return p.inner.Acquire()
}

// Release returns a converter to the pool.
func (p *converterPool) Release(conv Converter) {
	if c, ok := conv.(*md2pptx.Converter); ok {
		p.inner.Release(c)
	}
}

// Size returns the pool capacity.
func (p *converterPool) Size() int {
	return p.inner.Size()
}

// Close releases all browser resources.
func (p *converterPool) Close() error {
	return p.inner.Close()
}
