package reduce

import (
	"github.com/chunleili/paraAlgo"
)

// SourceArray is the immutable device-resident input of a reduction. It is
// populated once from host memory; reducers only ever read it.
type SourceArray struct {
	arr *paraalgo.Int32Array
}

// NewSourceArray uploads host into device memory owned by ctx.
func NewSourceArray(ctx *paraalgo.Context, host []int32) (*SourceArray, error) {
	arr, err := paraalgo.NewInt32ArrayFromHost(ctx, host)
	if err != nil {
		return nil, err
	}
	return &SourceArray{arr: arr}, nil
}

// Len returns the number of elements.
func (s *SourceArray) Len() int {
	return s.arr.Len()
}

// Context returns the context holding the array.
func (s *SourceArray) Context() *paraalgo.Context {
	return s.arr.Context()
}

// CopyToHost copies the first len(host) elements into host.
func (s *SourceArray) CopyToHost(host []int32) error {
	return s.arr.CopyToHost(host)
}

// Free releases the device memory. The array must not be reduced again.
func (s *SourceArray) Free() error {
	return s.arr.Free()
}

func (s *SourceArray) data() []int32 {
	return s.arr.Data()
}
