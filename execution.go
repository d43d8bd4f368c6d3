package paraalgo

import (
	"fmt"
	"sync"
)

// launchInternal implements the core kernel execution logic
func (ctx *Context) launchInternal(
	kernelFunc func(ThreadID, ...interface{}),
	grid, block Dim3,
	stream *Stream,
	args ...interface{},
) error {
	if grid.X < 0 || grid.Y < 0 || grid.Z < 0 || block.X < 0 || block.Y < 0 || block.Z < 0 {
		return NewInvalidArgError("Launch", fmt.Sprintf("negative launch dimensions grid=%v block=%v", grid, block))
	}
	if block.normalized().Size() > MaxThreadsPerBlock {
		return NewInvalidArgError("Launch", fmt.Sprintf("block of %d threads exceeds %d", block.normalized().Size(), MaxThreadsPerBlock))
	}

	grid, block = grid.normalized(), block.normalized()
	gridSize := grid.Size()
	blockSize := block.Size()

	// Submit an empty task to maintain stream ordering
	if gridSize == 0 || blockSize == 0 {
		stream.Submit(func() error { return nil })
		return nil
	}

	numWorkers := ctx.workers
	if gridSize < numWorkers {
		numWorkers = gridSize
	}

	// 1D blocks skip the per-thread index division
	flat := block.Y == 1 && block.Z == 1

	// Each worker processes a contiguous range of blocks
	blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers

	stream.Submit(func() error {
		var (
			wg       sync.WaitGroup
			failOnce sync.Once
			failure  error
		)
		wg.Add(numWorkers)

		for workerID := 0; workerID < numWorkers; workerID++ {
			startBlock := workerID * blocksPerWorker
			endBlock := startBlock + blocksPerWorker
			if endBlock > gridSize {
				endBlock = gridSize
			}

			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						failOnce.Do(func() {
							failure = NewExecutionError("Kernel", fmt.Sprintf("kernel panicked: %v", r), nil)
						})
					}
				}()

				for blockID := startBlock; blockID < endBlock; blockID++ {
					blockIdx := linearTo3D(blockID, grid)

					// Threads within a block run sequentially on the worker
					for threadID := 0; threadID < blockSize; threadID++ {
						threadIdx := Dim3{X: threadID}
						if !flat {
							threadIdx = linearTo3D(threadID, block)
						}
						kernelFunc(ThreadID{
							BlockIdx:  blockIdx,
							ThreadIdx: threadIdx,
							BlockDim:  block,
							GridDim:   grid,
						}, args...)
					}
				}
			}()
		}

		wg.Wait()
		return failure
	})

	return nil
}

// ParallelFor runs body once for every index in [0, n) across the
// context's workers and blocks until every lane has finished. The return
// is the round barrier: all writes made by body are visible to the caller.
// Lanes carry no ordering guarantee among themselves.
func (ctx *Context) ParallelFor(n int, body func(i int)) error {
	if n <= 0 {
		return nil
	}

	block := Dim3{X: DefaultBlockSize, Y: 1, Z: 1}
	grid := Dim3{X: (n + DefaultBlockSize - 1) / DefaultBlockSize, Y: 1, Z: 1}

	if err := ctx.Launch(rangeKernel{n: n, body: body}, grid, block); err != nil {
		return err
	}
	return ctx.defaultStream.Synchronize()
}

// rangeKernel runs body for each global X index below n. The last block
// may extend past n.
type rangeKernel struct {
	n    int
	body func(i int)
}

func (k rangeKernel) Execute(tid ThreadID, args ...interface{}) {
	if i := tid.Global(); i < k.n {
		k.body(i)
	}
}

// normalized treats unset Y and Z extents as 1, matching CUDA's dim3.
func (d Dim3) normalized() Dim3 {
	if d.Y == 0 {
		d.Y = 1
	}
	if d.Z == 0 {
		d.Z = 1
	}
	return d
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}
