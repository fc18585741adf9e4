// Package kmain runs the memory bring-up sequence: it prepares the frame
// allocator, builds the kernel page directory, turns paging on and then
// exercises the allocator through the recursive mapping.
package kmain

import (
	"gopher386/config"
	"gopher386/kernel"
	"gopher386/kernel/klog"
	"gopher386/kernel/mm"
	"gopher386/kernel/mm/pmm"
	"gopher386/kernel/mm/vmm"

	units "github.com/docker/go-units"
	"github.com/phuslu/log"
	"github.com/pkg/errors"
)

// Translation is the outcome of translating a single virtual address.
type Translation struct {
	VirtAddr uintptr
	PhysAddr uintptr
	Mapped   bool
}

// RegionReport describes how an identity-mapped region was installed.
type RegionReport struct {
	Name   string
	Result vmm.MapResult
}

// ExerciseReport describes the allocation that was mapped and verified
// after paging was enabled.
type ExerciseReport struct {
	VirtAddr uintptr
	Frames   []uintptr
	Result   vmm.MapResult
	Checks   []Translation
}

// Report summarizes a completed bring-up.
type Report struct {
	// Allocator is the frame allocator that was initialized; it remains
	// usable after Boot returns.
	Allocator *pmm.Allocator

	// FreeAtBoot is the free frame count right after initialization and
	// FreeAtExit the count once the exercise frames were released.
	FreeAtBoot int
	FreeAtExit int

	Regions  []RegionReport
	Exercise ExerciseReport
	Probes   []Translation
	Paging   vmm.Stats
}

// Boot runs the bring-up sequence for the supplied machine:
//
//  1. initialize the frame allocator
//  2. place the page directory and table pool
//  3. identity map every configured region in order
//  4. install the recursive mapping, load the directory, enable paging
//  5. allocate the exercise frames, map them and verify the mapping
//  6. release the exercise frames and translate the probe addresses
//
// Any failure aborts the sequence.
func Boot(cfg *config.Machine, logger *log.Logger) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid machine")
	}

	alloc, err := frameAllocator(cfg.Frames)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Allocator:  alloc,
		FreeAtBoot: alloc.FreeCount(),
	}
	logger.Info().
		Int("frames", alloc.Capacity()).
		Str("frame_size", units.BytesSize(float64(alloc.FrameSize()))).
		Str("base", klog.Addr(uintptr(cfg.Frames.Base))).
		Msg("frame allocator ready")

	if kerr := vmm.Init(cfg.Paging.Layout()); kerr != nil {
		return nil, errors.Wrap(kerr, "placing paging structures")
	}
	pd := vmm.KernelDirectory()
	logger.Info().
		Str("directory", klog.Addr(pd.Address())).
		Str("table_pool", klog.Addr(uintptr(cfg.Paging.TablePool))).
		Int("tables", cfg.Paging.Tables).
		Msg("paging arena ready")

	for _, region := range cfg.Regions {
		res, kerr := vmm.IdentityMapRange(uintptr(region.Start), uintptr(region.End), pd)
		report.Regions = append(report.Regions, RegionReport{Name: region.Name, Result: res})
		if kerr != nil {
			logger.Error().Str("region", region.Name).Int("failed_pages", res.FailedPages()).Msg(kerr.Message)
			return report, errors.Wrapf(kerr, "identity mapping region %q", region.Name)
		}
		logger.Debug().
			Str("region", region.Name).
			Str("start", klog.Addr(res.Start)).
			Int("pages", res.Mapped).
			Msg("identity mapped")
	}

	if kerr := enablePaging(pd); kerr != nil {
		return report, errors.Wrap(kerr, "enabling paging")
	}
	logger.Info().Str("cr3", klog.Addr(pd.Address())).Msg("paging enabled")

	if err := exercise(cfg.Exercise, alloc, pd, report, logger); err != nil {
		return report, err
	}
	report.FreeAtExit = alloc.FreeCount()

	for _, addr := range cfg.Probe {
		probe, err := Probe(uintptr(addr))
		if err != nil {
			return report, err
		}
		report.Probes = append(report.Probes, probe)
		logTranslation(logger, "probe", probe)
	}

	report.Paging = vmm.GetStats()
	logger.Info().
		Int("free_frames", report.FreeAtExit).
		Int("tables_used", report.Paging.TablesUsed).
		Int("tables_capacity", report.Paging.TablesCapacity).
		Msg("bring-up complete")

	return report, nil
}

// frameAllocator returns the package-level allocator when the pool matches
// its static geometry and a dedicated allocator otherwise.
func frameAllocator(pool config.FramePool) (*pmm.Allocator, error) {
	if pool.Count == pmm.PoolSize && uintptr(pool.Size) == pmm.FrameSize && pool.Base == 0 {
		pmm.Init()
		return pmm.Default(), nil
	}

	alloc, kerr := pmm.NewAllocator(pool.Count, uintptr(pool.Size), uintptr(pool.Base))
	if kerr != nil {
		return nil, errors.Wrap(kerr, "creating frame allocator")
	}
	alloc.Init()
	return alloc, nil
}

func enablePaging(pd *vmm.PageDirectory) *kernel.Error {
	if err := pd.InstallRecursiveMapping(); err != nil {
		return err
	}
	if err := vmm.LoadDirectory(pd); err != nil {
		return err
	}
	return vmm.EnablePaging()
}

// exercise allocates the configured number of frames, maps them at the
// configured virtual address and checks that the first and last mapped
// pages translate to the expected frames. Whatever the outcome, every page
// that got mapped is unmapped before the frames are released.
func exercise(cfg config.Exercise, alloc *pmm.Allocator, pd *vmm.PageDirectory, report *Report, logger *log.Logger) (err error) {
	if cfg.Frames == 0 {
		return nil
	}

	run, kerr := alloc.Allocate(cfg.Frames)
	if kerr != nil {
		return errors.Wrapf(kerr, "allocating %d exercise frames", cfg.Frames)
	}

	ex := &report.Exercise
	defer func() {
		if relErr := release(alloc, run, &ex.Result); relErr != nil {
			logger.Error().Err(relErr).Msg("cannot release exercise frames")
			if err == nil {
				err = relErr
			}
		}
	}()

	ex.VirtAddr = uintptr(cfg.VirtAddr)
	ex.Frames = run.Addresses()
	logger.Info().
		Int("frames", run.Len()).
		Int("free_frames", alloc.FreeCount()).
		Msg("exercise frames allocated")

	res, kerr := vmm.MapPages(ex.VirtAddr, run, pd)
	ex.Result = res
	if kerr != nil {
		logger.Error().Int("failed_pages", res.FailedPages()).Msg(kerr.Message)
		return errors.Wrap(kerr, "mapping exercise frames")
	}

	var (
		frameSize = run.FrameSize()
		lastPage  = ex.VirtAddr + uintptr(run.Len())*frameSize - mm.PageSize
		lastFrame = ex.Frames[len(ex.Frames)-1]
	)
	for _, expect := range []Translation{
		{VirtAddr: ex.VirtAddr, PhysAddr: ex.Frames[0], Mapped: true},
		{VirtAddr: lastPage, PhysAddr: lastFrame + frameSize - mm.PageSize, Mapped: true},
	} {
		got, err := Probe(expect.VirtAddr)
		if err != nil {
			return err
		}
		ex.Checks = append(ex.Checks, got)
		logTranslation(logger, "exercise", got)

		if got != expect {
			return errors.Errorf("exercise: %s translated to %s, expected %s",
				klog.Addr(expect.VirtAddr), klog.Addr(got.PhysAddr), klog.Addr(expect.PhysAddr))
		}
	}
	return nil
}

// release unmaps every page recorded as mapped in res and then hands run
// back to alloc.
func release(alloc *pmm.Allocator, run pmm.Run, res *vmm.MapResult) error {
	var kerr *kernel.Error
	res.VisitMapped(func(virtAddr uintptr) bool {
		kerr = vmm.Unmap(virtAddr)
		return kerr == nil
	})
	if kerr != nil {
		// The frames stay allocated while any of them is still reachable.
		return errors.Wrap(kerr, "unmapping exercise frames")
	}

	if kerr = alloc.Free(run); kerr != nil {
		return errors.Wrap(kerr, "releasing exercise frames")
	}
	return nil
}

// Probe translates virtAddr through the active page directory. An unmapped
// address is not an error.
func Probe(virtAddr uintptr) (Translation, error) {
	physAddr, kerr := vmm.Translate(virtAddr)
	switch kerr {
	case nil:
		return Translation{VirtAddr: virtAddr, PhysAddr: physAddr, Mapped: true}, nil
	case vmm.ErrInvalidMapping:
		return Translation{VirtAddr: virtAddr}, nil
	default:
		return Translation{}, errors.Wrapf(kerr, "translating %s", klog.Addr(virtAddr))
	}
}

func logTranslation(logger *log.Logger, kind string, t Translation) {
	if !t.Mapped {
		logger.Warn().Str("kind", kind).Str("virt", klog.Addr(t.VirtAddr)).Msg("not mapped")
		return
	}
	logger.Info().
		Str("kind", kind).
		Str("virt", klog.Addr(t.VirtAddr)).
		Str("phys", klog.Addr(t.PhysAddr)).
		Msg("translated")
}
