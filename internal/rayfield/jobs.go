package rayfield

import "sync/atomic"

// JobCounter hands out ray jobs to workers: a single shared atomically
// incremented counter with a fixed upper bound. No work stealing, no
// priority; a worker pulls the next job only after finishing its ray.
type JobCounter struct {
	next  atomic.Int64
	total int64
}

// NewJobCounter bounds the counter at total jobs.
func NewJobCounter(total int64) *JobCounter {
	return &JobCounter{total: total}
}

// Next claims the next job id. ok is false once the counter is exhausted;
// the worker should exit.
func (j *JobCounter) Next() (id int64, ok bool) {
	id = j.next.Add(1) - 1
	return id, id < j.total
}

// Total reports the job bound.
func (j *JobCounter) Total() int64 { return j.total }

// TotalJobs computes the job count for a run: one job per (source,
// launch-angle) combination populated by the geometry mode.
func TotalJobs(mode GeomMode, pos *Position, ang *Angles) int64 {
	nAlpha := int64(ang.NAlpha())
	if ang.ISingleAlpha >= 0 {
		nAlpha = 1
	}
	n := int64(pos.NSz()) * nAlpha
	if mode != Geom2D {
		n *= int64(pos.NSx()) * int64(pos.NSy()) * int64(ang.NBeta())
	}
	return n
}

// JobIndices maps a job id onto a LaunchIndex, honoring the single-angle
// selection. ok is false for ids at or past the job bound.
func JobIndices(job int64, mode GeomMode, pos *Position, ang *Angles) (LaunchIndex, bool) {
	if job < 0 || job >= TotalJobs(mode, pos, ang) {
		return LaunchIndex{}, false
	}
	var li LaunchIndex
	nAlpha := int64(ang.NAlpha())
	if ang.ISingleAlpha >= 0 {
		li.IAlpha = ang.ISingleAlpha
	} else {
		li.IAlpha = int32(job % nAlpha)
		job /= nAlpha
	}
	li.ISz = int32(job % int64(pos.NSz()))
	job /= int64(pos.NSz())
	if mode != Geom2D {
		li.IBeta = int32(job % int64(ang.NBeta()))
		job /= int64(ang.NBeta())
		li.ISy = int32(job % int64(pos.NSy()))
		job /= int64(pos.NSy())
		li.ISx = int32(job)
	}
	return li, true
}
