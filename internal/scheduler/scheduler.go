// Package scheduler submits and inspects cluster batch jobs. The interface is
// what reconcile, submit, and monitor consume; the Slurm implementation shells
// out to sbatch and squeue.
package scheduler

import "context"

// Request describes one batch job to submit. Command is the full entry
// command line to run on the allocated node.
type Request struct {
	Name      string
	Partition string
	Account   string
	Gres      string
	CPUs      int
	MemoryGB  int
	Walltime  string
	Command   []string
	LogPath   string
}

// Job identifies a submitted job.
type Job struct {
	ID   string
	Name string
}

// Filter narrows a queue listing.
type Filter struct {
	NamePrefix string
	User       string
}

// JobStatus is one queue entry.
type JobStatus struct {
	ID        string
	Name      string
	State     string
	Partition string
	Elapsed   string
	Reason    string
}

// Client is the scheduler operations surface.
type Client interface {
	Submit(ctx context.Context, req Request) (Job, error)
	Queue(ctx context.Context, filter Filter) ([]JobStatus, error)
}
