package types

import "time"

// JobStatus is the per-job lifecycle state (spec §3, §4.5).
type JobStatus string

const (
	JobCreated   JobStatus = "Created"
	JobRunning   JobStatus = "Running"
	JobCompleted JobStatus = "Completed"
	JobFailed    JobStatus = "Failed"
	JobSleeping  JobStatus = "Sleeping"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one image execution within a stage of a reaction (spec §3,
// GLOSSARY "Job"). The raw form is persisted; the generic form handed
// to workers is produced by pkg/jobs's ToGeneric.
type Job struct {
	ID         string
	Reaction   string
	Group      string
	Pipeline   string
	Stage      int
	Creator    string
	Args       GenericJobArgs
	Status     JobStatus
	Deadline   time.Time
	Worker     string // empty when unclaimed
	Parent     string
	Generator  bool
	Scaler     ScalerKind

	Samples         []string
	Ephemeral       []string
	ParentEphemeral []string
	Repos           []RepoDependency
	TriggerDepth    int

	// Checkpoint is set by a generator's sleep() call and rendered as
	// "--checkpoint <data>" onto Args when the job re-enters Created
	// (spec §4.4 Generators).
	Checkpoint string

	Image string

	CreatedAt time.Time
}

// Requisition is the scheduling grouping key of spec §4.9 / GLOSSARY.
type Requisition struct {
	User     string
	Group    string
	Pipeline string
	Stage    int
	Scaler   ScalerKind
}

// Requisition derives this job's scheduling group.
func (j *Job) Requisition() Requisition {
	return Requisition{
		User:     j.Creator,
		Group:    j.Group,
		Pipeline: j.Pipeline,
		Stage:    j.Stage,
		Scaler:   j.Scaler,
	}
}

// WorkerStatus is the lifecycle state of a spawned execution slot
// (spec §3 Worker).
type WorkerStatus string

const (
	WorkerSpawning WorkerStatus = "Spawning"
	WorkerRunning  WorkerStatus = "Running"
	WorkerShutdown WorkerStatus = "Shutdown"
)

// Worker is a spawned execution slot bound at most to one job
// (spec §3 Worker, GLOSSARY).
type Worker struct {
	Name     string
	Cluster  string
	Node     string
	Scaler   ScalerKind
	User     string
	Group    string
	Pipeline string
	Stage    int
	Pool     string
	Resources ImageResources
	Status    WorkerStatus
	Job       string // empty until bound

	SpawnedAt time.Time
}

// Requisition derives this worker's scheduling group, mirroring Job's
// method of the same name so the scaler can key both demand and supply
// off the same tuple.
func (w *Worker) Requisition() Requisition {
	return Requisition{User: w.User, Group: w.Group, Pipeline: w.Pipeline, Stage: w.Stage, Scaler: w.Scaler}
}

// Node is a scheduler-visible host (spec §3 Node).
type Node struct {
	Cluster   string
	Name      string
	Scaler    ScalerKind
	Total     ImageResources
	Available ImageResources
	Workers   map[string]*Worker
	Healthy   bool
	Heartbeat time.Time
}
