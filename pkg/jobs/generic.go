package jobs

import "github.com/thorium-sh/thorium/pkg/types"

// GenericJob is the flattened view of a Job handed to a worker on
// claim: command-line shaped, with Samples/Repos/Ephemeral resolved to
// the paths a running container expects (spec §4.5 "claim response").
type GenericJob struct {
	ID       string
	Image    string
	Args     []string
	Deadline int64
	Samples  []string
	Repos    []types.RepoDependency
	Ephemeral       []string
	ParentEphemeral []string
	Checkpoint      string
}

// ToGeneric renders a Job's structured Args into the positional/flag
// command line a worker execs, the way job-manager flattens a Workload
// spec before handing it to a pod template.
func ToGeneric(j *types.Job) *GenericJob {
	var argv []string
	argv = append(argv, j.Args.Positional...)
	for _, sw := range j.Args.Switches {
		argv = append(argv, "--"+sw)
	}
	for k, v := range j.Args.Kwargs {
		argv = append(argv, "--"+k, v)
	}
	for k, v := range j.Args.Opts {
		argv = append(argv, "--"+k+"="+v)
	}
	return &GenericJob{
		ID:              j.ID,
		Image:           j.Image,
		Args:            argv,
		Deadline:        j.Deadline.Unix(),
		Samples:         j.Samples,
		Repos:           j.Repos,
		Ephemeral:       j.Ephemeral,
		ParentEphemeral: j.ParentEphemeral,
		Checkpoint:      j.Checkpoint,
	}
}
