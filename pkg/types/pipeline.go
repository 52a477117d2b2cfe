package types

// Stage is the set of image names that run in parallel within one
// position of a Pipeline's order (spec §3 Pipeline, GLOSSARY "Stage").
type Stage map[string]struct{}

func NewStage(images ...string) Stage {
	s := make(Stage, len(images))
	for _, img := range images {
		s[img] = struct{}{}
	}
	return s
}

// PipelineBan is a ban scoped to a Pipeline (spec §3 Ban).
type PipelineBan = Ban

// Pipeline is an ordered composition of image stages (spec §3 Pipeline).
type Pipeline struct {
	Group       string
	Name        string
	Creator     string
	Order       []Stage
	SLASeconds  int64
	Triggers    map[string]EventTrigger
	Description string
	Bans        map[string]PipelineBan
}

// Banned reports whether the pipeline currently refuses new reactions
// (spec §3 Pipeline.bans invariant; in-flight reactions are unaffected).
func (p *Pipeline) Banned() bool { return len(p.Bans) > 0 }

// Images returns the set of every image name referenced anywhere in
// Order, used by the Pipeline update path to diff old vs new image
// sets for Image.UsedBy maintenance (spec §9).
func (p *Pipeline) Images() map[string]struct{} {
	out := map[string]struct{}{}
	for _, stage := range p.Order {
		for img := range stage {
			out[img] = struct{}{}
		}
	}
	return out
}

// StageCount returns the number of stages.
func (p *Pipeline) StageCount() int { return len(p.Order) }
