package types

// AutoTagLogic is the comparison applied to a result's JSON field to
// decide whether (and what) to tag (spec §4.6).
type AutoTagLogic string

const (
	LogicExists          AutoTagLogic = "Exists"
	LogicEqual           AutoTagLogic = "Equal"
	LogicNot             AutoTagLogic = "Not"
	LogicGreater         AutoTagLogic = "Greater"
	LogicGreaterOrEqual  AutoTagLogic = "GreaterOrEqual"
	LogicLesser          AutoTagLogic = "Lesser"
	LogicLesserOrEqual   AutoTagLogic = "LesserOrEqual"
	LogicIn              AutoTagLogic = "In"
	LogicNotIn           AutoTagLogic = "NotIn"
)

// AutoTagRule drives one entry of Image.output_collection.auto_tag
// (spec §3 Image, §4.6).
type AutoTagRule struct {
	Logic  AutoTagLogic
	Value  interface{} // comparison operand; nil for Exists
	Rename string      // overrides the tag key when non-empty
}

// OutputHandler names the result-interpretation strategy an image
// declares (spec §3 Image.output_collection.handler).
type OutputHandler string

// OutputCollection describes how a job's upload is interpreted
// (spec §3 Image.output_collection).
type OutputCollection struct {
	Handler      OutputHandler
	ResultFiles  bool
	ResultNames  []string
	ClearNames   bool
	Children     bool
	AutoTag      map[string]AutoTagRule
	Groups       []string
}

// Result is a completed job's structured output (spec §3 Output).
type Result struct {
	ID            string
	Kind          TagKind
	Key           string // sha256 or repo url
	Groups        map[string]struct{}
	Tool          string
	ToolVersion   string
	Cmd           string
	ResultJSON    []byte // JSON or raw-string payload
	DisplayType   string
	Files         []string
	Children      map[string]string
	UploadedBy    string
}
