// Package output implements spec §4.6: ingesting a completed job's
// Result and applying Image.output_collection.auto_tag rules. Grounded
// on apiserver/pkg/handlers/cd-handlers's manifest-interpretation step
// (decode, validate against the owning resource's declared shape,
// persist), adapted here to result-JSON vs. AutoTagRule matching.
package output

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/tags"
	"github.com/thorium-sh/thorium/pkg/types"
)

// Store is the persistence contract this package needs.
type Store interface {
	GetResult(id string) (*types.Result, error)
	PutResult(r *types.Result) error
	ListResultsByKey(kind types.TagKind, key string) ([]*types.Result, error)
}

type Service struct {
	store Store
	tags  *tags.Service
}

func New(store Store, tagSvc *tags.Service) *Service {
	return &Service{store: store, tags: tagSvc}
}

// Ingest implements spec §4.6 "ingest_output": persist the Result, then
// apply every configured AutoTagRule in Image.output_collection. Each
// match is applied through tags.Service.Tag, which is itself the event
// producer of spec §4.7 for result-derived tags, so a matching rule
// chains into the Trigger Evaluator the same way a manually-applied tag
// does.
func (s *Service) Ingest(img *types.Image, r *types.Result) error {
	r.ID = uuid.NewString()
	if err := s.store.PutResult(r); err != nil {
		return err
	}
	fields, err := decodeFields(r.ResultJSON)
	if err != nil {
		return thoriumerrors.Wrap(err, "decoding result JSON for auto-tag evaluation")
	}
	for key, rule := range img.OutputCollection.AutoTag {
		value, present := fields[key]
		tagKey := key
		if rule.Rename != "" {
			tagKey = rule.Rename
		}
		matched, tagValue, err := evaluate(rule, value, present)
		if err != nil {
			return thoriumerrors.Wrap(err, "evaluating auto-tag rule "+key)
		}
		if !matched {
			continue
		}
		for g := range r.Groups {
			if err := s.tags.Tag(r.Kind, g, tagKey, tagValue, r.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeFields(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// evaluate implements spec §4.6's AutoTagLogic table. Greater/Lesser/
// In/NotIn against non-numeric/non-enumerable operands is the Open
// Question of spec §8 resolved in DESIGN.md: image registration does
// not check rule operands, so such a rule is rejected here with a
// Validation error when a result is ingested.
func evaluate(rule types.AutoTagRule, value interface{}, present bool) (matched bool, tagValue string, err error) {
	switch rule.Logic {
	case types.LogicExists:
		return present, fmt.Sprintf("%v", value), nil
	case types.LogicEqual:
		if !present {
			return false, "", nil
		}
		return fmt.Sprintf("%v", value) == fmt.Sprintf("%v", rule.Value), fmt.Sprintf("%v", value), nil
	case types.LogicNot:
		if !present {
			return true, "", nil
		}
		return fmt.Sprintf("%v", value) != fmt.Sprintf("%v", rule.Value), fmt.Sprintf("%v", value), nil
	case types.LogicGreater, types.LogicGreaterOrEqual, types.LogicLesser, types.LogicLesserOrEqual:
		if !present {
			return false, "", nil
		}
		a, aok := toFloat(value)
		b, bok := toFloat(rule.Value)
		if !aok || !bok {
			return false, "", thoriumerrors.NewValidation("numeric comparison requires numeric operands")
		}
		var ok bool
		switch rule.Logic {
		case types.LogicGreater:
			ok = a > b
		case types.LogicGreaterOrEqual:
			ok = a >= b
		case types.LogicLesser:
			ok = a < b
		case types.LogicLesserOrEqual:
			ok = a <= b
		}
		return ok, fmt.Sprintf("%v", value), nil
	case types.LogicIn, types.LogicNotIn:
		if !present {
			return false, "", nil
		}
		set, ok := rule.Value.([]interface{})
		if !ok {
			return false, "", thoriumerrors.NewValidation("In/NotIn comparison requires a list operand")
		}
		found := false
		for _, v := range set {
			if fmt.Sprintf("%v", v) == fmt.Sprintf("%v", value) {
				found = true
				break
			}
		}
		if rule.Logic == types.LogicNotIn {
			found = !found
		}
		return found, fmt.Sprintf("%v", value), nil
	default:
		return false, "", thoriumerrors.NewValidation("unknown auto-tag logic " + string(rule.Logic))
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
