package rule

import (
	"github.com/dnldd/stratus/shared"
	"github.com/tidwall/gjson"
)

// ParseSet parses a rule set from the provided json document. The document
// is an array of condition nodes:
//
//	{"cmp": {"op": ">", "lhs": {"field": "close"}, "rhs": {"indicator": "sma20"}}}
//	{"and": [ ...nodes ]}
//	{"or": [ ...nodes ]}
//	{"not": node}
//
// Operands are one of {"indicator": id}, {"field": name} or {"value": n}.
func ParseSet(doc string) (*Set, error) {
	if !gjson.Valid(doc) {
		return nil, shared.ConfigurationError("rule set is not valid json")
	}

	data := gjson.Parse(doc)
	if !data.IsArray() {
		return nil, shared.ConfigurationError("rule set must be a json array")
	}

	nodes := data.Array()
	set := &Set{Rules: make([]Rule, 0, len(nodes))}
	for idx := range nodes {
		r, err := parseNode(nodes[idx])
		if err != nil {
			return nil, err
		}
		set.Rules = append(set.Rules, r)
	}

	return set, nil
}

// parseNode parses a single condition node.
func parseNode(node gjson.Result) (Rule, error) {
	if !node.IsObject() {
		return nil, shared.ConfigurationError("condition must be a json object, got %s", node.Raw)
	}

	if cmp := node.Get("cmp"); cmp.Exists() {
		return parseComparison(cmp)
	}

	if and := node.Get("and"); and.Exists() {
		rules, err := parseNodeList(and)
		if err != nil {
			return nil, err
		}
		return And{Rules: rules}, nil
	}

	if or := node.Get("or"); or.Exists() {
		rules, err := parseNodeList(or)
		if err != nil {
			return nil, err
		}
		return Or{Rules: rules}, nil
	}

	if not := node.Get("not"); not.Exists() {
		inner, err := parseNode(not)
		if err != nil {
			return nil, err
		}
		return Not{Rule: inner}, nil
	}

	return nil, shared.ConfigurationError("unknown condition node: %s", node.Raw)
}

// parseNodeList parses the children of an and/or node.
func parseNodeList(list gjson.Result) ([]Rule, error) {
	if !list.IsArray() {
		return nil, shared.ConfigurationError("expected a json array of conditions, got %s", list.Raw)
	}

	nodes := list.Array()
	rules := make([]Rule, 0, len(nodes))
	for idx := range nodes {
		r, err := parseNode(nodes[idx])
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}

	return rules, nil
}

// parseComparison parses a comparison node.
func parseComparison(cmp gjson.Result) (Rule, error) {
	op := cmp.Get("op")
	if !op.Exists() {
		return nil, shared.ConfigurationError("comparison missing operator: %s", cmp.Raw)
	}

	left, err := parseOperand(cmp.Get("lhs"))
	if err != nil {
		return nil, err
	}

	right, err := parseOperand(cmp.Get("rhs"))
	if err != nil {
		return nil, err
	}

	return Comparison{Op: op.String(), Left: left, Right: right}, nil
}

// parseOperand parses a comparison operand.
func parseOperand(operand gjson.Result) (Operand, error) {
	if !operand.IsObject() {
		return nil, shared.ConfigurationError("operand must be a json object, got %s", operand.Raw)
	}

	if ind := operand.Get("indicator"); ind.Exists() {
		return IndicatorRef{ID: ind.String()}, nil
	}

	if field := operand.Get("field"); field.Exists() {
		return BarField{Field: field.String()}, nil
	}

	if value := operand.Get("value"); value.Exists() {
		return Literal{Value: value.Float()}, nil
	}

	return nil, shared.ConfigurationError("unknown operand: %s", operand.Raw)
}
