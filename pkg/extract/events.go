// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/semfora/pkg/schema"
)

// ioCallNames is a small heuristic table of call names that count as I/O
// for behavioral-risk scoring (spec.md §4.2 step 4). It deliberately
// favors common stdlib/ecosystem names over an exhaustive list; false
// negatives only soften a risk score, they never break correctness.
var ioCallNames = map[string]struct{}{
	"open": {}, "read": {}, "write": {}, "readFile": {}, "writeFile": {},
	"fetch": {}, "query": {}, "exec": {}, "Exec": {}, "Query": {}, "QueryContext": {},
	"ExecContext": {}, "Open": {}, "ReadFile": {}, "WriteFile": {}, "Dial": {},
	"Get": {}, "Post": {}, "request": {}, "axios": {}, "connect": {}, "Connect": {},
	"os.ReadFile": {}, "os.WriteFile": {}, "ioutil.ReadFile": {},
}

func isIOCallName(name string) bool {
	_, ok := ioCallNames[name]
	if ok {
		return true
	}
	lower := strings.ToLower(name)
	for _, frag := range []string{"read", "write", "fetch", "query", "exec", "request", "dial", "connect", "open"} {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// collectEvents is the third AST walk (spec.md §4.2 step 3): collects
// calls, control-flow events, state changes, and await expressions,
// attributing each to the innermost containing candidate symbol or, when
// none contains it, to the file level.
func (w *walker) collectEvents(node *sitter.Node, depth int, inTry bool) {
	t := node.Type()

	if w.grammar.TryLike.Has(t) {
		inTry = true
	}

	cfKind, isControlFlow := w.grammar.ControlFlow[t]
	isTry := !isControlFlow && w.grammar.TryLike.Has(t)
	if isControlFlow || isTry {
		kind := cfKind
		if isTry {
			kind = "try"
		}
		ev := schema.ControlFlowEvent{Kind: kind, Line: w.line(node), Depth: capDepth(depth)}
		if w.grammar.FieldCondition != "" {
			if cond := node.ChildByFieldName(w.grammar.FieldCondition); cond != nil {
				ev.Condition = strings.TrimSpace(cond.Content(w.source))
			}
		}
		w.attachControlFlow(ev)

		// Nesting depth only increases for statements inside the branch's
		// own body; the condition/init clauses sit at the same depth as
		// the branch itself.
		var body *sitter.Node
		if w.grammar.FieldBody != "" {
			body = node.ChildByFieldName(w.grammar.FieldBody)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			c := node.Child(i)
			childDepth := depth
			if body == nil || c == body {
				childDepth = depth + 1
			}
			w.collectEvents(c, childDepth, inTry)
		}
		return
	}

	if w.grammar.CallLike.Has(t) {
		w.handleCall(node, inTry)
	}

	if w.grammar.Assignment.Has(t) {
		w.handleAssignment(node)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		w.collectEvents(node.Child(i), depth, inTry)
	}
}

func capDepth(d int) int {
	if d > MaxNestingDepth {
		return MaxNestingDepth
	}
	return d
}

func (w *walker) handleCall(node *sitter.Node, inTry bool) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		// Some grammars name the callee field differently.
		fn = node.Child(0)
	}
	if fn == nil {
		return
	}
	name, object := calleeNameAndObject(fn, w.source)
	if name == "" {
		return
	}
	isAwaited := false
	if parent := node.Parent(); parent != nil && w.grammar.AwaitLike.Has(parent.Type()) {
		isAwaited = true
	}
	call := schema.Call{
		Name:      name,
		Object:    object,
		IsAwaited: isAwaited,
		InTry:     inTry,
		IsIO:      isIOCallName(name),
		RefKind:   schema.RefNone,
		Location:  schema.Location{Line: w.line(node), Column: int(node.StartPoint().Column) + 1},
	}
	w.attachCall(w.line(node), call)
}

// calleeNameAndObject extracts a call's callee name and, for a member
// expression (obj.method()), the receiver text too.
func calleeNameAndObject(fn *sitter.Node, source []byte) (name, object string) {
	switch fn.Type() {
	case "member_expression", "selector_expression", "attribute":
		propField := fn.ChildByFieldName("property")
		if propField == nil {
			propField = fn.ChildByFieldName("field")
		}
		if propField == nil {
			propField = fn.ChildByFieldName("attribute")
		}
		objField := fn.ChildByFieldName("object")
		if objField == nil {
			objField = fn.ChildByFieldName("operand")
		}
		if propField != nil {
			name = strings.TrimSpace(propField.Content(source))
		}
		if objField != nil {
			object = strings.TrimSpace(objField.Content(source))
		}
		if name == "" {
			name = strings.TrimSpace(fn.Content(source))
		}
		return name, object
	default:
		return strings.TrimSpace(fn.Content(source)), ""
	}
}

func (w *walker) handleAssignment(node *sitter.Node) {
	left := node.ChildByFieldName("left")
	if left == nil {
		left = node.ChildByFieldName(w.grammar.FieldName)
	}
	if left == nil {
		return
	}
	name := strings.TrimSpace(left.Content(w.source))
	if name == "" {
		return
	}
	sc := schema.StateChange{Name: name, Kind: "assign", Line: w.line(node)}
	if w.grammar.FieldValue != "" {
		if val := node.ChildByFieldName(w.grammar.FieldValue); val != nil {
			sc.Value = strings.TrimSpace(val.Content(w.source))
		}
	}
	w.attachStateChange(w.line(node), sc)
}

func (w *walker) attachCall(line int, call schema.Call) {
	if c := w.innermostContainer(line); c != nil {
		if !hasCallDedup(c.info.Calls, call) {
			c.info.Calls = append(c.info.Calls, call)
		}
		return
	}
	if !hasCallDedup(w.fileCalls, call) {
		w.fileCalls = append(w.fileCalls, call)
	}
}

func hasCallDedup(calls []schema.Call, c schema.Call) bool {
	key := c.DedupKey()
	for _, existing := range calls {
		if existing.DedupKey() == key {
			return true
		}
	}
	return false
}

func (w *walker) attachControlFlow(ev schema.ControlFlowEvent) {
	if c := w.innermostContainer(ev.Line); c != nil {
		c.info.ControlFlow = append(c.info.ControlFlow, ev)
		return
	}
	w.fileControl = append(w.fileControl, ev)
}

func (w *walker) attachStateChange(line int, sc schema.StateChange) {
	if c := w.innermostContainer(line); c != nil {
		c.info.StateChanges = append(c.info.StateChanges, sc)
		return
	}
	w.fileState = append(w.fileState, sc)
}
