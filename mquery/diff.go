package mquery

import "sort"

// ChangeKind tags the outcome of one query comparison.
type ChangeKind uint8

const (
	QueryAdded ChangeKind = iota
	QueryRemoved
	QueryRenamed
	QueryDefinitionChanged
	QueryMetadataChanged
)

func (k ChangeKind) String() string {
	switch k {
	case QueryAdded:
		return "QueryAdded"
	case QueryRemoved:
		return "QueryRemoved"
	case QueryRenamed:
		return "QueryRenamed"
	case QueryDefinitionChanged:
		return "QueryDefinitionChanged"
	case QueryMetadataChanged:
		return "QueryMetadataChanged"
	}
	return "unknown"
}

// DefinitionChangeKind distinguishes semantic definition changes from
// formatting-only rewrites.
type DefinitionChangeKind uint8

const (
	Semantic DefinitionChangeKind = iota
	FormattingOnly
)

func (k DefinitionChangeKind) String() string {
	if k == FormattingOnly {
		return "FormattingOnly"
	}
	return "Semantic"
}

// StepChangeKind tags one step-level change inside a let pipeline.
type StepChangeKind uint8

const (
	StepAdded StepChangeKind = iota
	StepRemoved
	StepModified
)

func (k StepChangeKind) String() string {
	switch k {
	case StepAdded:
		return "StepAdded"
	case StepRemoved:
		return "StepRemoved"
	case StepModified:
		return "StepModified"
	}
	return "unknown"
}

// StepDetail names what changed inside a modified step.
type StepDetail uint8

const (
	NameChanged StepDetail = iota
	FunctionChanged
	ParamsChanged
	ExpressionChanged
)

func (d StepDetail) String() string {
	switch d {
	case NameChanged:
		return "NameChanged"
	case FunctionChanged:
		return "FunctionChanged"
	case ParamsChanged:
		return "ParamsChanged"
	case ExpressionChanged:
		return "ExpressionChanged"
	}
	return "unknown"
}

// StepChange is one entry of the semantic detail of a definition change.
type StepChange struct {
	Kind    StepChangeKind
	Name    string
	Details []StepDetail
}

// Query is the minimal view of a query the differ needs.
type Query struct {
	Name        string
	Expression  string
	LoadToSheet bool
	LoadToModel bool
}

// Change is one emitted query-level difference.
type Change struct {
	Kind ChangeKind
	// Name is the query's item path; for renames it is the old name and
	// NewName carries the new one.
	Name    string
	NewName string

	DefinitionKind DefinitionChangeKind
	Steps          []StepChange
}

// DiffQueries compares two query sets by name, with rename detection for
// definition-identical pairs. The result is ordered by query name (renames
// under their old name).
func DiffQueries(old, new []Query) []Change {
	oldByName := make(map[string]Query, len(old))
	for _, q := range old {
		oldByName[q.Name] = q
	}
	newByName := make(map[string]Query, len(new))
	for _, q := range new {
		newByName[q.Name] = q
	}

	var removed, added []Query
	var changes []Change

	names := make([]string, 0, len(oldByName)+len(newByName))
	for name := range oldByName {
		names = append(names, name)
	}
	for name := range newByName {
		if _, ok := oldByName[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		oldQ, inOld := oldByName[name]
		newQ, inNew := newByName[name]
		switch {
		case inOld && !inNew:
			removed = append(removed, oldQ)
		case !inOld && inNew:
			added = append(added, newQ)
		default:
			if change, ok := diffMatchedQuery(oldQ, newQ); ok {
				changes = append(changes, change)
			}
		}
	}

	// Rename detection: a removed and an added query with the same
	// canonical definition are one rename, matched greedily by hash. An
	// ambiguous hash (several candidates) stays an add/remove pair.
	addedByHash := make(map[uint64][]int)
	for i, q := range added {
		addedByHash[definitionHash(q.Expression)] = append(addedByHash[definitionHash(q.Expression)], i)
	}
	usedAdded := make([]bool, len(added))

	for _, q := range removed {
		hash := definitionHash(q.Expression)
		candidates := addedByHash[hash]
		if len(candidates) == 1 && !usedAdded[candidates[0]] {
			target := added[candidates[0]]
			usedAdded[candidates[0]] = true
			changes = append(changes, Change{
				Kind:    QueryRenamed,
				Name:    q.Name,
				NewName: target.Name,
			})
			continue
		}
		changes = append(changes, Change{Kind: QueryRemoved, Name: q.Name})
	}
	for i, q := range added {
		if !usedAdded[i] {
			changes = append(changes, Change{Kind: QueryAdded, Name: q.Name})
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Name < changes[j].Name
	})
	return changes
}

func diffMatchedQuery(oldQ, newQ Query) (Change, bool) {
	if oldQ.Expression != newQ.Expression {
		kind, steps := classifyDefinitionChange(oldQ.Expression, newQ.Expression)
		return Change{
			Kind:           QueryDefinitionChanged,
			Name:           oldQ.Name,
			DefinitionKind: kind,
			Steps:          steps,
		}, true
	}
	if oldQ.LoadToSheet != newQ.LoadToSheet || oldQ.LoadToModel != newQ.LoadToModel {
		return Change{Kind: QueryMetadataChanged, Name: oldQ.Name}, true
	}
	return Change{}, false
}

func classifyDefinitionChange(oldSrc, newSrc string) (DefinitionChangeKind, []StepChange) {
	oldAst, oldErr := ParseOrOpaque(oldSrc)
	newAst, newErr := ParseOrOpaque(newSrc)
	if oldErr != nil || newErr != nil {
		return Semantic, nil
	}

	Canonicalize(oldAst)
	Canonicalize(newAst)
	if SemanticallyEqual(oldAst, newAst) {
		return FormattingOnly, nil
	}
	return Semantic, diffSteps(oldAst, newAst)
}

func definitionHash(src string) uint64 {
	ast, err := ParseOrOpaque(src)
	if err != nil {
		return opaqueHash([]string{src})
	}
	Canonicalize(ast)
	return Hash(ast)
}

// diffSteps produces step-level detail when both definitions are let
// pipelines. Steps match by name first; leftover steps pair in order, where
// a value-identical pair is a rename and anything else is inspected for
// function/parameter changes.
func diffSteps(oldAst, newAst *Node) []StepChange {
	if oldAst.Kind != Let || newAst.Kind != Let {
		return nil
	}

	oldByName := make(map[string]*Node, len(oldAst.Fields))
	for i := range oldAst.Fields {
		oldByName[oldAst.Fields[i].Name] = oldAst.Fields[i].Value
	}
	newByName := make(map[string]*Node, len(newAst.Fields))
	for i := range newAst.Fields {
		newByName[newAst.Fields[i].Name] = newAst.Fields[i].Value
	}

	var changes []StepChange
	var oldOnly, newOnly []Field

	for _, step := range oldAst.Fields {
		newValue, ok := newByName[step.Name]
		if !ok {
			oldOnly = append(oldOnly, step)
			continue
		}
		if !SemanticallyEqual(step.Value, newValue) {
			changes = append(changes, StepChange{
				Kind:    StepModified,
				Name:    step.Name,
				Details: stepValueDetails(step.Value, newValue),
			})
		}
	}
	for _, step := range newAst.Fields {
		if _, ok := oldByName[step.Name]; !ok {
			newOnly = append(newOnly, step)
		}
	}

	// Pair leftover steps in pipeline order.
	n := len(oldOnly)
	if len(newOnly) < n {
		n = len(newOnly)
	}
	for i := 0; i < n; i++ {
		details := []StepDetail{NameChanged}
		if !SemanticallyEqual(oldOnly[i].Value, newOnly[i].Value) {
			details = append(details, stepValueDetails(oldOnly[i].Value, newOnly[i].Value)...)
		}
		changes = append(changes, StepChange{
			Kind:    StepModified,
			Name:    newOnly[i].Name,
			Details: details,
		})
	}
	for _, step := range oldOnly[n:] {
		changes = append(changes, StepChange{Kind: StepRemoved, Name: step.Name})
	}
	for _, step := range newOnly[n:] {
		changes = append(changes, StepChange{Kind: StepAdded, Name: step.Name})
	}

	return changes
}

// stepValueDetails classifies how a step's expression changed. A step whose
// root is a function call compares call name and arguments; everything else
// is a generic expression change.
func stepValueDetails(oldValue, newValue *Node) []StepDetail {
	if oldValue.Kind == FunctionCall && newValue.Kind == FunctionCall {
		if oldValue.Name != newValue.Name {
			return []StepDetail{FunctionChanged}
		}
		return []StepDetail{ParamsChanged}
	}
	return []StepDetail{ExpressionChanged}
}
