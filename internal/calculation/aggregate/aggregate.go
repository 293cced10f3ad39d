package aggregate

import (
	"math"

	"github.com/bwmarrin/snowflake"

	treedomain "github.com/careops/valuemed/internal/modeltree/domain"
)

// LeafInput is the per-leaf figure a step run produced for one department.
type LeafInput struct {
	Workload float64
	Weight   float64
}

// NodeResult is the computed figure for one node of one department's tree.
type NodeResult struct {
	Node     *treedomain.ModelNode
	Workload float64
	Weight   float64
	Value    float64
	Ratio    float64
}

// Rollup computes every node's value for one department in a single
// children-first pass, so each node is evaluated exactly once. Leaves take
// workload x weight from their input; a leaf with no input counts as zero.
// Internal nodes sum their dimension children. The output is a pure function
// of the tree and the leaf set, so re-running it cannot change a row.
func Rollup(tree *treedomain.Tree, leaves map[snowflake.ID]LeafInput) map[snowflake.ID]*NodeResult {
	results := make(map[snowflake.ID]*NodeResult, tree.Len())

	tree.PostOrder(func(node *treedomain.ModelNode) {
		result := &NodeResult{Node: node, Weight: node.Weight}
		if node.IsLeaf {
			if input, ok := leaves[node.ID]; ok {
				result.Workload = input.Workload
				result.Weight = input.Weight
				result.Value = Round4(input.Workload * input.Weight)
			}
			results[node.ID] = result
			return
		}

		var sum float64
		for _, child := range tree.Children(node.ID) {
			if child.NodeType != treedomain.NodeTypeDimension {
				continue
			}
			if computed, ok := results[child.ID]; ok {
				sum += computed.Value
			}
		}
		result.Value = Round4(sum)
		results[node.ID] = result
	})

	applyRatios(tree, results)
	return results
}

// applyRatios fills every node's share of its sibling group total. When the
// group total is zero every sibling's ratio is zero, never NaN.
func applyRatios(tree *treedomain.Tree, results map[snowflake.ID]*NodeResult) {
	groups := make(map[snowflake.ID][]*treedomain.ModelNode)
	var rootGroup []*treedomain.ModelNode
	for _, root := range tree.Roots() {
		rootGroup = append(rootGroup, root)
	}

	for _, root := range tree.Roots() {
		collectGroups(tree, root, groups)
	}

	ratioGroup(rootGroup, results)
	for _, siblings := range groups {
		ratioGroup(siblings, results)
	}
}

func collectGroups(tree *treedomain.Tree, node *treedomain.ModelNode, groups map[snowflake.ID][]*treedomain.ModelNode) {
	children := tree.Children(node.ID)
	if len(children) > 0 {
		groups[node.ID] = children
	}
	for _, child := range children {
		collectGroups(tree, child, groups)
	}
}

func ratioGroup(siblings []*treedomain.ModelNode, results map[snowflake.ID]*NodeResult) {
	var total float64
	for _, node := range siblings {
		if result, ok := results[node.ID]; ok {
			total += result.Value
		}
	}
	for _, node := range siblings {
		result, ok := results[node.ID]
		if !ok {
			continue
		}
		if total == 0 {
			result.Ratio = 0
			continue
		}
		result.Ratio = Round2(result.Value / total * 100)
	}
}

// UnitRollup is the ephemeral cross-department aggregate used for
// whole-hospital and accounting-unit reporting. It is never persisted as a
// result row.
type UnitRollup struct {
	AccountingUnitCode string
	AccountingUnitName string
	DepartmentIDs      []snowflake.ID
	NodeValues         map[snowflake.ID]float64
	Total              float64
}

// MergeDepartments sums per-department results into one unit rollup. The
// total is the sum of root sequence values.
func MergeDepartments(tree *treedomain.Tree, unitCode, unitName string, perDepartment map[snowflake.ID]map[snowflake.ID]*NodeResult) *UnitRollup {
	rollup := &UnitRollup{
		AccountingUnitCode: unitCode,
		AccountingUnitName: unitName,
		NodeValues:         make(map[snowflake.ID]float64),
	}
	for deptID, results := range perDepartment {
		rollup.DepartmentIDs = append(rollup.DepartmentIDs, deptID)
		for nodeID, result := range results {
			rollup.NodeValues[nodeID] = Round4(rollup.NodeValues[nodeID] + result.Value)
		}
	}
	for _, root := range tree.Roots() {
		rollup.Total = Round4(rollup.Total + rollup.NodeValues[root.ID])
	}
	return rollup
}

// Round2 rounds to two decimals, the grain ratios are reported at.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round4 rounds to four decimals, the grain values are stored at.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
